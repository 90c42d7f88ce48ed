package dev

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ReloadPath is the WebSocket endpoint browsers connect to.
const ReloadPath = "/_wasmpack/reload"

// ReloadMessageType represents the type of reload message.
type ReloadMessageType string

const (
	ReloadTypeFull  ReloadMessageType = "reload"
	ReloadTypeError ReloadMessageType = "error"
	ReloadTypeClear ReloadMessageType = "clear"
)

// ReloadMessage is sent to browsers via WebSocket.
type ReloadMessage struct {
	Type  ReloadMessageType `json:"type"`
	Build string            `json:"build,omitempty"`
	Error string            `json:"error,omitempty"`
	Level string            `json:"level,omitempty"`
}

type reloadClient struct {
	id   string
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *reloadClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// ReloadServer manages WebSocket connections for hot reload.
type ReloadServer struct {
	clients  map[*reloadClient]struct{}
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	level    string
	log      zerolog.Logger
	metrics  *Metrics

	// onConnect is called after a client registers. Tests use it to
	// wait for connections.
	onConnect func(id string)
}

// NewReloadServer creates a reload server whose messages carry the given
// client logging level.
func NewReloadServer(level string, log zerolog.Logger, metrics *Metrics) *ReloadServer {
	return &ReloadServer{
		clients: make(map[*reloadClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		level:   level,
		log:     log,
		metrics: metrics,
	}
}

// HandleWebSocket upgrades the connection and holds it until the browser
// goes away.
func (r *ReloadServer) HandleWebSocket(w http.ResponseWriter, req *http.Request) {
	conn, err := r.upgrader.Upgrade(w, req, nil)
	if err != nil {
		r.log.Debug().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &reloadClient{id: uuid.NewString(), conn: conn}
	r.mu.Lock()
	r.clients[client] = struct{}{}
	count := len(r.clients)
	onConnect := r.onConnect
	r.mu.Unlock()
	r.metrics.setClients(count)
	r.log.Debug().Str("client", client.id).Int("clients", count).Msg("Browser connected")
	if onConnect != nil {
		onConnect(client.id)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	r.remove(client)
	r.log.Debug().Str("client", client.id).Msg("Browser disconnected")
}

func (r *ReloadServer) remove(client *reloadClient) {
	r.mu.Lock()
	_, ok := r.clients[client]
	delete(r.clients, client)
	count := len(r.clients)
	r.mu.Unlock()
	if ok {
		client.conn.Close()
		r.metrics.setClients(count)
	}
}

// NotifyReload tells every client to reload after the given build.
func (r *ReloadServer) NotifyReload(buildID string) int {
	n := r.broadcast(ReloadMessage{Type: ReloadTypeFull, Build: buildID, Level: r.level})
	r.metrics.reloaded()
	return n
}

// NotifyError shows a build error overlay on every client.
func (r *ReloadServer) NotifyError(errMsg string) {
	r.broadcast(ReloadMessage{Type: ReloadTypeError, Error: errMsg, Level: r.level})
}

// ClearError clears the error overlay on all clients.
func (r *ReloadServer) ClearError() {
	r.broadcast(ReloadMessage{Type: ReloadTypeClear, Level: r.level})
}

// broadcast sends msg to all clients and returns how many received it.
func (r *ReloadServer) broadcast(msg ReloadMessage) int {
	data, err := json.Marshal(msg)
	if err != nil {
		return 0
	}

	r.mu.RLock()
	clients := make([]*reloadClient, 0, len(r.clients))
	for client := range r.clients {
		clients = append(clients, client)
	}
	r.mu.RUnlock()

	sent := 0
	for _, client := range clients {
		if err := client.write(data); err != nil {
			r.log.Debug().Str("client", client.id).Err(err).Msg("Dropping browser")
			r.remove(client)
			continue
		}
		sent++
	}
	return sent
}

// Close closes all client connections.
func (r *ReloadServer) Close() {
	r.mu.Lock()
	for client := range r.clients {
		client.conn.Close()
		delete(r.clients, client)
	}
	r.mu.Unlock()
	r.metrics.setClients(0)
}

// ClientScript returns the reload client for the given logging level.
func ClientScript(level string) string {
	return strings.Replace(devClientScript, "__LEVEL__", level, 1)
}

// InjectScript inserts script before the closing body tag of an HTML
// document, falling back to the closing html tag and then to appending.
func InjectScript(html, script string) string {
	if idx := strings.LastIndex(html, "</body>"); idx != -1 {
		return html[:idx] + script + html[idx:]
	}
	if idx := strings.LastIndex(html, "</html>"); idx != -1 {
		return html[:idx] + script + html[idx:]
	}
	return html + script
}

const devClientScript = `
<script>
(function() {
    'use strict';

    var levels = ['none', 'error', 'warn', 'info', 'log', 'verbose'];
    var threshold = levels.indexOf('__LEVEL__');
    var reconnectDelay = 1000;
    var maxReconnectDelay = 30000;
    var ws = null;

    function log(level, args) {
        var rank = levels.indexOf(level);
        if (threshold < 1 || rank < 1 || rank > threshold) {
            return;
        }
        var fn = level === 'error' ? console.error : level === 'warn' ? console.warn : console.log;
        fn.apply(console, ['[wasmpack]'].concat(args));
    }

    function setLevel(level) {
        var rank = levels.indexOf(level);
        if (rank >= 0) {
            threshold = rank;
        }
    }

    function connect() {
        var protocol = location.protocol === 'https:' ? 'wss:' : 'ws:';
        ws = new WebSocket(protocol + '//' + location.host + '/_wasmpack/reload');

        ws.onopen = function() {
            log('info', ['Hot reload connected']);
            reconnectDelay = 1000;
        };

        ws.onmessage = function(e) {
            var msg;
            try {
                msg = JSON.parse(e.data);
            } catch (err) {
                return;
            }
            if (msg.level) {
                setLevel(msg.level);
            }

            switch (msg.type) {
                case 'reload':
                    log('info', ['Reloading after build', msg.build || '']);
                    location.reload();
                    break;

                case 'error':
                    log('error', ['Build error:', msg.error]);
                    showErrorOverlay(msg.error);
                    break;

                case 'clear':
                    clearErrorOverlay();
                    break;
            }
        };

        ws.onclose = function() {
            log('warn', ['Connection lost, reconnecting in', reconnectDelay + 'ms']);
            setTimeout(function() {
                reconnectDelay = Math.min(reconnectDelay * 2, maxReconnectDelay);
                connect();
            }, reconnectDelay);
        };

        ws.onerror = function() {
            ws.close();
        };
    }

    function showErrorOverlay(error) {
        clearErrorOverlay();

        var overlay = document.createElement('div');
        overlay.id = 'wasmpack-error-overlay';
        overlay.style.cssText = 'position:fixed;top:0;left:0;right:0;bottom:0;background:rgba(0,0,0,0.9);color:#fff;font-family:monospace;font-size:14px;padding:20px;overflow:auto;z-index:999999;';

        var title = document.createElement('h2');
        title.style.cssText = 'color:#ff5555;margin:0 0 20px;';
        title.textContent = 'Build Error';

        var pre = document.createElement('pre');
        pre.style.cssText = 'white-space:pre-wrap;word-wrap:break-word;background:#1a1a1a;padding:20px;border-radius:8px;border:1px solid #333;';
        pre.textContent = error;

        overlay.appendChild(title);
        overlay.appendChild(pre);
        document.body.appendChild(overlay);
    }

    function clearErrorOverlay() {
        var overlay = document.getElementById('wasmpack-error-overlay');
        if (overlay) {
            overlay.remove();
        }
    }

    if (document.readyState === 'loading') {
        document.addEventListener('DOMContentLoaded', connect);
    } else {
        connect();
    }
})();
</script>
`
