package main

import (
	"context"
	"fmt"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wasmpack/internal/build"
	"github.com/vango-dev/wasmpack/internal/dev"
)

func devCmd(global *globalFlags) *cobra.Command {
	var (
		port        int
		host        string
		openBrowser bool
	)

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Build the pack directory, serve it and rebuild on change.

Connected browsers reload once per burst of changes. Build errors are
shown as an overlay in the page until the next good build.

Examples:
  wasmpack dev
  wasmpack dev --port=3000
  wasmpack dev --host=0.0.0.0 --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}

			if port > 0 {
				cfg.Dev.Port = port
			}
			if host != "" {
				cfg.Dev.Host = host
			}
			if openBrowser {
				cfg.Dev.OpenBrowser = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			printBanner()
			fmt.Println("  dev")
			fmt.Println()

			server := dev.NewServer(dev.ServerOptions{
				Config: cfg,
				Logger: global.logger(),
				OnBuildComplete: func(result *build.Result, err error) {
					if err == nil {
						success("Built in %s", result.Duration.Round(time.Millisecond))
					}
				},
				OnReload: func(clients int) {
					if clients > 0 {
						success("Reloaded %d browsers", clients)
					}
				},
			})

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			go func() {
				select {
				case <-server.Ready():
					info("Serving %s at %s", cfg.Paths.Pack, server.URL())
					if cfg.Dev.OpenBrowser {
						openURL(server.URL())
					}
				case <-ctx.Done():
				}
			}()

			err = server.Start(ctx)
			fmt.Println("\n  Shutting down...")
			return err
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to run on (default from config)")
	cmd.Flags().StringVarP(&host, "host", "H", "", "Host to bind to (default from config)")
	cmd.Flags().BoolVarP(&openBrowser, "open", "o", false, "Open browser on start")

	return cmd
}

// openURL opens a URL in the default browser.
func openURL(url string) {
	var cmd *exec.Cmd

	switch {
	case runtime.GOOS == "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case commandExists("xdg-open"):
		cmd = exec.Command("xdg-open", url)
	case commandExists("open"):
		cmd = exec.Command("open", url)
	default:
		warn("Cannot open a browser; visit %s", url)
		return
	}

	cmd.Start()
}

// commandExists checks if a command exists in PATH.
func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
