package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/wasmpack/internal/errors"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "wasmpack.json"

	// DefaultPort is the default development server port.
	DefaultPort = 8080

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultDebounce is the default quiet period before a rebuild.
	DefaultDebounce = 100 * time.Millisecond
)

// ConfigFileNames lists the file names looked up in a project root, in order.
var ConfigFileNames = []string{ConfigFileName, "wasmpack.yaml", "wasmpack.yml"}

// Mode selects development or production output.
type Mode string

const (
	ModeDevelopment Mode = "development"
	ModeProduction  Mode = "production"
)

// ClientLogging levels accepted by dev.clientLogging, from quietest to loudest.
var ClientLoggingLevels = []string{"none", "error", "warn", "info", "log", "verbose"}

// Config represents the complete wasmpack configuration.
type Config struct {
	// Name is the project name.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Mode is development or production.
	Mode Mode `json:"mode,omitempty" yaml:"mode,omitempty"`

	// Optimization overrides mode-derived output settings.
	Optimization OptimizationConfig `json:"optimization,omitempty" yaml:"optimization,omitempty"`

	// Paths contains the build, pack and static directories.
	Paths PathsConfig `json:"paths,omitempty" yaml:"paths,omitempty"`

	// Entry maps bundle names to entry scripts. The bundle is written
	// to the pack directory as <name>.js.
	Entry map[string]string `json:"entry,omitempty" yaml:"entry,omitempty"`

	// Copy is the ordered list of copy rules.
	Copy []CopyRule `json:"copy,omitempty" yaml:"copy,omitempty"`

	// Externals are module names left unresolved by the bundler, in
	// addition to the Node built-ins referenced by emscripten glue code.
	Externals []string `json:"externals,omitempty" yaml:"externals,omitempty"`

	// SourceMaps enables linked source maps for bundles.
	SourceMaps bool `json:"sourceMaps,omitempty" yaml:"sourceMaps,omitempty"`

	// Dev contains development server configuration.
	Dev DevConfig `json:"dev,omitempty" yaml:"dev,omitempty"`

	// Publish contains the upload target for built pack directories.
	Publish PublishConfig `json:"publish,omitempty" yaml:"publish,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string

	// dir is the project root when no config file exists.
	dir string
}

// OptimizationConfig contains output optimization settings.
type OptimizationConfig struct {
	// Minimize forces minification on or off. When unset it follows the mode.
	Minimize *bool `json:"minimize,omitempty" yaml:"minimize,omitempty"`
}

// PathsConfig contains path configuration for project directories.
type PathsConfig struct {
	// Build is the directory the wasm compiler writes to.
	Build string `json:"build,omitempty" yaml:"build,omitempty"`

	// Pack is the directory served to the browser.
	Pack string `json:"pack,omitempty" yaml:"pack,omitempty"`

	// Static contains hand-authored assets.
	Static string `json:"static,omitempty" yaml:"static,omitempty"`
}

// CopyRule copies From (a file or directory) into the pack directory.
type CopyRule struct {
	// From is the source path, relative to the project root.
	From string `json:"from" yaml:"from"`

	// To is an optional subdirectory of the pack directory.
	To string `json:"to,omitempty" yaml:"to,omitempty"`
}

// DevConfig contains development server settings.
type DevConfig struct {
	// Port is the port to run the dev server on.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// OpenBrowser opens the browser automatically on start.
	OpenBrowser bool `json:"openBrowser,omitempty" yaml:"openBrowser,omitempty"`

	// Watch contains paths to watch for changes.
	Watch []string `json:"watch,omitempty" yaml:"watch,omitempty"`

	// Ignore contains patterns to ignore during watch.
	Ignore []string `json:"ignore,omitempty" yaml:"ignore,omitempty"`

	// HotReload enables browser reload after rebuilds.
	HotReload bool `json:"hotReload" yaml:"hotReload"`

	// ClientLogging is the lowest level the browser client logs to the console.
	ClientLogging string `json:"clientLogging,omitempty" yaml:"clientLogging,omitempty"`

	// Debounce is the quiet period before a batch of changes triggers a rebuild.
	Debounce string `json:"debounce,omitempty" yaml:"debounce,omitempty"`

	// CORS lists origins allowed to fetch from the dev server.
	CORS []string `json:"cors,omitempty" yaml:"cors,omitempty"`
}

// PublishConfig contains the S3 upload target.
type PublishConfig struct {
	// Bucket is the destination bucket.
	Bucket string `json:"bucket,omitempty" yaml:"bucket,omitempty"`

	// Prefix is prepended to every object key.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`

	// Region overrides the region from the AWS environment.
	Region string `json:"region,omitempty" yaml:"region,omitempty"`

	// Endpoint overrides the S3 endpoint (e.g. a local S3-compatible store).
	Endpoint string `json:"endpoint,omitempty" yaml:"endpoint,omitempty"`

	// CacheControl is set on every uploaded object when non-empty.
	CacheControl string `json:"cacheControl,omitempty" yaml:"cacheControl,omitempty"`
}

// base returns the scalar defaults. Maps and slices are left nil so a
// config file replaces them instead of merging into them.
func base() *Config {
	return &Config{
		Mode: ModeDevelopment,
		Paths: PathsConfig{
			Build:  "build",
			Pack:   "pack",
			Static: "static",
		},
		Dev: DevConfig{
			Port:          DefaultPort,
			Host:          DefaultHost,
			HotReload:     true,
			ClientLogging: "warn",
			Debounce:      DefaultDebounce.String(),
		},
	}
}

// New creates a new Config with default values.
func New() *Config {
	cfg := base()
	cfg.applyDefaults()
	return cfg
}

// Load reads configuration from the specified directory.
// It looks for wasmpack.json, wasmpack.yaml and wasmpack.yml in that order.
func Load(dir string) (*Config, error) {
	for _, name := range ConfigFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E100").
		WithDetail("No " + ConfigFileName + " found in " + dir).
		WithSuggestion("Run 'wasmpack init' to create one, or run without a config file to use the defaults").
		Wrap(os.ErrNotExist)
}

// LoadFile reads configuration from the specified file path.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("E100").
			WithDetail("Failed to read " + path).
			Wrap(err)
	}

	cfg := base()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that " + filepath.Base(path) + " is valid").
			Wrap(err)
	}

	cfg.configPath = path
	cfg.applyDefaults()

	return cfg, nil
}

// Save writes the configuration to the file it was loaded from.
func (c *Config) Save() error {
	if c.configPath == "" {
		return errors.Newf(errors.CategoryConfig, "no config path set")
	}
	return c.SaveTo(c.configPath)
}

// SaveTo writes the configuration to the specified path. A .yaml or .yml
// extension selects YAML; anything else is written as indented JSON.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.New("E100").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// Dir returns the project root.
func (c *Config) Dir() string {
	if c.configPath != "" {
		return filepath.Dir(c.configPath)
	}
	return c.dir
}

// SetDir sets the project root for a config that has no file.
func (c *Config) SetDir(dir string) {
	c.dir = dir
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Mode == "" {
		c.Mode = ModeDevelopment
	}

	if c.Paths.Build == "" {
		c.Paths.Build = "build"
	}
	if c.Paths.Pack == "" {
		c.Paths.Pack = "pack"
	}
	if c.Paths.Static == "" {
		c.Paths.Static = "static"
	}

	if c.Entry == nil {
		c.Entry = map[string]string{
			"index": filepath.ToSlash(filepath.Join(c.Paths.Build, "main.js")),
		}
	}
	if c.Copy == nil {
		c.Copy = []CopyRule{
			{From: c.Paths.Static},
			{From: filepath.ToSlash(filepath.Join(c.Paths.Build, "main.wasm"))},
			{From: filepath.ToSlash(filepath.Join(c.Paths.Build, "main.data"))},
		}
	}

	if c.Dev.Port == 0 {
		c.Dev.Port = DefaultPort
	}
	if c.Dev.Host == "" {
		c.Dev.Host = DefaultHost
	}
	if c.Dev.Watch == nil {
		c.Dev.Watch = []string{c.Paths.Static, c.Paths.Build}
	}
	if c.Dev.ClientLogging == "" {
		c.Dev.ClientLogging = "warn"
	}
	if c.Dev.Debounce == "" {
		c.Dev.Debounce = DefaultDebounce.String()
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Mode != ModeDevelopment && c.Mode != ModeProduction {
		return errors.New("E121").
			WithDetail("mode must be \"development\" or \"production\", got \"" + string(c.Mode) + "\"")
	}
	if c.Dev.Port < 0 || c.Dev.Port > 65535 {
		return errors.New("E121").
			WithDetail("Port must be between 0 and 65535")
	}
	if !validClientLogging(c.Dev.ClientLogging) {
		return errors.New("E121").
			WithDetail("dev.clientLogging must be one of " + strings.Join(ClientLoggingLevels, ", "))
	}
	if d, err := time.ParseDuration(c.Dev.Debounce); err != nil || d <= 0 {
		return errors.New("E121").
			WithDetail("dev.debounce must be a positive duration such as \"100ms\", got \"" + c.Dev.Debounce + "\"")
	}
	if len(c.Entry) == 0 {
		return errors.New("E121").
			WithDetail("at least one entry is required")
	}
	for name, path := range c.Entry {
		if name == "" || strings.ContainsAny(name, `/\`) {
			return errors.New("E121").
				WithDetail("entry name \"" + name + "\" must be a plain file name")
		}
		if path == "" {
			return errors.New("E121").
				WithDetail("entry \"" + name + "\" has no source path")
		}
	}
	for i, rule := range c.Copy {
		if rule.From == "" {
			return errors.New("E121").
				WithDetail("copy rule " + strconv.Itoa(i) + " has no \"from\" path")
		}
		if filepath.IsAbs(rule.To) || hasDotDot(rule.To) {
			return errors.New("E121").
				WithDetail("copy rule " + strconv.Itoa(i) + " \"to\" must stay inside the pack directory")
		}
	}
	pack := c.PackPath()
	for _, input := range []string{c.resolve("."), c.BuildPath(), c.StaticPath()} {
		if isWithin(input, pack) {
			return errors.New("E121").
				WithDetail("the pack directory " + c.Paths.Pack + " is replaced on every build and must not contain the project, build or static directory")
		}
	}
	return nil
}

// Minimize reports whether bundles should be minified.
func (c *Config) Minimize() bool {
	if c.Optimization.Minimize != nil {
		return *c.Optimization.Minimize
	}
	return c.Mode == ModeProduction
}

// SetMinimize overrides the mode-derived minification setting.
func (c *Config) SetMinimize(minimize bool) {
	c.Optimization.Minimize = &minimize
}

// DebounceDuration returns the parsed debounce, or DefaultDebounce if invalid.
func (c *Config) DebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Dev.Debounce)
	if err != nil || d <= 0 {
		return DefaultDebounce
	}
	return d
}

// DevAddress returns the address string for the dev server.
func (c *Config) DevAddress() string {
	return c.Dev.Host + ":" + strconv.Itoa(c.Dev.Port)
}

// DevURL returns the full URL for the dev server.
func (c *Config) DevURL() string {
	return "http://" + c.DevAddress()
}

// BuildPath returns the absolute path to the build output directory.
func (c *Config) BuildPath() string {
	return c.resolve(c.Paths.Build)
}

// PackPath returns the absolute path to the pack directory.
func (c *Config) PackPath() string {
	return c.resolve(c.Paths.Pack)
}

// StaticPath returns the absolute path to the static directory.
func (c *Config) StaticPath() string {
	return c.resolve(c.Paths.Static)
}

// EntryPaths returns the entry map with absolute source paths.
func (c *Config) EntryPaths() map[string]string {
	entries := make(map[string]string, len(c.Entry))
	for name, path := range c.Entry {
		entries[name] = c.resolve(path)
	}
	return entries
}

// ResolvedCopyRules returns the copy rules with absolute source paths and
// absolute destination directories inside the pack directory.
func (c *Config) ResolvedCopyRules(packDir string) []CopyRule {
	rules := make([]CopyRule, 0, len(c.Copy))
	for _, rule := range c.Copy {
		rules = append(rules, CopyRule{
			From: c.resolve(rule.From),
			To:   filepath.Join(packDir, filepath.FromSlash(rule.To)),
		})
	}
	return rules
}

// WatchPaths returns the absolute watch paths, deduplicated.
func (c *Config) WatchPaths() []string {
	unique := make([]string, 0, len(c.Dev.Watch))
	seen := make(map[string]struct{}, len(c.Dev.Watch))
	for _, path := range c.Dev.Watch {
		if path == "" {
			continue
		}
		abs := c.resolve(path)
		if _, ok := seen[abs]; ok {
			continue
		}
		seen[abs] = struct{}{}
		unique = append(unique, abs)
	}
	return unique
}

func (c *Config) resolve(path string) string {
	path = filepath.FromSlash(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(c.Dir(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range ConfigFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E100").
				WithDetail("No " + ConfigFileName + " found in " + startDir + " or any parent directory").
				Wrap(os.ErrNotExist)
		}
		dir = parent
	}
}

// LoadOrDefault loads configuration from startDir or its nearest parent
// with a config file. Without one, the defaults are used with startDir as
// project root.
func LoadOrDefault(startDir string) (*Config, error) {
	root, err := FindProjectRoot(startDir)
	if err != nil {
		abs, absErr := filepath.Abs(startDir)
		if absErr != nil {
			return nil, absErr
		}
		cfg := New()
		cfg.SetDir(abs)
		return cfg, nil
	}
	return Load(root)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

func validClientLogging(level string) bool {
	for _, l := range ClientLoggingLevels {
		if l == level {
			return true
		}
	}
	return false
}

// isWithin reports whether path equals dir or lies below it.
func isWithin(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel == "." || !strings.HasPrefix(rel, "..")
}

func hasDotDot(path string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(path), "/") {
		if seg == ".." {
			return true
		}
	}
	return false
}
