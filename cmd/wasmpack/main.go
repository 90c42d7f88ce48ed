package main

import (
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/vango-dev/wasmpack/internal/config"
	"github.com/vango-dev/wasmpack/internal/errors"
	"github.com/vango-dev/wasmpack/internal/logger"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┬ ┬┌─┐┌─┐┌┬┐┌─┐┌─┐┌─┐┬┌─
  │││├─┤└─┐│││├─┘├─┤│  ├┴┐
  └┴┘┴ ┴└─┘┴ ┴┴  ┴ ┴└─┘┴ ┴
`

// globalFlags are shared by every command.
type globalFlags struct {
	dir      string
	debug    bool
	jsonLogs bool
}

func main() {
	cmd := newRootCmd()
	if err := cmd.Execute(); err != nil {
		reportError(cmd, os.Stderr, err)
		os.Exit(1)
	}
}

// reportError prints err the way the logs are written: one JSON line under
// --log-json, the styled terminal form otherwise. NO_COLOR disables styling.
func reportError(cmd *cobra.Command, w io.Writer, err error) {
	asJSON, _ := cmd.PersistentFlags().GetBool("log-json")
	errors.SetColors(os.Getenv("NO_COLOR") == "")
	errors.Fprint(w, err, asJSON)
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "wasmpack",
		Short: "Pack and serve WebAssembly build output",
		Long: `wasmpack turns the output of a WebAssembly compiler into a
directory a browser can load, and serves it while you work.

  • Bundles the generated entry script with esbuild
  • Copies main.wasm, main.data and static assets into the pack directory
  • Rebuilds on change and reloads connected browsers
  • Publishes the pack directory to S3`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.dir, "dir", "C", ".", "Project directory")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonLogs, "log-json", false, "Write logs as JSON lines")

	rootCmd.AddCommand(
		buildCmd(flags),
		devCmd(flags),
		publishCmd(flags),
		initCmd(flags),
		versionCmd(),
	)

	return rootCmd
}

// loadConfig loads the project config, falling back to the defaults when
// the project has no config file.
func (f *globalFlags) loadConfig() (*config.Config, error) {
	return config.LoadOrDefault(f.dir)
}

func (f *globalFlags) logger() zerolog.Logger {
	return logger.Setup(logger.Options{Debug: f.debug, JSON: f.jsonLogs})
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message.
func warn(format string, args ...any) {
	fmt.Printf("\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
