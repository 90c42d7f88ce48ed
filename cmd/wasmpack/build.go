package main

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wasmpack/internal/build"
	"github.com/vango-dev/wasmpack/internal/config"
)

type buildFlags struct {
	mode   string
	minify bool
	pack   string
	clean  bool
}

func buildCmd(global *globalFlags) *cobra.Command {
	flags := &buildFlags{}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build the pack directory",
		Long: `Build the pack directory from the compiler output.

This command:
  • Checks every copy source and entry script exists
  • Copies the static directory, main.wasm and main.data
  • Bundles the entry script (minified in production mode)
  • Replaces the pack directory in one step

A missing main.wasm aborts the build and leaves the pack directory
untouched.

Examples:
  wasmpack build
  wasmpack build --mode=production
  wasmpack build --minify=false --pack=dist`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}
			if err := flags.apply(cmd, cfg); err != nil {
				return err
			}
			return runBuild(cfg, global, flags.clean)
		},
	}

	cmd.Flags().StringVarP(&flags.mode, "mode", "m", "", "Build mode: development or production (default from config)")
	cmd.Flags().BoolVar(&flags.minify, "minify", false, "Override minification (default follows the mode)")
	cmd.Flags().StringVar(&flags.pack, "pack", "", "Pack directory (default from config)")
	cmd.Flags().BoolVar(&flags.clean, "clean", false, "Remove the pack directory before building")

	return cmd
}

// apply copies explicitly set flags onto cfg and validates the result.
func (f *buildFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if f.mode != "" {
		cfg.Mode = config.Mode(f.mode)
	}
	if cmd.Flags().Changed("minify") {
		cfg.SetMinimize(f.minify)
	}
	if f.pack != "" {
		cfg.Paths.Pack = f.pack
	}
	return cfg.Validate()
}

func runBuild(cfg *config.Config, global *globalFlags, clean bool) error {
	fmt.Printf("  Building for %s...\n", cfg.Mode)
	fmt.Println()

	builder := build.New(cfg, build.Options{
		Logger: global.logger(),
		OnProgress: func(step string) {
			info("%s", step)
		},
	})

	if clean {
		info("Cleaning pack directory...")
		if err := builder.Clean(); err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}

	fmt.Println()
	success("Build %s complete in %s", result.ID, result.Duration.Round(time.Millisecond))
	fmt.Println()
	printReport(cfg, result)
	return nil
}

// printReport prints the pack directory as a tree with raw and gzip sizes.
func printReport(cfg *config.Config, result *build.Result) {
	rel, err := filepath.Rel(cfg.Dir(), result.Pack)
	if err != nil {
		rel = result.Pack
	}
	fmt.Println("  Output:")
	fmt.Printf("    %s/\n", filepath.ToSlash(rel))
	for i, file := range result.Files {
		branch := "├──"
		if i == len(result.Files)-1 {
			branch = "└──"
		}
		fmt.Printf("    %s %-24s %10s  (gzip %s)\n", branch, file.Path, formatBytes(file.Size), formatBytes(file.GzipSize))
	}
	size, gz := build.TotalSize(result.Files)
	fmt.Println()
	fmt.Printf("  %d files, %s (gzip %s)", len(result.Files), formatBytes(size), formatBytes(gz))
	if result.Minified {
		fmt.Print(", minified")
	}
	fmt.Println()
	fmt.Println()
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(b)/float64(div), "KMGTPE"[exp])
}
