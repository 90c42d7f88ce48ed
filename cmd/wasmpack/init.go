package main

import (
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wasmpack/internal/config"
	"github.com/vango-dev/wasmpack/internal/errors"
	"github.com/vango-dev/wasmpack/internal/templates"
)

type initFlags struct {
	force    bool
	yaml     bool
	template string
}

func initCmd(global *globalFlags) *cobra.Command {
	flags := &initFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a wasmpack config and starter page",
		Long: `Write wasmpack.json with the default layout and starter files
for the static directory.

Templates:
  ` + strings.Join(templates.List(), ", ") + `

Existing files are kept unless --force is given.

Examples:
  wasmpack init
  wasmpack init --template=canvas --yaml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(global.dir, *flags)
		},
	}

	cmd.Flags().BoolVarP(&flags.force, "force", "f", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&flags.yaml, "yaml", false, "Write wasmpack.yaml instead of wasmpack.json")
	cmd.Flags().StringVarP(&flags.template, "template", "t", "minimal", "Starter template")

	return cmd
}

func runInit(dir string, flags initFlags) error {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return err
	}

	tmpl, err := templates.Get(flags.template)
	if err != nil {
		return err
	}

	name := config.ConfigFileName
	if flags.yaml {
		name = "wasmpack.yaml"
	}
	if config.Exists(abs) && !flags.force {
		return errors.Newf(errors.CategoryCLI, "A wasmpack config already exists in %s", abs).
			WithSuggestion("Pass --force to overwrite it")
	}

	cfg := config.New()
	cfg.SetDir(abs)
	cfg.Name = filepath.Base(abs)
	cfg.SetMinimize(false)
	if err := cfg.SaveTo(filepath.Join(abs, name)); err != nil {
		return err
	}
	success("Created %s", name)

	written, err := tmpl.Create(abs, templates.Config{
		ProjectName: cfg.Name,
		Static:      cfg.Paths.Static,
		Pack:        cfg.Paths.Pack,
		Build:       cfg.Paths.Build,
	}, flags.force)
	if err != nil {
		return err
	}
	for _, path := range written {
		success("Created %s", path)
	}
	if len(written) == 0 {
		warn("Kept existing starter files")
	}
	return nil
}
