package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/wasmpack/internal/build"
	"github.com/vango-dev/wasmpack/internal/config"
	"github.com/vango-dev/wasmpack/internal/errors"
	"github.com/vango-dev/wasmpack/internal/publish"
)

func publishCmd(global *globalFlags) *cobra.Command {
	var (
		bucket    string
		prefix    string
		region    string
		endpoint  string
		skipBuild bool
	)

	cmd := &cobra.Command{
		Use:   "publish",
		Short: "Build in production mode and upload to S3",
		Long: `Build the pack directory in production mode and upload every file
to S3. Object keys mirror the pack directory below the prefix.

Credentials come from the standard AWS environment (variables, shared
config files or instance roles).

Examples:
  wasmpack publish --bucket=my-site
  wasmpack publish --bucket=my-site --prefix=app/v2
  wasmpack publish --endpoint=http://localhost:9000 --bucket=dev`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := global.loadConfig()
			if err != nil {
				return err
			}

			if bucket != "" {
				cfg.Publish.Bucket = bucket
			}
			if prefix != "" {
				cfg.Publish.Prefix = prefix
			}
			if region != "" {
				cfg.Publish.Region = region
			}
			if endpoint != "" {
				cfg.Publish.Endpoint = endpoint
			}
			cfg.Mode = config.ModeProduction
			if err := cfg.Validate(); err != nil {
				return err
			}
			if cfg.Publish.Bucket == "" {
				return errors.New("E131").
					WithSuggestion("Set publish.bucket in " + config.ConfigFileName + " or pass --bucket")
			}

			return runPublish(cfg, global, skipBuild)
		},
	}

	cmd.Flags().StringVar(&bucket, "bucket", "", "Target bucket (default from config)")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Key prefix (default from config)")
	cmd.Flags().StringVar(&region, "region", "", "AWS region (default from the environment)")
	cmd.Flags().StringVar(&endpoint, "endpoint", "", "S3-compatible endpoint URL")
	cmd.Flags().BoolVar(&skipBuild, "skip-build", false, "Upload the existing pack directory as is")

	return cmd
}

func runPublish(cfg *config.Config, global *globalFlags, skipBuild bool) error {
	log := global.logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	buildID := ""
	if !skipBuild {
		info("Building for production...")
		result, err := build.New(cfg, build.Options{Logger: log, SkipReport: true}).Build(ctx)
		if err != nil {
			return err
		}
		buildID = result.ID
		success("Build %s complete in %s", result.ID, result.Duration.Round(time.Millisecond))
	}

	client, err := publish.NewS3Client(ctx, cfg.Publish)
	if err != nil {
		return err
	}

	publisher := publish.New(client, publish.Options{
		Bucket:       cfg.Publish.Bucket,
		Prefix:       cfg.Publish.Prefix,
		CacheControl: cfg.Publish.CacheControl,
		BuildID:      buildID,
		Logger:       log,
	})

	info("Uploading %s to s3://%s/%s", cfg.Paths.Pack, cfg.Publish.Bucket, cfg.Publish.Prefix)
	report, err := publisher.Publish(ctx, cfg.PackPath())
	if err != nil {
		return err
	}

	var total int64
	for _, obj := range report.Objects {
		info("%-40s %10s  %s", obj.Key, formatBytes(obj.Size), obj.ContentType)
		total += obj.Size
	}
	fmt.Println()
	success("Published %d files (%s) to s3://%s", len(report.Objects), formatBytes(total), report.Bucket)
	return nil
}
