// Package publish uploads a built pack directory to S3-compatible storage.
package publish

import (
	"context"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/wasmpack/internal/build"
	"github.com/vango-dev/wasmpack/internal/config"
	"github.com/vango-dev/wasmpack/internal/errors"
)

// DefaultConcurrency is how many uploads run at once.
const DefaultConcurrency = 4

// PutObjectAPI is the part of the S3 client Publisher needs.
type PutObjectAPI interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Options configures a Publisher.
type Options struct {
	Bucket       string
	Prefix       string
	CacheControl string

	// BuildID is stored as object metadata when set.
	BuildID string

	// Concurrency bounds parallel uploads. Zero means DefaultConcurrency.
	Concurrency int

	Logger zerolog.Logger
}

// Object is one uploaded file.
type Object struct {
	Key         string
	Size        int64
	ContentType string
}

// Report summarizes a publish.
type Report struct {
	Bucket  string
	Objects []Object
}

// Publisher uploads pack directories.
type Publisher struct {
	client  PutObjectAPI
	options Options
}

// New creates a publisher that uploads through client.
func New(client PutObjectAPI, options Options) *Publisher {
	if options.Concurrency <= 0 {
		options.Concurrency = DefaultConcurrency
	}
	return &Publisher{client: client, options: options}
}

// NewS3Client builds an S3 client from the default AWS credential chain,
// with the region and endpoint overrides from the publish config.
func NewS3Client(ctx context.Context, cfg config.PublishConfig) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, errors.New("E130").WithDetail("Cannot load AWS configuration").Wrap(err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	}), nil
}

// Publish uploads every file under dir. Keys mirror the directory layout
// below the configured prefix.
func (p *Publisher) Publish(ctx context.Context, dir string) (*Report, error) {
	if p.options.Bucket == "" {
		return nil, errors.New("E131")
	}

	files, err := build.List(dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, errors.New("E130").WithDetail(dir + " contains no files")
	}

	log := p.options.Logger.With().Str("bucket", p.options.Bucket).Logger()
	report := &Report{Bucket: p.options.Bucket, Objects: make([]Object, len(files))}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.options.Concurrency)

	for i, file := range files {
		obj := Object{
			Key:         Key(p.options.Prefix, file.Path),
			Size:        file.Size,
			ContentType: ContentType(file.Path),
		}
		src := filepath.Join(dir, filepath.FromSlash(file.Path))

		g.Go(func() error {
			if err := p.put(ctx, src, obj); err != nil {
				return err
			}
			report.Objects[i] = obj
			log.Debug().Str("key", obj.Key).Int64("size", obj.Size).Msg("Uploaded")
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return report, nil
}

func (p *Publisher) put(ctx context.Context, src string, obj Object) error {
	f, err := os.Open(src)
	if err != nil {
		return errors.New("E130").WithDetail("Cannot open " + src).Wrap(err)
	}
	defer f.Close()

	input := &s3.PutObjectInput{
		Bucket:        aws.String(p.options.Bucket),
		Key:           aws.String(obj.Key),
		Body:          f,
		ContentLength: aws.Int64(obj.Size),
		ContentType:   aws.String(obj.ContentType),
	}
	if p.options.CacheControl != "" {
		input.CacheControl = aws.String(p.options.CacheControl)
	}
	if p.options.BuildID != "" {
		input.Metadata = map[string]string{"wasmpack-build": p.options.BuildID}
	}

	if _, err := p.client.PutObject(ctx, input); err != nil {
		return errors.New("E130").WithDetail("Cannot upload s3://" + p.options.Bucket + "/" + obj.Key).Wrap(err)
	}
	return nil
}

// Key joins prefix and a slash-separated relative path into an object key.
func Key(prefix, rel string) string {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return rel
	}
	return path.Join(prefix, rel)
}

// ContentType returns the Content-Type uploaded for a file name.
func ContentType(name string) string {
	switch strings.ToLower(path.Ext(name)) {
	case ".wasm":
		return "application/wasm"
	case ".data":
		return "application/octet-stream"
	case ".js", ".mjs":
		return "text/javascript; charset=utf-8"
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".json":
		return "application/json"
	case ".map":
		return "application/json"
	case ".svg":
		return "image/svg+xml"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".ico":
		return "image/x-icon"
	case ".txt":
		return "text/plain; charset=utf-8"
	default:
		return "application/octet-stream"
	}
}
