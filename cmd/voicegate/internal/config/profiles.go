package config

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/haivivi/voicegate/pkg/kv"
	"github.com/haivivi/voicegate/pkg/voiceprint"
)

// OpenKV opens the configured profile backend.
func (c ProfilesConfig) OpenKV(ctx context.Context, log *slog.Logger) (kv.Store, error) {
	switch c.Backend {
	case "memory":
		return kv.NewMemory(), nil
	case "dir":
		d, err := kv.NewDir(c.Dir)
		if err != nil {
			return nil, err
		}
		return d, nil
	case "badger":
		db, err := kv.NewBadger(kv.BadgerOptions{Dir: c.Dir, Logger: log})
		if err != nil {
			return nil, err
		}
		return db, nil
	case "s3":
		client, err := c.S3.NewClient(ctx)
		if err != nil {
			return nil, err
		}
		return kv.NewS3(client, c.S3.Bucket, c.S3.Prefix), nil
	default:
		return nil, fmt.Errorf("config: unknown profiles backend %q", c.Backend)
	}
}

// StoreOptions returns the voiceprint store options for this config.
func (c ProfilesConfig) StoreOptions(log *slog.Logger) ([]voiceprint.StoreOption, error) {
	codec, err := voiceprint.CodecByName(c.Codec)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return []voiceprint.StoreOption{
		voiceprint.WithKey(c.Key),
		voiceprint.WithCodec(codec),
		voiceprint.WithLogger(log),
	}, nil
}

// NewClient builds an S3 client. Static credentials are used when both
// keys are set; otherwise the default AWS credential chain applies. A
// custom endpoint switches to path-style addressing for S3-compatible
// servers.
func (c S3Config) NewClient(ctx context.Context) (*s3.Client, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		opts = append(opts, awsconfig.WithRegion(c.Region))
	}
	if c.AccessKeyID != "" && c.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(c.AccessKeyID, c.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("config: load AWS config: %w", err)
	}

	var clientOpts []func(*s3.Options)
	if c.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(c.Endpoint)
			o.UsePathStyle = true
		})
	}
	return s3.NewFromConfig(awsCfg, clientOpts...), nil
}
