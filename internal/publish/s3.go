// Package publish uploads finished runs to S3-compatible storage.
package publish

import (
	"context"
	"errors"
	"fmt"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

// Config selects the bucket and the AWS profile. Empty values fall back to
// the standard AWS config and credential chain.
type Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Profile      string `yaml:"profile"`
	Endpoint     string `yaml:"endpoint"`
	UsePathStyle bool   `yaml:"use_path_style"`
	Overwrite    bool   `yaml:"overwrite"`
}

// Enabled reports whether uploading is configured at all.
func (c Config) Enabled() bool {
	return c.Bucket != ""
}

// ObjectAPI is the part of the S3 client the publisher uses.
type ObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, in *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

type Publisher struct {
	api ObjectAPI
	cfg Config
}

// New builds a publisher on the default AWS configuration chain.
func New(ctx context.Context, cfg Config) (*Publisher, error) {
	if !cfg.Enabled() {
		return nil, errors.New("no bucket configured")
	}
	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Profile != "" {
		loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.Profile))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, err
	}
	c := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewWithAPI(c, cfg), nil
}

func NewWithAPI(api ObjectAPI, cfg Config) *Publisher {
	return &Publisher{api: api, cfg: cfg}
}

// Key is the object key of file within the run named run.
func (p *Publisher) Key(run, file string) string {
	return path.Join(strings.Trim(p.cfg.Prefix, "/"), run, filepath.Base(file))
}

// Publish uploads files under <prefix>/<run>/ and returns their s3:// URIs.
// Existing objects are kept unless Overwrite is set.
func (p *Publisher) Publish(ctx context.Context, run string, files ...string) ([]string, error) {
	var uris []string
	for _, f := range files {
		key := p.Key(run, f)
		if !p.cfg.Overwrite {
			exists, err := p.exists(ctx, key)
			if err != nil {
				return uris, fmt.Errorf("head %s: %w", key, err)
			}
			if exists {
				uris = append(uris, p.uri(key))
				continue
			}
		}
		if err := p.put(ctx, key, f); err != nil {
			return uris, fmt.Errorf("upload %s: %w", f, err)
		}
		uris = append(uris, p.uri(key))
	}
	return uris, nil
}

func (p *Publisher) put(ctx context.Context, key, file string) error {
	fh, err := os.Open(file)
	if err != nil {
		return err
	}
	defer fh.Close()

	in := &s3.PutObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
		Body:   fh,
	}
	if ct := contentType(file); ct != "" {
		in.ContentType = aws.String(ct)
	}
	_, err = p.api.PutObject(ctx, in)
	return err
}

func (p *Publisher) exists(ctx context.Context, key string) (bool, error) {
	_, err := p.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(p.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == 404 {
		return false, nil
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) && apiErr.ErrorCode() == "NotFound" {
		return false, nil
	}
	return false, err
}

func (p *Publisher) uri(key string) string {
	return "s3://" + p.cfg.Bucket + "/" + key
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".mp4":
		return "video/mp4"
	case ".yaml":
		return "application/yaml"
	}
	return mime.TypeByExtension(filepath.Ext(file))
}
