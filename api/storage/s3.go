// Package storage uploads history exports to an S3-compatible bucket.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"kubegarden/api/logger"
)

var ErrNotFound = errors.New("object not found")

type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Region    string
	Bucket    string
	UseSSL    bool
}

type Client struct {
	mc     *minio.Client
	config Config
}

func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("s3 client: endpoint is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 client: bucket is required")
	}
	mc, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("s3 client: %w", err)
	}
	return &Client{mc: mc, config: cfg}, nil
}

// EnsureBucket creates the export bucket if it does not exist yet.
func (c *Client) EnsureBucket(ctx context.Context) error {
	name := c.config.Bucket
	exists, err := c.mc.BucketExists(ctx, name)
	if err != nil {
		return fmt.Errorf("check bucket %s: %w", name, err)
	}
	if exists {
		return nil
	}
	region := c.config.Region
	if region == "" {
		region = "us-east-1"
	}
	if err := c.mc.MakeBucket(ctx, name, minio.MakeBucketOptions{Region: region}); err != nil {
		return fmt.Errorf("create bucket %s: %w", name, err)
	}
	logger.GetLogger().Info("s3: created bucket", zap.String("bucket", name))
	return nil
}

// PutJSON uploads v as an indented JSON object under key.
func (c *Client) PutJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	_, err = c.mc.PutObject(ctx, c.config.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}
	return nil
}

// GetJSON downloads key and decodes it into v. A missing key is ErrNotFound.
func (c *Client) GetJSON(ctx context.Context, key string, v any) error {
	obj, err := c.mc.GetObject(ctx, c.config.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("download %s: %w", key, err)
	}
	defer obj.Close()
	data, err := io.ReadAll(obj)
	if err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchKey" {
			return fmt.Errorf("%w: %s", ErrNotFound, key)
		}
		return fmt.Errorf("download %s: %w", key, err)
	}
	return json.Unmarshal(data, v)
}

// Object is a stored history export.
type Object struct {
	Name         string    `json:"name"`
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	LastModified time.Time `json:"lastModified"`
}

// ListExports returns history exports, newest first.
func (c *Client) ListExports(ctx context.Context) ([]Object, error) {
	var out []Object
	for obj := range c.mc.ListObjects(ctx, c.config.Bucket, minio.ListObjectsOptions{Prefix: ExportPrefix, Recursive: true}) {
		if obj.Err != nil {
			return nil, fmt.Errorf("list exports: %w", obj.Err)
		}
		out = append(out, Object{Name: path.Base(obj.Key), Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
	}
	SortNewestFirst(out)
	return out, nil
}

// SortNewestFirst orders exports by key, which embeds the export time.
func SortNewestFirst(objs []Object) {
	sort.Slice(objs, func(i, j int) bool { return objs[i].Key > objs[j].Key })
}

func (c *Client) Healthy(ctx context.Context) error {
	_, err := c.mc.BucketExists(ctx, c.config.Bucket)
	return err
}

func (c *Client) Bucket() string {
	return c.config.Bucket
}

const ExportPrefix = "history/"

// ExportKeyFor maps an export name such as "20260303T200607Z.json" back to
// its object key. Names that could escape the export prefix are rejected.
func ExportKeyFor(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || !strings.HasSuffix(name, ".json") {
		return "", fmt.Errorf("invalid export name %q", name)
	}
	return ExportPrefix + name, nil
}

// ExportKey names the object for a history export taken at t. Keys sort
// chronologically.
func ExportKey(t time.Time) string {
	return path.Join(ExportPrefix, t.UTC().Format("20060102T150405Z")+".json")
}
