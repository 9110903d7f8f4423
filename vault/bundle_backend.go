package vault

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/zhengshuai-xiao/VaultS/internal"
	S3client "github.com/zhengshuai-xiao/VaultS/pkg/s3client"
)

// BundleBackend abstracts where finalized bundle files live. The pipeline
// always writes bundles into the local bundles directory first; the
// backend then publishes them, and fetches them back for restore and GC.
type BundleBackend interface {
	// Put publishes the finalized local file for key. The local file
	// stays in place and doubles as cache.
	Put(ctx context.Context, key, localPath string) error
	// Fetch ensures key is present locally and returns its path.
	Fetch(ctx context.Context, key string) (string, error)
	// Delete removes key locally and, where applicable, remotely.
	Delete(ctx context.Context, key string) error
}

// posixBackend keeps bundles on the repository filesystem only. Put is a
// no-op because the pipeline already renamed the file into place.
type posixBackend struct {
	root string // bundles directory
}

func NewPosixBackend(bundlesDir string) BundleBackend {
	return &posixBackend{root: bundlesDir}
}

func (b *posixBackend) Put(ctx context.Context, key, localPath string) error {
	return nil
}

func (b *posixBackend) Fetch(ctx context.Context, key string) (string, error) {
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if !internal.Exists(path) {
		return "", fmt.Errorf("%w: bundle file %s is missing", ErrCorruptBundle, key)
	}
	return path, nil
}

func (b *posixBackend) Delete(ctx context.Context, key string) error {
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// s3Backend mirrors bundles into an S3 bucket under the repository UUID,
// using the local bundles directory as read cache.
type s3Backend struct {
	core   *miniogo.Core
	bucket string
	prefix string
	root   string
}

func NewS3Backend(endpoint, accessKey, secretKey, bucket, repoUUID, bundlesDir string) (BundleBackend, error) {
	core, err := miniogo.NewCore(endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create s3 client for %s: %w", endpoint, err)
	}
	ok, err := core.BucketExists(context.Background(), bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket %s: %w", bucket, err)
	}
	if !ok {
		return nil, fmt.Errorf("bucket %s does not exist", bucket)
	}
	return &s3Backend{core: core, bucket: bucket, prefix: repoUUID + "/", root: bundlesDir}, nil
}

func (b *s3Backend) object(key string) string {
	return b.prefix + key
}

func (b *s3Backend) Put(ctx context.Context, key, localPath string) error {
	info, err := S3client.UploadFile(ctx, b.core, b.bucket, b.object(key), localPath)
	if err != nil {
		return err
	}
	logger.Debugf("uploaded bundle %s (%s)", key, internal.FormatBytes(uint64(info.Size)))
	return nil
}

func (b *s3Backend) Fetch(ctx context.Context, key string) (string, error) {
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if internal.Exists(path) {
		return path, nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", err
	}
	if _, err := S3client.DownloadFile(ctx, b.core, b.bucket, b.object(key), path); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to fetch bundle %s: %w", key, err)
	}
	return path, nil
}

func (b *s3Backend) Delete(ctx context.Context, key string) error {
	if err := S3client.RemoveObject(ctx, b.core, b.bucket, b.object(key)); err != nil {
		return err
	}
	path := filepath.Join(b.root, filepath.FromSlash(key))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
