package S3client

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	miniogo "github.com/minio/minio-go/v7"
)

// UploadFile uploads a local file to the given bucket/object.
func UploadFile(ctx context.Context, core *miniogo.Core, bucket, object, localFilePath string) (miniogo.UploadInfo, error) {
	file, err := os.Open(localFilePath)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to open file[%s]: %w", localFilePath, err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to stat file[%s]: %w", localFilePath, err)
	}
	fileSize := fileInfo.Size()

	md5Hash, sha256Hash, err := calculateFileHashes(file)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to calc hash: %w", err)
	}

	if _, err := file.Seek(0, 0); err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to reset file pointer: %w", err)
	}

	opts := miniogo.PutObjectOptions{
		ContentType: "application/octet-stream",
	}

	uploadInfo, err := core.PutObject(ctx, bucket, object, file, fileSize, md5Hash, sha256Hash, opts)
	if err != nil {
		return miniogo.UploadInfo{}, fmt.Errorf("failed to upload file[%s]: %w", localFilePath, err)
	}

	return uploadInfo, nil
}

// DownloadFile fetches bucket/object into localFilePath.
func DownloadFile(ctx context.Context, core *miniogo.Core, bucket, object, localFilePath string) (int64, error) {
	reader, _, _, err := core.GetObject(ctx, bucket, object, miniogo.GetObjectOptions{})
	if err != nil {
		return 0, fmt.Errorf("failed to get object[%s/%s]: %w", bucket, object, err)
	}
	defer reader.Close()

	file, err := os.OpenFile(localFilePath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to open file[%s]: %w", localFilePath, err)
	}
	defer file.Close()

	n, err := io.Copy(file, reader)
	if err != nil {
		return n, fmt.Errorf("failed to write object to file[%s]: %w", localFilePath, err)
	}
	return n, nil
}

// RemoveObject deletes bucket/object from the backend.
func RemoveObject(ctx context.Context, core *miniogo.Core, bucket, object string) error {
	if err := core.RemoveObject(ctx, bucket, object, miniogo.RemoveObjectOptions{}); err != nil {
		return fmt.Errorf("failed to remove object[%s/%s]: %w", bucket, object, err)
	}
	return nil
}

func calculateFileHashes(file *os.File) (md5Base64 string, sha256Hex string, err error) {
	md5Hasher := md5.New()
	sha256Hasher := sha256.New()

	multiWriter := io.MultiWriter(md5Hasher, sha256Hasher)
	if _, err := io.Copy(multiWriter, file); err != nil {
		return "", "", err
	}

	md5Base64 = base64.StdEncoding.EncodeToString(md5Hasher.Sum(nil))
	sha256Hex = hex.EncodeToString(sha256Hasher.Sum(nil))

	return md5Base64, sha256Hex, nil
}
