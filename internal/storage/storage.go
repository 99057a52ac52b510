// Package storage はS3互換オブジェクトストレージへのファイル操作を提供する。
//
// リソースファイルは `public/<resourceID>/<fileName>`、アバター画像は
// `avatars/<userID>` のキーで保存する。
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// ErrorObserver はストレージ操作失敗の観測フック。メトリクス収集に使う。
type ErrorObserver interface {
	RecordStorageError(operation string)
}

// Config はObjectStorageの接続設定。
type Config struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	// SignedURLTTL は署名付きダウンロードURLの有効期間。
	SignedURLTTL time.Duration
}

// ObjectStorage はバケット1つに束縛されたストレージクライアント。
type ObjectStorage struct {
	client   *s3.Client
	presign  *s3.PresignClient
	bucket   string
	ttl      time.Duration
	observer ErrorObserver
}

// New はObjectStorageを生成する。observerはnil可。
func New(ctx context.Context, cfg Config, observer ErrorObserver) (*ObjectStorage, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load storage config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		// MinIO等の互換ストレージはパススタイルのみ対応
		o.UsePathStyle = true
	})

	ttl := cfg.SignedURLTTL
	if ttl <= 0 {
		ttl = 60 * time.Second
	}

	return &ObjectStorage{
		client:   client,
		presign:  s3.NewPresignClient(client),
		bucket:   cfg.Bucket,
		ttl:      ttl,
		observer: observer,
	}, nil
}

// ResourceFileKey はリソースファイルの正規キーを返す。
func ResourceFileKey(resourceID, fileName string) string {
	return fmt.Sprintf("public/%s/%s", resourceID, fileName)
}

// AvatarKey はアバター画像の正規キーを返す。
func AvatarKey(userID string) string {
	return "avatars/" + userID
}

// FileNameFromKey はキーの最後のスラッシュ以降をファイル名として返す。
// スラッシュを含まない場合はキー全体を返す。
func FileNameFromKey(key string) string {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		return key[i+1:]
	}
	return key
}

// Upload はオブジェクトを保存する。
func (o *ObjectStorage) Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) error {
	input := &s3.PutObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := o.client.PutObject(ctx, input); err != nil {
		o.recordError("upload")
		return fmt.Errorf("failed to upload object %q: %w", key, err)
	}
	return nil
}

// Delete はオブジェクトを削除する。存在しないキーの削除は成功扱い。
func (o *ObjectStorage) Delete(ctx context.Context, key string) error {
	_, err := o.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		var noBucket *types.NoSuchBucket
		if errors.As(err, &noKey) || errors.As(err, &noBucket) {
			slog.Warn("delete target not found, treating as success", slog.String("key", key))
			return nil
		}
		o.recordError("delete")
		return fmt.Errorf("failed to delete object %q: %w", key, err)
	}
	return nil
}

// PresignDownload は短命の署名付きダウンロードURLを生成する。
// Content-Dispositionをattachmentに固定し、ブラウザ内表示ではなく
// ダウンロードとして配信させる。
func (o *ObjectStorage) PresignDownload(ctx context.Context, key string) (string, error) {
	fileName := FileNameFromKey(key)
	disposition := fmt.Sprintf("attachment; filename=%q", fileName)

	req, err := o.presign.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket:                     aws.String(o.bucket),
		Key:                        aws.String(key),
		ResponseContentDisposition: aws.String(disposition),
	}, s3.WithPresignExpires(o.ttl))
	if err != nil {
		o.recordError("presign")
		return "", fmt.Errorf("failed to presign download for %q: %w", key, err)
	}
	return req.URL, nil
}

func (o *ObjectStorage) recordError(operation string) {
	if o.observer != nil {
		o.observer.RecordStorageError(operation)
	}
}
