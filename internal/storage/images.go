// Package storage はブログ記事のアイキャッチ画像をオブジェクトストレージに保存する。
package storage

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hitoshi/ministry/internal/model"
)

// ErrNotImage はアップロードされたデータが画像でない場合のエラー。
var ErrNotImage = errors.New("uploaded file is not an image")

// ErrTooLarge はアップロードサイズが上限を超えた場合のエラー。
var ErrTooLarge = errors.New("uploaded file is too large")

// objectAPI はテストでモックに差し替えるためのminioクライアントの部分集合。
type objectAPI interface {
	BucketExists(ctx context.Context, bucketName string) (bool, error)
	MakeBucket(ctx context.Context, bucketName string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// Config は画像ストアの設定。
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	PublicURL string // 空の場合はエンドポイントとバケットから組み立てる
	MaxSize   int64
}

// ImageStore は画像をバケットに保存し、公開URLを返す。
type ImageStore struct {
	api       objectAPI
	bucket    string
	publicURL string
	maxSize   int64
}

// NewImageStore はminioクライアントを生成し、バケットを用意する。
func NewImageStore(ctx context.Context, cfg Config) (*ImageStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}
	return newImageStore(ctx, client, cfg)
}

func newImageStore(ctx context.Context, api objectAPI, cfg Config) (*ImageStore, error) {
	publicURL := cfg.PublicURL
	if publicURL == "" {
		scheme := "http"
		if cfg.UseSSL {
			scheme = "https"
		}
		publicURL = fmt.Sprintf("%s://%s/%s", scheme, cfg.Endpoint, cfg.Bucket)
	}

	s := &ImageStore{
		api:       api,
		bucket:    cfg.Bucket,
		publicURL: strings.TrimRight(publicURL, "/"),
		maxSize:   cfg.MaxSize,
	}

	exists, err := api.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := api.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		slog.Info("image bucket created", slog.String("bucket", cfg.Bucket))
	}
	return s, nil
}

// PublicPrefix は保存した画像のURLの接頭辞を返す。この接頭辞のURLはSSRF検査を省略できる。
func (s *ImageStore) PublicPrefix() string {
	return s.publicURL + "/"
}

// Upload は画像を保存して公開URLを返す。
// Content-Typeは先頭バイトから判定し、image/*以外は拒否する。
func (s *ImageStore) Upload(ctx context.Context, filename string, r io.Reader, size int64) (string, error) {
	if s.maxSize > 0 && size > s.maxSize {
		return "", ErrTooLarge
	}

	br := bufio.NewReaderSize(r, 512)
	head, err := br.Peek(512)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, bufio.ErrBufferFull) {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	contentType := http.DetectContentType(head)
	if !strings.HasPrefix(contentType, "image/") {
		return "", ErrNotImage
	}

	key := path.Join("posts", uuid.New().String()+imageExt(filename, contentType))
	_, err = s.api.PutObject(ctx, s.bucket, key, br, size, minio.PutObjectOptions{
		ContentType:  contentType,
		CacheControl: "public, max-age=31536000, immutable",
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}

	slog.Info("image uploaded",
		slog.String("key", key),
		slog.String("content_type", contentType),
		slog.Int64("size", size),
	)
	return s.publicURL + "/" + key, nil
}

func imageExt(filename, contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 1 && len(ext) <= 5 {
		return ext
	}
	return ""
}

// Disabled はストレージ未設定時に使う実装。常にSTORAGE_DISABLEDを返す。
type Disabled struct{}

// Upload は常にエラーを返す。
func (Disabled) Upload(context.Context, string, io.Reader, int64) (string, error) {
	return "", model.NewStorageDisabledError()
}
