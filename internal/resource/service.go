// Package resource はリソースの閲覧・検索・アップロード・削除・
// ダウンロードURL発行のアプリケーションサービスを提供する。
package resource

import (
	"context"
	"io"
	"log/slog"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/UgochukwuChidera/resourcehub/internal/cache"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
	"github.com/UgochukwuChidera/resourcehub/internal/security"
	"github.com/UgochukwuChidera/resourcehub/internal/storage"
)

// FileStore はサービスが必要とするオブジェクトストレージ操作。
// storage.ObjectStorageが実装する。
type FileStore interface {
	Upload(ctx context.Context, key string, body io.Reader, contentType string, size int64) error
	Delete(ctx context.Context, key string) error
	PresignDownload(ctx context.Context, key string) (string, error)
}

// SignedURLObserver は署名付きURL発行の観測フック。メトリクス収集に使う。
type SignedURLObserver interface {
	RecordSignedURL()
}

// Service はリソース操作のアプリケーションサービス。
type Service struct {
	repo      repository.ResourceRepository
	store     *cache.ResourceStore
	files     FileStore
	sanitizer security.ContentSanitizerService
	observer  SignedURLObserver
}

// NewService はServiceを生成する。observerはnil可。
func NewService(
	repo repository.ResourceRepository,
	store *cache.ResourceStore,
	files FileStore,
	sanitizer security.ContentSanitizerService,
	observer SignedURLObserver,
) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		files:     files,
		sanitizer: sanitizer,
		observer:  observer,
	}
}

// List は全リソースを作成日時の降順で返す。キャッシュ経由で取得する。
func (s *Service) List(ctx context.Context) ([]model.Resource, error) {
	return s.store.Get(ctx)
}

// Search はキャッシュ済みの一覧に検索条件を適用して返す。
func (s *Service) Search(ctx context.Context, filter repository.ResourceFilter) ([]model.Resource, error) {
	resources, err := s.store.Get(ctx)
	if err != nil {
		return nil, err
	}
	return Filter(resources, filter), nil
}

// Get は指定IDのリソースを返す。存在しない場合はRESOURCE_NOT_FOUND。
func (s *Service) Get(ctx context.Context, id string) (*model.Resource, error) {
	found, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, model.NewResourceNotFoundError(id)
	}
	return found, nil
}

// UploadInput はリソースアップロードの入力。
// Fileがnilの場合はファイルなしのリソースとして作成する。
type UploadInput struct {
	Name        string
	Type        string
	Course      string
	Year        int
	Description string
	Keywords    []string
	UploaderID  string

	File         io.Reader
	FileName     string
	FileMimeType string
	FileSize     int64
}

// Upload は新しいリソースを作成する。ファイルが添付されている場合は
// `public/<resourceID>/<fileName>` のキーで保存し、メタデータ4項目を
// すべて設定する（all-or-none不変条件）。作成後はキャッシュを無効化する。
func (s *Service) Upload(ctx context.Context, input UploadInput) (*model.Resource, error) {
	name := s.sanitizer.SanitizeText(input.Name)
	if name == "" {
		return nil, model.NewMissingFieldError("name")
	}
	if !model.IsValidResourceType(input.Type) {
		return nil, model.NewInvalidResourceTypeError(input.Type)
	}

	keywords := make([]string, 0, len(input.Keywords))
	for _, kw := range input.Keywords {
		if clean := s.sanitizer.SanitizeText(kw); clean != "" {
			keywords = append(keywords, clean)
		}
	}

	res := &model.Resource{
		ID:          uuid.NewString(),
		Name:        name,
		Type:        model.ResourceType(input.Type),
		Course:      s.sanitizer.SanitizeText(input.Course),
		Year:        input.Year,
		Description: s.sanitizer.SanitizeText(input.Description),
		Keywords:    keywords,
		UploaderID:  input.UploaderID,
	}

	if input.File != nil {
		fileName, err := safeFileName(input.FileName)
		if err != nil {
			return nil, err
		}
		key := storage.ResourceFileKey(res.ID, fileName)
		if err := s.files.Upload(ctx, key, input.File, input.FileMimeType, input.FileSize); err != nil {
			return nil, model.NewStorageFailedError(err.Error())
		}
		res.File = &model.FileMeta{
			URL:       key,
			Name:      fileName,
			MimeType:  input.FileMimeType,
			SizeBytes: input.FileSize,
		}
	}

	if err := s.repo.Create(ctx, res); err != nil {
		// DB書き込みに失敗したら孤児ファイルを残さない
		if res.File != nil {
			if delErr := s.files.Delete(ctx, res.File.URL); delErr != nil {
				slog.Error("failed to clean up orphan file after create failure",
					slog.String("key", res.File.URL),
					slog.String("error", delErr.Error()),
				)
			}
		}
		return nil, err
	}

	s.store.Invalidate()
	slog.Info("resource created",
		slog.String("resource_id", res.ID),
		slog.String("uploader_id", res.UploaderID),
		slog.Bool("has_file", res.HasFile()),
	)
	return res, nil
}

// Delete はリソースとその添付ファイルを削除する。
// ストレージ側の削除失敗はログに記録するがDB削除は続行する
// （ファイル孤児よりDB行孤児の方が害が大きい）。
// 削除後はキャッシュを楽観的に更新し、再フェッチを発生させない。
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.Get(ctx, id)
	if err != nil {
		return err
	}

	if res.HasFile() {
		if err := s.files.Delete(ctx, res.File.URL); err != nil {
			slog.Error("file deletion failed, continuing with record deletion",
				slog.String("resource_id", id),
				slog.String("key", res.File.URL),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.repo.DeleteByID(ctx, id); err != nil {
		return err
	}

	if cached, ok := s.store.Cached(); ok {
		remaining := make([]model.Resource, 0, len(cached))
		for _, r := range cached {
			if r.ID != id {
				remaining = append(remaining, r)
			}
		}
		s.store.Set(remaining)
	}

	slog.Info("resource deleted", slog.String("resource_id", id))
	return nil
}

// SignedDownloadURL はリソースの添付ファイルに対する短命の
// 署名付きダウンロードURLを発行する。
func (s *Service) SignedDownloadURL(ctx context.Context, id string) (string, error) {
	res, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if !res.HasFile() {
		return "", model.NewInvalidFilePathError("resource has no attached file")
	}

	signed, err := s.files.PresignDownload(ctx, res.File.URL)
	if err != nil {
		return "", model.NewSignedURLFailedError(err.Error())
	}
	if s.observer != nil {
		s.observer.RecordSignedURL()
	}
	return signed, nil
}

// safeFileName はアップロードファイル名を検証して正規化する。
// パス区切りと相対パス要素を拒否する。
func safeFileName(raw string) (string, error) {
	name := strings.TrimSpace(raw)
	if name == "" {
		return "", model.NewMissingFieldError("fileName")
	}
	if strings.ContainsAny(name, "/\\") {
		return "", model.NewInvalidFilePathError("file name must not contain path separators")
	}
	if name != path.Base(name) || name == "." || name == ".." {
		return "", model.NewInvalidFilePathError("invalid file name")
	}
	return name, nil
}
