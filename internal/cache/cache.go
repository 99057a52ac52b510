// Package cache はリソース一覧のプロセス内キャッシュを提供する。
//
// ストアはアプリケーション起動時に1つだけ生成され、依存として注入される
// シングルトン。初回のGetだけがフェッチを実行し、以降は無効化されるまで
// 同じスライスを返す。フェッチ失敗時は未フェッチのまま残し、次のGetで
// 再試行する。
package cache

import (
	"context"
	"log/slog"
	"sync"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
)

// FetchObserver はキャッシュのヒット・ミスの観測フック。メトリクス収集に使う。
type FetchObserver interface {
	RecordCacheHit()
	RecordCacheMiss()
}

// ResourceStore は全リソース一覧のキャッシュストア。
type ResourceStore struct {
	repo     repository.ResourceRepository
	observer FetchObserver

	mu        sync.Mutex
	resources []model.Resource
	fetched   bool
}

// NewResourceStore はResourceStoreを生成する。observerはnil可。
func NewResourceStore(repo repository.ResourceRepository, observer FetchObserver) *ResourceStore {
	return &ResourceStore{
		repo:     repo,
		observer: observer,
	}
}

// Get はキャッシュ済みのリソース一覧を返す。未フェッチの場合は
// リポジトリから作成日時の降順で取得してキャッシュする。
// 同時に複数のGetが来てもフェッチは1回にまとめる。
func (s *ResourceStore) Get(ctx context.Context) ([]model.Resource, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetched {
		if s.observer != nil {
			s.observer.RecordCacheHit()
		}
		return s.resources, nil
	}

	if s.observer != nil {
		s.observer.RecordCacheMiss()
	}

	resources, err := s.repo.ListAll(ctx)
	if err != nil {
		// キャッシュせず未フェッチのまま残す。次のGetで再試行する。
		slog.Error("resource list fetch failed", slog.String("error", err.Error()))
		return nil, err
	}

	s.resources = resources
	s.fetched = true
	return s.resources, nil
}

// Set はキャッシュの内容を直接置き換える。楽観的な削除反映に使う。
func (s *ResourceStore) Set(resources []model.Resource) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = resources
	s.fetched = true
}

// Invalidate はキャッシュを破棄する。次のGetが再フェッチを行う。
func (s *ResourceStore) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resources = nil
	s.fetched = false
}

// Cached はフェッチを伴わずに現在のキャッシュ状態を返す。
// 2番目の戻り値はフェッチ済みかどうか。
func (s *ResourceStore) Cached() ([]model.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resources, s.fetched
}
