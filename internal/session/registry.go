// Package session はブラウザセッションごとのリコンサイラを管理する
// インメモリレジストリを提供する。
//
// セッションIDはHTTP-onlyクッキーで配布される不透明なランダム文字列で、
// トークンそのものは一切クライアントへ渡さない。トークンペアは
// リコンサイラのメモリ上にのみ存在し、永続化しない。
package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/UgochukwuChidera/resourcehub/internal/reconciler"
)

// CookieName はセッションIDクッキーの名前。
const CookieName = "resourcehub_session"

// sidBytes はセッションIDの乱数長。hex化して64文字になる。
const sidBytes = 32

// entry はレジストリの1エントリ。
type entry struct {
	rec      *reconciler.Reconciler
	lastSeen time.Time
}

// Registry はセッションIDからリコンサイラへのインメモリマップ。
// アイドル期限を超えたセッションはバックグラウンドで刈り取られる。
type Registry struct {
	idleTTL time.Duration

	mu      sync.Mutex
	entries map[string]*entry

	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewRegistry はRegistryを生成し、刈り取りループを起動する。
func NewRegistry(idleTTL time.Duration) *Registry {
	if idleTTL <= 0 {
		idleTTL = 2 * time.Hour
	}
	r := &Registry{
		idleTTL: idleTTL,
		entries: make(map[string]*entry),
		stop:    make(chan struct{}),
	}
	r.wg.Add(1)
	go r.reapLoop()
	return r
}

// Put は新しいセッションIDを発行してリコンサイラを登録する。
func (r *Registry) Put(rec *reconciler.Reconciler) (string, error) {
	sid, err := newSessionID()
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	r.entries[sid] = &entry{rec: rec, lastSeen: time.Now()}
	r.mu.Unlock()
	return sid, nil
}

// Lookup はセッションIDに対応するリコンサイラを返し、
// 最終アクセス時刻を更新する。
func (r *Registry) Lookup(sid string) (*reconciler.Reconciler, bool) {
	if sid == "" {
		return nil, false
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[sid]
	if !ok {
		return nil, false
	}
	e.lastSeen = time.Now()
	return e.rec, true
}

// Delete はセッションを破棄してリコンサイラを停止する。
// 存在しないIDの削除は何もしない。
func (r *Registry) Delete(sid string) {
	r.mu.Lock()
	e, ok := r.entries[sid]
	if ok {
		delete(r.entries, sid)
	}
	r.mu.Unlock()

	if ok {
		e.rec.Close()
	}
}

// Len は現在のセッション数を返す。
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Close は刈り取りループを停止して全セッションを破棄する。
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()

	r.mu.Lock()
	stale := make([]*entry, 0, len(r.entries))
	for sid, e := range r.entries {
		stale = append(stale, e)
		delete(r.entries, sid)
	}
	r.mu.Unlock()

	for _, e := range stale {
		e.rec.Close()
	}
}

// reapLoop はアイドル期限を超えたセッションを定期的に破棄する。
func (r *Registry) reapLoop() {
	defer r.wg.Done()

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-r.stop:
			return
		case <-ticker.C:
			r.reap(time.Now())
		}
	}
}

// reap はカットオフ時点でアイドル期限を超えているエントリを破棄する。
func (r *Registry) reap(now time.Time) {
	cutoff := now.Add(-r.idleTTL)

	r.mu.Lock()
	var stale []*entry
	for sid, e := range r.entries {
		if e.lastSeen.Before(cutoff) {
			stale = append(stale, e)
			delete(r.entries, sid)
		}
	}
	r.mu.Unlock()

	// ロック外でClose（リコンサイラの停止待ちを他セッションに波及させない）
	for _, e := range stale {
		e.rec.Close()
	}
}

// newSessionID は暗号乱数由来のセッションIDを生成する。
func newSessionID() (string, error) {
	buf := make([]byte, sidBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
