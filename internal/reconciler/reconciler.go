// Package reconciler はアイデンティティプロバイダーの非同期イベントを
// ローカルのユーザービューモデルに統合するセッションリコンサイラを提供する。
//
// 状態機械は2状態のみ:
//
//	Initializing → Resolved(user=nil) | Resolved(user=LocalUser)
//
// 初回のセッション解決だけがisLoading=trueでUIをブロックし、以降の
// 定常イベント（SIGNED_IN / SIGNED_OUT / TOKEN_REFRESHED / USER_UPDATED）は
// isLoadingを変化させずにスナップショットを原子的に置き換える。
package reconciler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/UgochukwuChidera/resourcehub/internal/identity"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
)

// Phase は状態機械のフェーズを表す。
type Phase int

const (
	// PhaseInitializing は初回セッション解決の完了前。
	PhaseInitializing Phase = iota
	// PhaseResolved は初回解決の完了後。以降このフェーズから戻らない。
	PhaseResolved
)

// Snapshot はUIに公開する一貫したトリプル。
type Snapshot struct {
	User            *model.LocalUser
	IsAuthenticated bool
	IsLoading       bool
}

// EventRecorder は認証イベントの観測フック。メトリクス収集に使う。
type EventRecorder interface {
	RecordAuthEvent(eventType string)
}

// state は状態機械の内部状態。
// 不変条件: phase==PhaseResolvedかつsession==nilのときuser==nil。
type state struct {
	phase   Phase
	user    *model.LocalUser
	session *identity.Session
}

// resolvedEvent はプロフィール導出まで済ませたイベント。reducerの入力。
type resolvedEvent struct {
	typ     identity.AuthEvent
	session *identity.Session
	user    *model.LocalUser
}

// reduce は(状態, イベント) → 状態の純粋なリデューサ。
// どのイベントでもResolvedに遷移し、以後Initializingへは戻らない。
func reduce(s state, ev resolvedEvent) state {
	next := state{
		phase:   PhaseResolved,
		user:    ev.user,
		session: ev.session,
	}
	if ev.typ == identity.EventSignedOut {
		next.user = nil
		next.session = nil
	}
	return next
}

// Options はReconcilerの生成オプション。
type Options struct {
	// RefreshMargin はアクセストークン失効のどれだけ前にリフレッシュするか。
	// デフォルト60秒。
	RefreshMargin time.Duration
	// RefreshRetryInterval は一時的なリフレッシュ失敗の再試行間隔。
	// デフォルト30秒。
	RefreshRetryInterval time.Duration
	// Recorder は認証イベントの観測フック。nil可。
	Recorder EventRecorder
	// DisableRefresh はバックグラウンドのトークンリフレッシュを無効にする。
	// テスト用。
	DisableRefresh bool
}

// Reconciler は1つの論理クライアントセッションに対するセッションリコンサイラ。
type Reconciler struct {
	provider identity.Provider
	profiles repository.ProfileRepository
	opts     Options

	mu sync.RWMutex
	st state

	events    chan identity.Event
	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// New はReconcilerを生成する。Startを呼ぶまでイベントは処理されない。
func New(provider identity.Provider, profiles repository.ProfileRepository, opts Options) *Reconciler {
	if opts.RefreshMargin <= 0 {
		opts.RefreshMargin = 60 * time.Second
	}
	if opts.RefreshRetryInterval <= 0 {
		opts.RefreshRetryInterval = 30 * time.Second
	}
	return &Reconciler{
		provider: provider,
		profiles: profiles,
		opts:     opts,
		st:       state{phase: PhaseInitializing},
		events:   make(chan identity.Event, 16),
		stop:     make(chan struct{}),
	}
}

// Start は初回セッション解決を1回だけブロッキングで実行し、
// その後イベントループを起動する。initialが非nilの場合はプロバイダーで
// 有効性を確認し、無効なら未認証として解決する。
// Startから戻った時点でisLoadingは恒久的にfalseになる。
func (r *Reconciler) Start(ctx context.Context, initial *identity.Session) {
	session := r.resolveInitialSession(ctx, initial)
	r.apply(ctx, identity.Event{Type: identity.EventInitialSession, Session: session})

	r.wg.Add(1)
	go r.run()
}

// resolveInitialSession は初回の「現在のセッション取得」に相当する。
// 失敗はすべて未認証扱い（エラーでUIをブロックしない）。
func (r *Reconciler) resolveInitialSession(ctx context.Context, initial *identity.Session) *identity.Session {
	if initial == nil || initial.AccessToken == "" {
		return nil
	}

	user, err := r.provider.GetUser(ctx, initial.AccessToken)
	if err != nil {
		if identity.IsInvalidToken(err) {
			// 失効済みトークンを掴んだまま起動した場合はローカルに破棄する
			slog.Warn("initial session token is invalid, starting unauthenticated",
				slog.String("error", err.Error()),
			)
			return nil
		}
		slog.Error("initial session check failed, starting unauthenticated",
			slog.String("error", err.Error()),
		)
		return nil
	}

	resolved := *initial
	resolved.User = user
	return &resolved
}

// run はイベントループ。プロバイダーイベントを発行順に処理し、
// 併せてトークンリフレッシュをスケジュールする。
func (r *Reconciler) run() {
	defer r.wg.Done()

	var refreshTimer *time.Timer
	refreshCh := func() <-chan time.Time {
		if refreshTimer == nil {
			return nil
		}
		return refreshTimer.C
	}
	schedule := func() {
		if refreshTimer != nil {
			refreshTimer.Stop()
			refreshTimer = nil
		}
		if r.opts.DisableRefresh {
			return
		}
		sess := r.Session()
		if sess == nil || sess.RefreshToken == "" {
			return
		}
		d := time.Until(sess.ExpiresAt.Add(-r.opts.RefreshMargin))
		if d < time.Second {
			d = time.Second
		}
		refreshTimer = time.NewTimer(d)
	}

	schedule()

	for {
		select {
		case <-r.stop:
			if refreshTimer != nil {
				refreshTimer.Stop()
			}
			return

		case ev := <-r.events:
			r.apply(context.Background(), ev)
			schedule()

		case <-refreshCh():
			refreshTimer = nil
			r.refresh()
			schedule()
		}
	}
}

// apply は1イベントを処理する: LocalUserを導出し、reducerで状態を
// 原子的に置き換える。定常状態ではisLoadingは変化しない。
func (r *Reconciler) apply(ctx context.Context, ev identity.Event) {
	var raw *identity.User
	if ev.Session != nil {
		raw = ev.Session.User
	}

	// イベントごとに毎回独立してプロフィールを引き直す（コアレッシングなし）
	user := deriveLocalUser(ctx, r.profiles, raw)

	r.mu.Lock()
	r.st = reduce(r.st, resolvedEvent{typ: ev.Type, session: ev.Session, user: user})
	r.mu.Unlock()

	if r.opts.Recorder != nil {
		r.opts.Recorder.RecordAuthEvent(string(ev.Type))
	}

	slog.Debug("auth state reconciled",
		slog.String("event", string(ev.Type)),
		slog.Bool("authenticated", user != nil),
	)
}

// refresh はリフレッシュトークンで新しいセッションを取得する。
// 回復不能なトークンエラーの場合は古い管理者状態を配り続けないため
// ローカルサインアウトを強制する。
func (r *Reconciler) refresh() {
	sess := r.Session()
	if sess == nil || sess.RefreshToken == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	next, err := r.provider.RefreshToken(ctx, sess.RefreshToken)
	if err != nil {
		if identity.IsInvalidToken(err) {
			slog.Warn("refresh token is unrecoverably invalid, forcing local sign-out",
				slog.String("error", err.Error()),
			)
			// プロバイダー側の失効はベストエフォート
			if soErr := r.provider.SignOut(ctx, sess.AccessToken); soErr != nil {
				slog.Error("sign-out after invalid token failed",
					slog.String("error", soErr.Error()),
				)
			}
			r.apply(ctx, identity.Event{Type: identity.EventSignedOut})
			return
		}
		// 一時的な失敗はリトライに任せる
		slog.Error("token refresh failed", slog.String("error", err.Error()))
		return
	}

	r.apply(ctx, identity.Event{Type: identity.EventTokenRefreshed, Session: next})
}

// enqueue はイベントをループに引き渡す。停止済みの場合は破棄する。
func (r *Reconciler) enqueue(ev identity.Event) {
	select {
	case r.events <- ev:
	case <-r.stop:
	}
}

// Snapshot は現在の{user, isAuthenticated, isLoading}トリプルを返す。
func (r *Reconciler) Snapshot() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Snapshot{
		User:            r.st.user,
		IsAuthenticated: r.st.user != nil,
		IsLoading:       r.st.phase == PhaseInitializing,
	}
}

// Session は現在観測しているプロバイダーセッションを返す。未認証ならnil。
func (r *Reconciler) Session() *identity.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.st.session
}

// Login はプロバイダーにサインインを委譲する。
// 状態の更新はイベントループ経由で行われ、ここでは直接userを設定しない。
// エラーはプロバイダーのエラー形式のまま返す。
func (r *Reconciler) Login(ctx context.Context, email, password string) error {
	sess, err := r.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return err
	}
	r.enqueue(identity.Event{Type: identity.EventSignedIn, Session: sess})
	return nil
}

// Register はプロバイダーにサインアップを委譲する。
// サインアップ時にnameとイニシャルプレースホルダーのavatar_urlを
// user_metadataへ書き込む。メール確認待ちの場合はイベントを発行しない。
func (r *Reconciler) Register(ctx context.Context, email, password, name string) error {
	metadata := map[string]any{
		"name":       name,
		"avatar_url": PlaceholderAvatarURL(name),
	}
	sess, err := r.provider.SignUp(ctx, email, password, metadata)
	if err != nil {
		return err
	}
	if sess != nil {
		r.enqueue(identity.Event{Type: identity.EventSignedIn, Session: sess})
	}
	return nil
}

// Logout はプロバイダーにサインアウトを委譲する。
// 応答性のためローカルのuserとsessionを楽観的に即時クリアする。
// userとsessionは常に同時にクリアしないと、未認証のスナップショットと
// 生きたトークンが共存してしまう。
func (r *Reconciler) Logout(ctx context.Context) error {
	sess := r.Session()

	r.mu.Lock()
	r.st.user = nil
	r.st.session = nil
	r.mu.Unlock()

	if sess != nil {
		if err := r.provider.SignOut(ctx, sess.AccessToken); err != nil {
			slog.Error("provider sign-out failed", slog.String("error", err.Error()))
		}
	}
	r.enqueue(identity.Event{Type: identity.EventSignedOut})
	return nil
}

// UpdateUserMetadata は本人のname/avatar_urlメタデータを更新する。
// 成功するとUSER_UPDATEDイベント経由でLocalUserが再導出される。
func (r *Reconciler) UpdateUserMetadata(ctx context.Context, name, avatarURL string) error {
	sess := r.Session()
	if sess == nil {
		return &identity.AuthError{Message: "no active session", Status: 401}
	}

	metadata := map[string]any{}
	if name != "" {
		metadata["name"] = name
	}
	if avatarURL != "" {
		metadata["avatar_url"] = avatarURL
	}

	user, err := r.provider.UpdateUser(ctx, sess.AccessToken, metadata)
	if err != nil {
		return err
	}

	updated := *sess
	updated.User = user
	r.enqueue(identity.Event{Type: identity.EventUserUpdated, Session: &updated})
	return nil
}

// Close はイベントループを停止する。以降のイベントは破棄される。
func (r *Reconciler) Close() {
	r.closeOnce.Do(func() {
		close(r.stop)
	})
	r.wg.Wait()
}
