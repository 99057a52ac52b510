package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/UgochukwuChidera/resourcehub/internal/identity"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/reconciler"
)

// ReconcilerFactory は新しいブラウザセッション用のリコンサイラを生成する。
// 依存（プロバイダー・プロフィールリポジトリ・オプション）の注入はアプリ初期化側が行う。
type ReconcilerFactory func() *reconciler.Reconciler

// Manager はログイン・登録・ログアウトのセッションライフサイクルを取り仕切る。
// プロバイダーでの認証成功後にリコンサイラを生成してRegistryに登録し、
// 以降のリクエストはセッションIDのCookieでリコンサイラを引き当てる。
type Manager struct {
	provider identity.Provider
	registry *Registry
	factory  ReconcilerFactory
}

// NewManager はManagerを生成する。
func NewManager(provider identity.Provider, registry *Registry, factory ReconcilerFactory) *Manager {
	return &Manager{
		provider: provider,
		registry: registry,
		factory:  factory,
	}
}

// Login はメール・パスワードでサインインし、新しいセッションエントリを作成する。
// 戻り値はセッションIDと初期解決済みのスナップショット。
func (m *Manager) Login(ctx context.Context, email, password string) (string, reconciler.Snapshot, error) {
	sess, err := m.provider.SignInWithPassword(ctx, email, password)
	if err != nil {
		return "", reconciler.Snapshot{}, asCredentialsError(err)
	}

	return m.startSession(ctx, sess)
}

// Register は新規ユーザーを登録する。user_metadataにはnameと
// イニシャルから生成したプレースホルダーアバターURLを書き込む。
// プロバイダーがメール確認待ちでセッションを返さない場合、
// pending=trueを返しセッションエントリは作成しない。
func (m *Manager) Register(ctx context.Context, email, password, name string) (sid string, snap reconciler.Snapshot, pending bool, err error) {
	metadata := map[string]any{
		"name":       name,
		"avatar_url": reconciler.PlaceholderAvatarURL(name),
	}

	sess, err := m.provider.SignUp(ctx, email, password, metadata)
	if err != nil {
		return "", reconciler.Snapshot{}, false, asRegistrationError(err)
	}

	if sess == nil {
		return "", reconciler.Snapshot{}, true, nil
	}

	sid, snap, err = m.startSession(ctx, sess)
	return sid, snap, false, err
}

// Logout は指定セッションのリコンサイラにサインアウトさせ、エントリを破棄する。
// セッションが既に存在しない場合も成功として扱う（冪等）。
func (m *Manager) Logout(ctx context.Context, sid string) error {
	rec, ok := m.registry.Lookup(sid)
	if !ok {
		return nil
	}

	if err := rec.Logout(ctx); err != nil {
		slog.Error("logout failed", slog.String("error", err.Error()))
	}

	m.registry.Delete(sid)
	return nil
}

// Snapshot は指定セッションの現在のスナップショットを返す。
func (m *Manager) Snapshot(sid string) (reconciler.Snapshot, bool) {
	rec, ok := m.registry.Lookup(sid)
	if !ok {
		return reconciler.Snapshot{}, false
	}
	return rec.Snapshot(), true
}

// startSession はプロバイダーセッションからリコンサイラを起動しRegistryへ登録する。
// Startは初期解決を同期的に行うため、返却時点のスナップショットは確定している。
func (m *Manager) startSession(ctx context.Context, sess *identity.Session) (string, reconciler.Snapshot, error) {
	rec := m.factory()
	rec.Start(ctx, sess)

	sid, err := m.registry.Put(rec)
	if err != nil {
		rec.Close()
		return "", reconciler.Snapshot{}, fmt.Errorf("failed to register session: %w", err)
	}

	return sid, rec.Snapshot(), nil
}

// asCredentialsError はプロバイダーのサインイン失敗をAPIErrorへ変換する。
// プロバイダーのメッセージは加工せずそのまま載せる。
func asCredentialsError(err error) error {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		return model.NewInvalidCredentialsError(authErr.Message)
	}
	return fmt.Errorf("sign-in failed: %w", err)
}

// asRegistrationError はプロバイダーのサインアップ失敗をAPIErrorへ変換する。
func asRegistrationError(err error) error {
	var authErr *identity.AuthError
	if errors.As(err, &authErr) {
		if authErr.Code == identity.CodeWeakPassword {
			return model.NewWeakPasswordError()
		}
		return model.NewInvalidCredentialsError(authErr.Message)
	}
	return fmt.Errorf("sign-up failed: %w", err)
}
