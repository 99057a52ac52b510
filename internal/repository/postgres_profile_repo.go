package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
)

// PostgresProfileRepo はPostgreSQLを使用したプロフィールリポジトリ。
type PostgresProfileRepo struct {
	db *sql.DB
}

// NewPostgresProfileRepo はPostgresProfileRepoを生成する。
func NewPostgresProfileRepo(db *sql.DB) *PostgresProfileRepo {
	return &PostgresProfileRepo{db: db}
}

// FindByID は指定ユーザーIDのプロフィールを取得する。
// 行が存在しない場合はnilを返す（not-foundはエラーではない）。
func (r *PostgresProfileRepo) FindByID(ctx context.Context, id string) (*model.Profile, error) {
	profile := &model.Profile{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, avatar_url, is_admin, updated_at
		 FROM profiles
		 WHERE id = $1`,
		id,
	).Scan(&profile.ID, &profile.Name, &profile.AvatarURL, &profile.IsAdmin, &profile.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find profile: %w", err)
	}

	return profile, nil
}

// Upsert はプロフィール行を冪等に作成・更新する。
// 空文字列のname/avatarURLは変更せず既存値を維持する部分更新を行う。
// is_adminはこの経路では変更できない。
func (r *PostgresProfileRepo) Upsert(ctx context.Context, id, name, avatarURL string) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO profiles (id, name, avatar_url, updated_at)
		 VALUES ($1, $2, $3, now())
		 ON CONFLICT (id) DO UPDATE SET
		   name       = CASE WHEN EXCLUDED.name = '' THEN profiles.name ELSE EXCLUDED.name END,
		   avatar_url = CASE WHEN EXCLUDED.avatar_url = '' THEN profiles.avatar_url ELSE EXCLUDED.avatar_url END,
		   updated_at = now()`,
		id, name, avatarURL,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}
	return nil
}

// SetAdmin は指定ユーザーの管理者フラグを更新する。
// is_adminを変更できる唯一の経路。プロフィール行が存在しない場合はエラー。
func (r *PostgresProfileRepo) SetAdmin(ctx context.Context, id string, isAdmin bool) error {
	result, err := r.db.ExecContext(ctx,
		`UPDATE profiles SET is_admin = $2, updated_at = now() WHERE id = $1`,
		id, isAdmin,
	)
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set admin flag: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("profile not found: %s", id)
	}
	return nil
}

// compile-time interface check
var _ ProfileRepository = (*PostgresProfileRepo)(nil)
