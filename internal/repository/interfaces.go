// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/UgochukwuChidera/resourcehub/internal/model"
)

// ResourceFilter はresourcesテーブルの検索条件を表す。
// ゼロ値のフィールドは条件に含めない。
type ResourceFilter struct {
	// Term はname/descriptionの部分一致（大文字小文字無視）と
	// keywordsの完全一致要素検索のOR条件。
	Term string
	// Year は年度の完全一致。0は未指定。
	Year int
	// Type はリソース種別の完全一致。
	Type string
	// Course はコースコードの完全一致。
	Course string
}

// ResourceRepository はリソースデータの永続化インターフェース。
type ResourceRepository interface {
	// ListAll は全リソースを作成日時の降順で返す。
	ListAll(ctx context.Context) ([]model.Resource, error)

	// Search は条件に一致するリソースを作成日時の降順で返す。
	Search(ctx context.Context, filter ResourceFilter) ([]model.Resource, error)

	// FindByID は指定IDのリソースを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Resource, error)

	// Create はリソースを作成する。
	Create(ctx context.Context, resource *model.Resource) error

	// DeleteByID は指定IDのリソースを削除する。
	DeleteByID(ctx context.Context, id string) error
}

// ProfileRepository はプロフィールデータの永続化インターフェース。
type ProfileRepository interface {
	// FindByID は指定ユーザーIDのプロフィールを取得する。
	// 行が存在しない場合はnilを返す（not-foundはエラーではない）。
	FindByID(ctx context.Context, id string) (*model.Profile, error)

	// Upsert はプロフィール行を冪等に作成・更新する。
	// 空文字列のname/avatarURLは変更せず既存値を維持する。
	Upsert(ctx context.Context, id, name, avatarURL string) error

	// SetAdmin は指定ユーザーの管理者フラグを更新する。
	// 行が存在しない場合はエラーを返す。
	SetAdmin(ctx context.Context, id string, isAdmin bool) error
}
