// Package model はドメインモデルを定義する。
package model

import "time"

// Profile はprofilesテーブルの1行を表す。
// アイデンティティプロバイダー側のユーザーIDをキーとする補助情報。
type Profile struct {
	ID        string
	Name      string
	AvatarURL string
	IsAdmin   bool
	UpdatedAt time.Time
}

// LocalUser はセッションから導出されたアプリケーション内のユーザービューモデル。
// プロフィール行・プロバイダーメタデータ・計算フォールバックの3段階の
// 優先順位マージで構築される。有効なセッションが存在しない場合はnilになる
// （nil iff 未認証、の不変条件）。
type LocalUser struct {
	ID          string
	Email       string
	DisplayName string
	AvatarURL   string
	IsAdmin     bool
}
