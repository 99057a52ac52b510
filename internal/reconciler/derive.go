package reconciler

import (
	"context"
	"log/slog"
	"net/url"
	"strings"

	"github.com/UgochukwuChidera/resourcehub/internal/identity"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
)

// placeholderAvatarBase はイニシャルプレースホルダー画像のベースURL。
const placeholderAvatarBase = "https://placehold.co/100x100.png"

// Merge はプロバイダーの生ユーザーとプロフィール行からLocalUserを構築する。
// 優先順位: (1) プロフィール行 (2) プロバイダーメタデータ (3) 計算フォールバック。
// profileはnil可（行が存在しない場合）。ネットワークに依存しない純粋関数。
func Merge(raw *identity.User, profile *model.Profile) *model.LocalUser {
	if raw == nil {
		return nil
	}

	displayName := ""
	avatarURL := ""
	isAdmin := false

	if profile != nil {
		displayName = profile.Name
		avatarURL = profile.AvatarURL
		isAdmin = profile.IsAdmin
	}

	if displayName == "" {
		displayName = raw.MetadataString("name")
	}
	if displayName == "" {
		displayName = emailLocalPart(raw.Email)
	}
	if displayName == "" {
		displayName = "User"
	}

	if avatarURL == "" {
		avatarURL = raw.MetadataString("avatar_url")
	}
	if avatarURL == "" {
		avatarURL = PlaceholderAvatarURL(displayName)
	}

	return &model.LocalUser{
		ID:          raw.ID,
		Email:       raw.Email,
		DisplayName: displayName,
		AvatarURL:   avatarURL,
		IsAdmin:     isAdmin,
	}
}

// deriveLocalUser はプロフィール行を取得してMergeを適用する。
// 行が存在しない場合は空プロフィール扱い（エラーではない）。
// それ以外の取得エラーはログに記録してフォールバックで続行する
// （可用性優先: プロフィール取得失敗でサインインを妨げない）。
func deriveLocalUser(ctx context.Context, profiles repository.ProfileRepository, raw *identity.User) *model.LocalUser {
	if raw == nil {
		return nil
	}

	var profile *model.Profile
	if profiles != nil {
		p, err := profiles.FindByID(ctx, raw.ID)
		if err != nil {
			slog.Error("failed to fetch profile for user derivation, continuing with fallback",
				slog.String("user_id", raw.ID),
				slog.String("error", err.Error()),
			)
		} else {
			profile = p
		}
	}

	return Merge(raw, profile)
}

// emailLocalPart はメールアドレスの@より前の部分を返す。
func emailLocalPart(email string) string {
	if email == "" {
		return ""
	}
	if i := strings.Index(email, "@"); i > 0 {
		return email[:i]
	}
	return email
}

// Initials は表示名から1〜2文字のイニシャルを大文字で返す。
// 2語以上なら先頭2語の頭文字、1語なら先頭2文字を使う。
func Initials(name string) string {
	fields := strings.Fields(name)
	switch {
	case len(fields) >= 2:
		return strings.ToUpper(firstRune(fields[0]) + firstRune(fields[1]))
	case len(fields) == 1:
		runes := []rune(fields[0])
		if len(runes) >= 2 {
			return strings.ToUpper(string(runes[:2]))
		}
		return strings.ToUpper(string(runes))
	}
	return "U"
}

// PlaceholderAvatarURL は表示名のイニシャルを載せたプレースホルダー画像URLを生成する。
func PlaceholderAvatarURL(displayName string) string {
	return placeholderAvatarBase + "?text=" + url.QueryEscape(Initials(displayName))
}

func firstRune(s string) string {
	for _, r := range s {
		return string(r)
	}
	return ""
}
