// Package admin は管理機能（署名付きURL発行、ユーザーパスワード更新、
// プロフィール更新）のアプリケーションサービスを提供する。
// いずれもサービスロール権限や事前検証を要する操作で、
// 一般のリソースAPIとは別のエンドポイント群から呼ばれる。
package admin

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/UgochukwuChidera/resourcehub/internal/identity"
	"github.com/UgochukwuChidera/resourcehub/internal/model"
	"github.com/UgochukwuChidera/resourcehub/internal/repository"
	"github.com/UgochukwuChidera/resourcehub/internal/resource"
	"github.com/UgochukwuChidera/resourcehub/internal/security"
	"github.com/UgochukwuChidera/resourcehub/internal/storage"
)

// minPasswordLength はパスワードの最小文字数。
const minPasswordLength = 6

// Service は管理操作のアプリケーションサービス。
type Service struct {
	provider identity.Provider
	profiles repository.ProfileRepository
	files    resource.FileStore
	guard    security.AvatarGuardService

	// usersPerPage / maxPages はAdminListUsersのページネーション上限。
	usersPerPage int
	maxPages     int
}

// NewService はServiceを生成する。
func NewService(
	provider identity.Provider,
	profiles repository.ProfileRepository,
	files resource.FileStore,
	guard security.AvatarGuardService,
	usersPerPage, maxPages int,
) *Service {
	if usersPerPage <= 0 {
		usersPerPage = 1000
	}
	if maxPages <= 0 {
		maxPages = 100
	}
	return &Service{
		provider:     provider,
		profiles:     profiles,
		files:        files,
		guard:        guard,
		usersPerPage: usersPerPage,
		maxPages:     maxPages,
	}
}

// GenerateURL は任意のストレージキーに対する署名付きダウンロードURLを発行する。
// URLはファイル名（キーの最後のスラッシュ以降）をattachmentとして配信させる。
func (s *Service) GenerateURL(ctx context.Context, filePath string) (string, error) {
	filePath = strings.TrimSpace(filePath)
	if filePath == "" {
		return "", model.NewMissingFieldError("filePath")
	}
	if strings.Contains(filePath, "..") {
		return "", model.NewInvalidFilePathError("file path must not contain relative segments")
	}

	signed, err := s.files.PresignDownload(ctx, filePath)
	if err != nil {
		return "", model.NewSignedURLFailedError(err.Error())
	}

	slog.Info("signed URL generated",
		slog.String("file_name", storage.FileNameFromKey(filePath)),
	)
	return signed, nil
}

// UpdatePassword は指定メールアドレスのユーザーのパスワードを更新する。
// 弱いパスワードはユーザー検索を行う前に拒否する。
// 呼び出し元が管理者であることの確認もここで行う。
func (s *Service) UpdatePassword(ctx context.Context, actor *model.LocalUser, email, newPassword string) error {
	// ルックアップより先に検証する（無駄なページ走査を避ける）
	if len(newPassword) < minPasswordLength {
		return model.NewWeakPasswordError()
	}
	if actor == nil {
		return model.NewUnauthorizedError()
	}
	if !actor.IsAdmin {
		return model.NewForbiddenError()
	}

	email = strings.TrimSpace(email)
	if email == "" {
		return model.NewMissingFieldError("userEmailToUpdate")
	}

	target, err := s.findUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if target == nil {
		return model.NewUserNotFoundError(email)
	}

	if _, err := s.provider.AdminUpdateUserByID(ctx, target.ID, identity.AdminUserUpdate{
		Password: &newPassword,
	}); err != nil {
		return err
	}

	slog.Info("password updated by admin",
		slog.String("admin_id", actor.ID),
		slog.String("target_id", target.ID),
	)
	return nil
}

// findUserByEmail は管理APIのページネーションを辿ってメールアドレスで
// ユーザーを検索する。大文字小文字は無視する。見つからない場合はnil。
func (s *Service) findUserByEmail(ctx context.Context, email string) (*identity.User, error) {
	lower := strings.ToLower(email)

	for page := 1; page <= s.maxPages; page++ {
		users, err := s.provider.AdminListUsers(ctx, page, s.usersPerPage)
		if err != nil {
			return nil, err
		}
		for _, u := range users.Users {
			if strings.ToLower(u.Email) == lower {
				return u, nil
			}
		}
		if users.NextPage == 0 {
			break
		}
	}
	return nil, nil
}

// ResolveActor は検証済みトークンのユーザーIDから操作主体を構築する。
// 管理者権限はprofiles行のis_adminのみを信頼し、トークンのクレームからは導出しない。
// userIDが空の場合はnilを返す（未認証扱い）。
func (s *Service) ResolveActor(ctx context.Context, userID string) (*model.LocalUser, error) {
	if userID == "" {
		return nil, nil
	}

	profile, err := s.profiles.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve actor profile: %w", err)
	}

	actor := &model.LocalUser{ID: userID}
	if profile != nil {
		actor.DisplayName = profile.Name
		actor.AvatarURL = profile.AvatarURL
		actor.IsAdmin = profile.IsAdmin
	}
	return actor, nil
}

// ProfileUpdateInput はプロフィール更新の入力。空フィールドは変更しない。
type ProfileUpdateInput struct {
	Name      string
	AvatarURL string
}

// UpdateProfile は本人のプロフィールを更新する。
// プロバイダーのユーザーメタデータとprofiles行の両方に書き込む。
// アバターURLは事前にSSRF検証を行う。
func (s *Service) UpdateProfile(ctx context.Context, accessToken, userID string, input ProfileUpdateInput) error {
	if accessToken == "" || userID == "" {
		return model.NewUnauthorizedError()
	}
	if input.Name == "" && input.AvatarURL == "" {
		return model.NewMissingFieldError("name or avatarUrl")
	}

	if input.AvatarURL != "" {
		if err := s.guard.ValidateAvatarURL(input.AvatarURL); err != nil {
			return model.NewInvalidAvatarURLError(err.Error())
		}
	}

	metadata := map[string]any{}
	if input.Name != "" {
		metadata["name"] = input.Name
	}
	if input.AvatarURL != "" {
		metadata["avatar_url"] = input.AvatarURL
	}

	if _, err := s.provider.UpdateUser(ctx, accessToken, metadata); err != nil {
		return err
	}

	// profiles行はUIでの表示優先度が最も高いので両方へ書き込む
	if err := s.profiles.Upsert(ctx, userID, input.Name, input.AvatarURL); err != nil {
		return err
	}

	slog.Info("profile updated", slog.String("user_id", userID))
	return nil
}
