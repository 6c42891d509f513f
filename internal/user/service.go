// Package user はアカウントに対応するプロフィールの管理を提供する。
package user

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/ministry/internal/model"
	"github.com/hitoshi/ministry/internal/repository"
)

// Service はプロフィール管理のサービス層。
type Service struct {
	profiles repository.ProfileRepository
	now      func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(profiles repository.ProfileRepository) *Service {
	return &Service{profiles: profiles, now: time.Now}
}

// EnsureProfile はアカウントに対応するプロフィールを返す。存在しなければ作成する。
// 新規作成時の管理者フラグは常にfalse。
// 同時に作成された場合も一意制約により1件だけが残る。
func (s *Service) EnsureProfile(ctx context.Context, account *model.Account) (*model.Profile, error) {
	profile, err := s.profiles.FindByID(ctx, account.ID)
	if err != nil {
		return nil, model.NewDataServiceError("find profile", err)
	}
	if profile != nil {
		return profile, nil
	}

	created := &model.Profile{
		ID:        account.ID,
		Email:     account.Email,
		FullName:  strings.TrimSpace(account.FullName),
		IsAdmin:   false,
		CreatedAt: s.now(),
	}
	if err := s.profiles.CreateIfAbsent(ctx, created); err != nil {
		return nil, model.NewDataServiceError("create profile", err)
	}

	profile, err = s.profiles.FindByID(ctx, account.ID)
	if err != nil {
		return nil, model.NewDataServiceError("find profile", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError(account.ID)
	}

	slog.Info("profile created", slog.String("user_id", account.ID))
	return profile, nil
}

// SetAdmin はメールアドレスで指定したプロフィールの管理者フラグを更新する。
// プロフィールはアカウントの初回認証時に作成されるため、未認証のユーザーは昇格できない。
func (s *Service) SetAdmin(ctx context.Context, email string, isAdmin bool) (*model.Profile, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	profile, err := s.profiles.FindByEmail(ctx, email)
	if err != nil {
		return nil, model.NewDataServiceError("find profile", err)
	}
	if profile == nil {
		return nil, model.NewProfileNotFoundError(email)
	}

	if profile.IsAdmin == isAdmin {
		return profile, nil
	}
	if err := s.profiles.SetAdmin(ctx, profile.ID, isAdmin); err != nil {
		return nil, model.NewDataServiceError("update admin flag", err)
	}
	profile.IsAdmin = isAdmin

	slog.Info("admin flag updated",
		slog.String("user_id", profile.ID),
		slog.Bool("is_admin", isAdmin),
	)
	return profile, nil
}
