// Package subscription は新着求人通知のメール購読登録を提供する。
package subscription

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/jobberwocky/internal/model"
	"github.com/hitoshi/jobberwocky/internal/repository"
)

var validate = validator.New()

// ValidateEmail はメールアドレスを検証し、前後の空白を除去した値を返す。
func ValidateEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if err := validate.Var(email, "required"); err != nil {
		return "", model.NewValidationError(map[string]string{"email": "必須項目です"})
	}
	if err := validate.Var(email, "email,max=255"); err != nil {
		return "", model.NewValidationError(map[string]string{"email": "メールアドレスの形式が不正です"})
	}
	return email, nil
}

// Service はメール購読のサービス層。作成のみを提供する。
type Service struct {
	repo   repository.SubscriptionRepository
	logger *slog.Logger
}

// NewService はServiceを生成する。
func NewService(repo repository.SubscriptionRepository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// Subscribe はメールアドレスを検証して購読を登録する。
// 一意性は確認してから挿入するのではなく、ストレージ層の一意制約で判定する。
func (s *Service) Subscribe(ctx context.Context, email string) (*model.Subscription, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return nil, err
	}

	sub := &model.Subscription{Email: email}
	if err := s.repo.Create(ctx, sub); err != nil {
		if model.IsCode(err, model.ErrCodeDuplicateEmail) {
			return nil, err
		}
		return nil, fmt.Errorf("購読の登録に失敗しました: %w", err)
	}

	s.logger.Info("購読を登録しました", slog.Int64("subscription_id", sub.ID))
	return sub, nil
}
