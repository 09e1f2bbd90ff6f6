// Package listing は求人の作成、取得、更新、削除のドメインロジックを提供する。
// 作成が永続化された時点で JobCreatedEvent をちょうど1回発行する。
package listing

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/jobberwocky/internal/model"
	"github.com/hitoshi/jobberwocky/internal/repository"
)

// EventPublisher は求人作成イベントの発行インターフェース。
// 発行は作成レスポンスを待たせてはならない。
type EventPublisher interface {
	Publish(ctx context.Context, event model.JobCreatedEvent) error
}

// Metrics は求人操作のメトリクス記録インターフェース。
type Metrics interface {
	RecordListingCreated()
}

// Service は求人管理のサービス層。
type Service struct {
	repo      repository.ListingRepository
	publisher EventPublisher
	logger    *slog.Logger
	metrics   Metrics
	now       func() time.Time
}

// NewService はServiceを生成する。metricsはnilでもよい。
func NewService(repo repository.ListingRepository, publisher EventPublisher, logger *slog.Logger, metrics Metrics) *Service {
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// Create は求人を検証して保存し、作成イベントを発行する。
// 検証に失敗した場合は何も保存せず、イベントも発行しない。
// イベント発行の失敗はログに記録するのみで、作成自体は成功として扱う。
func (s *Service) Create(ctx context.Context, raw map[string]json.RawMessage) (*model.JobListing, error) {
	in, err := ValidateCreate(raw)
	if err != nil {
		return nil, err
	}

	listing, err := s.repo.Create(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("求人の保存に失敗しました: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordListingCreated()
	}

	event := model.JobCreatedEvent{
		EventID:    uuid.NewString(),
		Listing:    *listing,
		OccurredAt: s.now().UTC(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.Error("求人作成イベントの発行に失敗しました",
			slog.String("event_id", event.EventID),
			slog.Int64("listing_id", listing.ID),
			slog.String("error", err.Error()),
		)
	} else {
		s.logger.Info("求人作成イベントを発行しました",
			slog.String("event_id", event.EventID),
			slog.Int64("listing_id", listing.ID),
		)
	}

	return listing, nil
}

// Get は指定IDの求人を返す。存在しない場合はLISTING_NOT_FOUNDを返す。
func (s *Service) Get(ctx context.Context, id int64) (*model.JobListing, error) {
	listing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	if listing == nil {
		return nil, model.NewListingNotFoundError(strconv.FormatInt(id, 10))
	}
	return listing, nil
}

// Update は求人を部分更新する。
// 存在確認をペイロード検証より先に行うため、存在しないIDは内容によらずLISTING_NOT_FOUNDになる。
func (s *Service) Update(ctx context.Context, id int64, raw map[string]json.RawMessage) (*model.JobListing, error) {
	listing, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	patch, err := ValidatePatch(raw)
	if err != nil {
		return nil, err
	}

	patch.Apply(listing)
	if err := s.repo.Update(ctx, listing); err != nil {
		if model.IsCode(err, model.ErrCodeListingNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("求人の更新に失敗しました: %w", err)
	}
	return listing, nil
}

// Delete は指定IDの求人を削除する。存在しない場合はLISTING_NOT_FOUNDを返す。
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if model.IsCode(err, model.ErrCodeListingNotFound) {
			return err
		}
		return fmt.Errorf("求人の削除に失敗しました: %w", err)
	}
	return nil
}

// ParseID はパスパラメータの求人IDを解析する。
// 正の整数でない場合は該当する求人が存在しないものとしてLISTING_NOT_FOUNDを返す。
func ParseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, model.NewListingNotFoundError(s)
	}
	return id, nil
}
