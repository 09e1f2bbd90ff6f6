// Package repository はデータ永続化のインターフェースとPostgreSQL実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/jobberwocky/internal/model"
)

// ListingRepository は求人データの永続化インターフェース。
type ListingRepository interface {
	// Create は求人を作成し、採番されたIDとタイムスタンプを含む求人を返す。
	Create(ctx context.Context, in model.ListingInput) (*model.JobListing, error)

	// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.JobListing, error)

	// Update は求人の全項目を上書きする。UpdatedAtは更新後の値で書き換える。
	// 対象が存在しない場合はLISTING_NOT_FOUNDを返す。
	Update(ctx context.Context, listing *model.JobListing) error

	// Delete は指定IDの求人を削除する。対象が存在しない場合はLISTING_NOT_FOUNDを返す。
	Delete(ctx context.Context, id int64) error

	// Query は条件に一致する求人をID昇順で返す。
	Query(ctx context.Context, filter model.ListingFilter) ([]model.JobListing, error)
}

// SubscriptionRepository はメール購読の永続化インターフェース。
type SubscriptionRepository interface {
	// Create は購読を作成する。
	// メールアドレスが登録済みの場合はDUPLICATE_EMAILを返す（一意性はストレージ層で判定する）。
	Create(ctx context.Context, sub *model.Subscription) error

	// All は全購読をID昇順で返す。
	All(ctx context.Context) ([]model.Subscription, error)
}
