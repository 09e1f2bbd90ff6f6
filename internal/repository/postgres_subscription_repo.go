package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/hitoshi/jobberwocky/internal/model"
)

// PostgreSQLの一意制約違反エラーコード
const pqUniqueViolation = "23505"

// PostgresSubscriptionRepo はPostgreSQLを使用した購読リポジトリ。
type PostgresSubscriptionRepo struct {
	db *sql.DB
}

// NewPostgresSubscriptionRepo はPostgresSubscriptionRepoを生成する。
func NewPostgresSubscriptionRepo(db *sql.DB) *PostgresSubscriptionRepo {
	return &PostgresSubscriptionRepo{db: db}
}

// Create は購読を作成し、採番されたIDとタイムスタンプをsubに設定する。
// 一意インデックス違反はDUPLICATE_EMAILに変換する。
func (r *PostgresSubscriptionRepo) Create(ctx context.Context, sub *model.Subscription) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO subscriptions (email) VALUES ($1)
		 RETURNING id, created_at, updated_at`,
		sub.Email,
	).Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt)
	if isUniqueViolation(err) {
		return model.NewDuplicateEmailError(sub.Email)
	}
	if err != nil {
		return fmt.Errorf("購読の作成に失敗しました: %w", err)
	}
	return nil
}

// All は全購読をID昇順で返す。
func (r *PostgresSubscriptionRepo) All(ctx context.Context) ([]model.Subscription, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, email, created_at, updated_at FROM subscriptions ORDER BY id ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("購読一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	subs := make([]model.Subscription, 0)
	for rows.Next() {
		var sub model.Subscription
		if err := rows.Scan(&sub.ID, &sub.Email, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("購読行の読み取りに失敗しました: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("購読一覧の走査に失敗しました: %w", err)
	}
	return subs, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation
}
