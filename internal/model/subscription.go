package model

import "time"

// Subscription は新着求人通知のメール購読を表す。
// 作成のみ可能で、更新・削除の操作は存在しない。
type Subscription struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
