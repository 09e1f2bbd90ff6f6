package model

import "time"

// JobCreatedEvent は求人作成直後に発行されるイベント。
// 作成された求人のスナップショットを保持し、通知処理の間だけ存在する。
type JobCreatedEvent struct {
	EventID    string     `json:"event_id"`
	Listing    JobListing `json:"listing"`
	OccurredAt time.Time  `json:"occurred_at"`
}
