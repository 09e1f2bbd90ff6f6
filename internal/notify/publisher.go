package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hitoshi/jobberwocky/internal/model"
)

// DefaultQueueKey は求人作成イベントを積むRedisリストのキー。
const DefaultQueueKey = "jobberwocky:events:job_created"

// EventHandler は求人作成イベントの処理インターフェース。Dispatcherが実装する。
type EventHandler interface {
	HandleJobCreated(ctx context.Context, event model.JobCreatedEvent) (Report, error)
}

// InProcessPublisher はイベントを同一プロセスのゴルーチンで処理する。
// リクエストのキャンセルとは切り離して配信し、作成レスポンスを待たせない。
type InProcessPublisher struct {
	handler EventHandler
	logger  *slog.Logger
	wg      sync.WaitGroup
}

// NewInProcessPublisher はInProcessPublisherを生成する。
func NewInProcessPublisher(handler EventHandler, logger *slog.Logger) *InProcessPublisher {
	return &InProcessPublisher{handler: handler, logger: logger}
}

// Publish は配信をバックグラウンドで開始し、即座に戻る。
func (p *InProcessPublisher) Publish(ctx context.Context, event model.JobCreatedEvent) error {
	dctx := context.WithoutCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer func() {
			if rec := recover(); rec != nil {
				p.logger.Error("求人作成通知の配信中にpanicが発生しました",
					slog.Any("panic", rec),
					slog.String("event_id", event.EventID),
					slog.String("stack", string(debug.Stack())),
				)
			}
		}()
		if _, err := p.handler.HandleJobCreated(dctx, event); err != nil {
			p.logger.Error("求人作成通知の配信でエラーが発生しました",
				slog.String("event_id", event.EventID),
				slog.String("error", err.Error()),
			)
		}
	}()
	return nil
}

// Wait は実行中の配信がすべて終わるまで待つ。シャットダウン時に呼ぶ。
func (p *InProcessPublisher) Wait() {
	p.wg.Wait()
}

// RedisPublisher はイベントをJSONとしてRedisリストに積む。
// 配信はworkerサブコマンドのQueueConsumerが行う。
type RedisPublisher struct {
	client *redis.Client
	key    string
}

// NewRedisPublisher はRedisPublisherを生成する。keyが空の場合はDefaultQueueKeyを使う。
func NewRedisPublisher(client *redis.Client, key string) *RedisPublisher {
	if key == "" {
		key = DefaultQueueKey
	}
	return &RedisPublisher{client: client, key: key}
}

// Publish はイベントをキューの末尾に追加する。
func (p *RedisPublisher) Publish(ctx context.Context, event model.JobCreatedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("イベントのエンコードに失敗: %w", err)
	}
	if err := p.client.RPush(ctx, p.key, payload).Err(); err != nil {
		return fmt.Errorf("イベントのキュー投入に失敗: %w", err)
	}
	return nil
}

// QueueConsumer はRedisリストからイベントを取り出して配信する。
type QueueConsumer struct {
	client  *redis.Client
	key     string
	handler EventHandler
	logger  *slog.Logger
	block   time.Duration
}

// NewQueueConsumer はQueueConsumerを生成する。keyが空の場合はDefaultQueueKeyを使う。
func NewQueueConsumer(client *redis.Client, key string, handler EventHandler, logger *slog.Logger) *QueueConsumer {
	if key == "" {
		key = DefaultQueueKey
	}
	return &QueueConsumer{
		client:  client,
		key:     key,
		handler: handler,
		logger:  logger,
		block:   5 * time.Second,
	}
}

// Run はコンテキストがキャンセルされるまでイベントを処理し続ける。
func (c *QueueConsumer) Run(ctx context.Context) error {
	c.logger.Info("通知キューの購読を開始しました", slog.String("queue", c.key))
	for {
		if ctx.Err() != nil {
			c.logger.Info("通知キューの購読を停止しました")
			return nil
		}
		if _, err := c.ProcessOne(ctx); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("通知キューの購読を停止しました")
				return nil
			}
			c.logger.Error("通知キューの処理に失敗しました", slog.String("error", err.Error()))
			// Redis障害時に空回りしないよう少し待つ
			select {
			case <-ctx.Done():
			case <-time.After(time.Second):
			}
		}
	}
}

// ProcessOne はイベントを1件取り出して配信する。
// タイムアウトまでにイベントがなければfalseを返す。
// デコードできないイベントはログに記録して破棄する。
func (c *QueueConsumer) ProcessOne(ctx context.Context) (bool, error) {
	res, err := c.client.BLPop(ctx, c.block, c.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("キューの読み取りに失敗: %w", err)
	}

	// BLPOPは [key, value] を返す
	var event model.JobCreatedEvent
	if err := json.Unmarshal([]byte(res[1]), &event); err != nil {
		c.logger.Error("イベントのデコードに失敗したため破棄します",
			slog.String("payload", res[1]),
			slog.String("error", err.Error()),
		)
		return true, nil
	}

	if _, err := c.handler.HandleJobCreated(ctx, event); err != nil {
		c.logger.Error("求人作成通知の配信でエラーが発生しました",
			slog.String("event_id", event.EventID),
			slog.String("error", err.Error()),
		)
	}
	return true, nil
}
