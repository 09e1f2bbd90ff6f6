package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/jobberwocky/internal/model"
)

// SubscriberLister は通知先の購読一覧を取得するインターフェース。
type SubscriberLister interface {
	All(ctx context.Context) ([]model.Subscription, error)
}

// Metrics は通知送信のメトリクス記録インターフェース。
type Metrics interface {
	RecordNotificationSent()
	RecordNotificationFailed()
}

// Report は1イベント分の通知結果。
type Report struct {
	Attempted int
	Sent      int
	Failed    int
}

// Dispatcher は求人作成イベントを全購読者へ配信する。状態を持たない。
type Dispatcher struct {
	subs     SubscriberLister
	renderer *Renderer
	sender   Sender
	logger   *slog.Logger
	metrics  Metrics
}

// NewDispatcher はDispatcherを生成する。metricsはnilでもよい。
func NewDispatcher(subs SubscriberLister, renderer *Renderer, sender Sender, logger *slog.Logger, metrics Metrics) *Dispatcher {
	return &Dispatcher{
		subs:     subs,
		renderer: renderer,
		sender:   sender,
		logger:   logger,
		metrics:  metrics,
	}
}

// HandleJobCreated は購読者ごとに1通ずつ通知メールを送る。
// 途中の送信失敗で打ち切らず、全購読者に送信を試みた後に失敗をまとめて返す。
func (d *Dispatcher) HandleJobCreated(ctx context.Context, event model.JobCreatedEvent) (Report, error) {
	subs, err := d.subs.All(ctx)
	if err != nil {
		return Report{}, fmt.Errorf("購読一覧の取得に失敗: %w", err)
	}

	var report Report
	var errs []error
	for _, sub := range subs {
		report.Attempted++
		if err := d.sendOne(ctx, sub.Email, event.Listing); err != nil {
			report.Failed++
			errs = append(errs, err)
			if d.metrics != nil {
				d.metrics.RecordNotificationFailed()
			}
			d.logger.Warn("通知メールの送信に失敗しました",
				slog.String("event_id", event.EventID),
				slog.String("to", sub.Email),
				slog.String("error", err.Error()),
			)
			continue
		}
		report.Sent++
		if d.metrics != nil {
			d.metrics.RecordNotificationSent()
		}
	}

	d.logger.Info("求人作成通知を配信しました",
		slog.String("event_id", event.EventID),
		slog.Int64("listing_id", event.Listing.ID),
		slog.Int("attempted", report.Attempted),
		slog.Int("sent", report.Sent),
		slog.Int("failed", report.Failed),
	)

	return report, errors.Join(errs...)
}

func (d *Dispatcher) sendOne(ctx context.Context, to string, l model.JobListing) error {
	msg, err := d.renderer.Render(to, l)
	if err != nil {
		return err
	}
	return d.sender.Send(ctx, msg)
}
