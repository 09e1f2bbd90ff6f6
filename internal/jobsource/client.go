// Package jobsource は外部求人ソース（Jobberwocky extra source）のアダプタを提供する。
// 国名ごとにまとめられた位置配列形式のレスポンスを取得し、
// 内部の ExternalListing 形式に正規化する。
package jobsource

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/jobberwocky/internal/model"
)

const (
	// jobsPath は外部求人ソースの検索エンドポイントのパス。
	jobsPath = "/jobs"
	// defaultMaxResponseSize はレスポンスボディの既定上限（5MB）。
	defaultMaxResponseSize int64 = 5 * 1024 * 1024
)

// Metrics は外部求人ソース取得に関するメトリクス記録のインターフェース。
type Metrics interface {
	RecordExternalFetchSuccess()
	RecordExternalFetchFailure(reason string)
	RecordExternalHTTPStatus(statusCode int)
	RecordExternalFetchLatency(duration time.Duration)
	RecordSkillsParseFailure()
}

// Client は外部求人ソースのHTTPクライアント。
type Client struct {
	httpClient      *http.Client
	baseURL         string
	maxResponseSize int64
	logger          *slog.Logger
	metrics         Metrics
}

// NewClient はClientを生成する。
// タイムアウトはhttpClient側で設定する。maxResponseSizeが0以下の場合は既定値を使用する。
// metricsはnilでもよい。
func NewClient(httpClient *http.Client, baseURL string, maxResponseSize int64, logger *slog.Logger, metrics Metrics) *Client {
	if maxResponseSize <= 0 {
		maxResponseSize = defaultMaxResponseSize
	}
	return &Client{
		httpClient:      httpClient,
		baseURL:         strings.TrimRight(baseURL, "/"),
		maxResponseSize: maxResponseSize,
		logger:          logger,
		metrics:         metrics,
	}
}

// FetchJobs は外部求人ソースを検索し、正規化した求人一覧を返す。
// rawQueryは受信したクエリ文字列をそのまま転送する（再エンコードしない）。
// 出力順はレスポンス内の国名キーの出現順、同一国内はリストの順序に従う。
func (c *Client) FetchJobs(ctx context.Context, rawQuery string) ([]model.ExternalListing, error) {
	start := time.Now()
	listings, err := c.fetch(ctx, rawQuery)
	if c.metrics != nil {
		c.metrics.RecordExternalFetchLatency(time.Since(start))
		if err != nil {
			reason := model.ErrCodeInternal
			if apiErr, ok := model.AsAPIError(err); ok {
				reason = apiErr.Code
			}
			c.metrics.RecordExternalFetchFailure(reason)
		} else {
			c.metrics.RecordExternalFetchSuccess()
		}
	}
	return listings, err
}

// RequestURL は外部求人ソースへのリクエストURLを組み立てる。
func (c *Client) RequestURL(rawQuery string) string {
	u := c.baseURL + jobsPath
	if rawQuery != "" {
		u += "?" + rawQuery
	}
	return u
}

func (c *Client) fetch(ctx context.Context, rawQuery string) ([]model.ExternalListing, error) {
	reqURL := c.RequestURL(rawQuery)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, model.NewRemoteUnavailableError(fmt.Sprintf("invalid request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "Jobberwocky/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("外部求人ソースの呼び出しに失敗しました",
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRemoteUnavailableError(err.Error())
	}
	defer resp.Body.Close()

	if c.metrics != nil {
		c.metrics.RecordExternalHTTPStatus(resp.StatusCode)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.logger.Error("外部求人ソースがエラーステータスを返しました",
			slog.String("url", reqURL),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewRemoteUnavailableError(fmt.Sprintf("status %d", resp.StatusCode))
	}

	// 上限を1バイト超えて読めた場合はサイズ超過とみなす
	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseSize+1))
	if err != nil {
		c.logger.Error("外部求人ソースのレスポンス読み取りに失敗しました",
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRemoteUnavailableError(fmt.Sprintf("failed to read body: %v", err))
	}
	if int64(len(body)) > c.maxResponseSize {
		return nil, model.NewRemoteMalformedError(fmt.Sprintf("response body exceeds %d bytes", c.maxResponseSize))
	}

	raws, err := decodePayload(body)
	if err != nil {
		c.logger.Error("外部求人ソースのレスポンスが不正です",
			slog.String("url", reqURL),
			slog.String("error", err.Error()),
		)
		return nil, err
	}

	listings := make([]model.ExternalListing, 0, len(raws))
	for _, r := range raws {
		skills, err := ParseSkills(r.Skills)
		if err != nil {
			// スキル解析の失敗は取得全体を失敗させず、skillsをnullとして残す
			c.logger.Warn("スキル定義の解析に失敗しました",
				slog.String("title", r.Title),
				slog.String("country", r.Country),
				slog.String("error", err.Error()),
			)
			if c.metrics != nil {
				c.metrics.RecordSkillsParseFailure()
			}
			skills = nil
		}
		listings = append(listings, model.ExternalListing{
			Title:    r.Title,
			Salary:   r.Salary,
			Skills:   skills,
			Location: r.Country,
		})
	}

	c.logger.Debug("外部求人ソースから求人を取得しました",
		slog.String("url", reqURL),
		slog.Int("listings_count", len(listings)),
	)

	return listings, nil
}
