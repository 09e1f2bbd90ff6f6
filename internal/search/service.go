// Package search はローカル求人と外部求人ソースを統合した検索を提供する。
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/jobberwocky/internal/model"
)

// ListingQuerier はローカル求人の検索インターフェース。
type ListingQuerier interface {
	Query(ctx context.Context, filter model.ListingFilter) ([]model.JobListing, error)
}

// ExternalSource は外部求人ソースのインターフェース。
type ExternalSource interface {
	FetchJobs(ctx context.Context, rawQuery string) ([]model.ExternalListing, error)
}

// CombinedResult は統合検索の結果。
// JSONではローカル求人、外部求人の順に連結した1つの配列として出力する。
type CombinedResult struct {
	Local    []model.JobListing
	External []model.ExternalListing
}

// Len は結果の総件数を返す。
func (r CombinedResult) Len() int {
	return len(r.Local) + len(r.External)
}

// MarshalJSON はローカル求人の後に外部求人を連結した配列を出力する。
func (r CombinedResult) MarshalJSON() ([]byte, error) {
	items := make([]any, 0, r.Len())
	for _, l := range r.Local {
		items = append(items, l)
	}
	for _, e := range r.External {
		items = append(items, e)
	}
	return json.Marshal(items)
}

// Service は求人検索サービス。
type Service struct {
	listings ListingQuerier
	external ExternalSource
	logger   *slog.Logger
}

// NewService はServiceを生成する。
func NewService(listings ListingQuerier, external ExternalSource, logger *slog.Logger) *Service {
	return &Service{
		listings: listings,
		external: external,
		logger:   logger,
	}
}

// ListLocal はローカル求人をタイトル、勤務地の部分一致で検索する。
func (s *Service) ListLocal(ctx context.Context, filter model.ListingFilter) ([]model.JobListing, error) {
	listings, err := s.listings.Query(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to query local listings: %w", err)
	}
	return listings, nil
}

// CombinedJobs はローカル求人と外部求人を並行に取得し、ローカル、外部の順に連結して返す。
// いずれかの取得に失敗した場合は全体をAGGREGATION_ERRORとして失敗させる。
func (s *Service) CombinedJobs(ctx context.Context, filter model.SearchFilter) (CombinedResult, error) {
	var result CombinedResult

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		local, err := s.listings.Query(gctx, filter.LocalFilter())
		if err != nil {
			return fmt.Errorf("local listings: %w", err)
		}
		result.Local = local
		return nil
	})
	g.Go(func() error {
		external, err := s.external.FetchJobs(gctx, filter.RawQuery)
		if err != nil {
			return fmt.Errorf("external listings: %w", err)
		}
		result.External = external
		return nil
	})

	if err := g.Wait(); err != nil {
		s.logger.Error("統合検索に失敗しました",
			slog.String("query", filter.RawQuery),
			slog.String("error", err.Error()),
		)
		return CombinedResult{}, model.NewAggregationError(err)
	}

	if result.Local == nil {
		result.Local = []model.JobListing{}
	}
	if result.External == nil {
		result.External = []model.ExternalListing{}
	}
	return result, nil
}

// ExternalOnly は外部求人ソースのみを検索する。
func (s *Service) ExternalOnly(ctx context.Context, rawQuery string) ([]model.ExternalListing, error) {
	return s.external.FetchJobs(ctx, rawQuery)
}

// ParseLocalFilter はクエリパラメータ title, location からローカル検索条件を組み立てる。
func ParseLocalFilter(q url.Values) model.ListingFilter {
	return model.ListingFilter{
		Title:    q.Get("title"),
		Location: q.Get("location"),
	}
}

// ParseSearchFilter はクエリパラメータ name, salary_min, salary_max, country から統合検索条件を組み立てる。
// 給与の上下限が数値でない場合はVALIDATION_ERRORを返す。
func ParseSearchFilter(q url.Values, rawQuery string) (model.SearchFilter, error) {
	f := model.SearchFilter{
		Name:     q.Get("name"),
		Country:  q.Get("country"),
		RawQuery: rawQuery,
	}

	invalid := make(map[string]string)
	var err error
	if f.SalaryMin, err = parseBound(q.Get("salary_min")); err != nil {
		invalid["salary_min"] = "数値で指定してください"
	}
	if f.SalaryMax, err = parseBound(q.Get("salary_max")); err != nil {
		invalid["salary_max"] = "数値で指定してください"
	}
	if len(invalid) > 0 {
		return model.SearchFilter{}, model.NewValidationError(invalid)
	}
	return f, nil
}

func parseBound(v string) (*float64, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("not a finite number: %q", v)
	}
	return &f, nil
}
