package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/hitoshi/jobberwocky/internal/model"
)

const listingColumns = `id, title, description, company, skills, location, salary, created_at, updated_at`

// PostgresListingRepo はPostgreSQLを使用した求人リポジトリ。
type PostgresListingRepo struct {
	db *sql.DB
}

// NewPostgresListingRepo はPostgresListingRepoを生成する。
func NewPostgresListingRepo(db *sql.DB) *PostgresListingRepo {
	return &PostgresListingRepo{db: db}
}

// Create は求人を作成する。
func (r *PostgresListingRepo) Create(ctx context.Context, in model.ListingInput) (*model.JobListing, error) {
	l := &model.JobListing{
		Title:       in.Title,
		Description: in.Description,
		Company:     in.Company,
		Skills:      in.Skills,
		Location:    in.Location,
		Salary:      in.Salary,
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO job_listings (title, description, company, skills, location, salary)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id, created_at, updated_at`,
		l.Title, l.Description, l.Company, l.Skills, l.Location, nullFloat(l.Salary),
	).Scan(&l.ID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("求人の作成に失敗しました: %w", err)
	}

	return l, nil
}

// FindByID は指定IDの求人を取得する。見つからない場合はnilを返す。
func (r *PostgresListingRepo) FindByID(ctx context.Context, id int64) (*model.JobListing, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+listingColumns+` FROM job_listings WHERE id = $1`,
		id,
	)

	l, err := scanListing(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("求人の取得に失敗しました: %w", err)
	}
	return l, nil
}

// Update は求人を上書き更新する。
func (r *PostgresListingRepo) Update(ctx context.Context, l *model.JobListing) error {
	err := r.db.QueryRowContext(ctx,
		`UPDATE job_listings
		 SET title = $1, description = $2, company = $3, skills = $4, location = $5, salary = $6, updated_at = NOW()
		 WHERE id = $7
		 RETURNING updated_at`,
		l.Title, l.Description, l.Company, l.Skills, l.Location, nullFloat(l.Salary), l.ID,
	).Scan(&l.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.NewListingNotFoundError(strconv.FormatInt(l.ID, 10))
	}
	if err != nil {
		return fmt.Errorf("求人の更新に失敗しました: %w", err)
	}
	return nil
}

// Delete は指定IDの求人を削除する。
func (r *PostgresListingRepo) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM job_listings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("求人の削除に失敗しました: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("削除件数の取得に失敗しました: %w", err)
	}
	if n == 0 {
		return model.NewListingNotFoundError(strconv.FormatInt(id, 10))
	}
	return nil
}

// Query は条件に一致する求人をID昇順で返す。
func (r *PostgresListingRepo) Query(ctx context.Context, filter model.ListingFilter) ([]model.JobListing, error) {
	query, args := buildListingQuery(filter)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("求人一覧の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	listings := make([]model.JobListing, 0)
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, fmt.Errorf("求人行の読み取りに失敗しました: %w", err)
		}
		listings = append(listings, *l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("求人一覧の走査に失敗しました: %w", err)
	}
	return listings, nil
}

// buildListingQuery は検索条件からSQLとパラメータを組み立てる。
// 文字列条件はstrposで判定するため、%や_はワイルドカードとして扱われない。
func buildListingQuery(filter model.ListingFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.Title != "" {
		add("strpos(title, $%d) > 0", filter.Title)
	}
	if filter.Location != "" {
		add("strpos(location, $%d) > 0", filter.Location)
	}
	if filter.SalaryMin != nil {
		add("salary >= $%d", *filter.SalaryMin)
	}
	if filter.SalaryMax != nil {
		add("salary <= $%d", *filter.SalaryMax)
	}

	query := `SELECT ` + listingColumns + ` FROM job_listings`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, ` AND `)
	}
	query += ` ORDER BY id ASC`
	return query, args
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanListing(s rowScanner) (*model.JobListing, error) {
	l := &model.JobListing{}
	var salary sql.NullFloat64
	if err := s.Scan(&l.ID, &l.Title, &l.Description, &l.Company, &l.Skills, &l.Location, &salary, &l.CreatedAt, &l.UpdatedAt); err != nil {
		return nil, err
	}
	if salary.Valid {
		v := salary.Float64
		l.Salary = &v
	}
	return l, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
