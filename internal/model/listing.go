package model

import "time"

// JobListing はローカルに保存された求人を表す。
// IDはリポジトリが採番する。Salaryは未設定を許容する。
type JobListing struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Company     string    `json:"company"`
	Skills      string    `json:"skills"`
	Location    string    `json:"location"`
	Salary      *float64  `json:"salary"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ListingInput は検証済みの求人作成データ。
type ListingInput struct {
	Title       string
	Description string
	Company     string
	Skills      string
	Location    string
	Salary      *float64
}

// ListingPatch は検証済みの部分更新データ。
// nilのフィールドは変更しない。SalarySetがtrueの場合のみSalaryを反映する（nullへの更新を含む）。
type ListingPatch struct {
	Title       *string
	Description *string
	Company     *string
	Skills      *string
	Location    *string
	Salary      *float64
	SalarySet   bool
}

// Apply はパッチの内容を求人に反映する。
func (p ListingPatch) Apply(l *JobListing) {
	if p.Title != nil {
		l.Title = *p.Title
	}
	if p.Description != nil {
		l.Description = *p.Description
	}
	if p.Company != nil {
		l.Company = *p.Company
	}
	if p.Skills != nil {
		l.Skills = *p.Skills
	}
	if p.Location != nil {
		l.Location = *p.Location
	}
	if p.SalarySet {
		l.Salary = p.Salary
	}
}

// ListingFilter はローカル求人検索の条件。
// 空文字列の条件は適用しない。文字列条件は大文字小文字を区別する部分一致。
type ListingFilter struct {
	Title     string
	Location  string
	SalaryMin *float64
	SalaryMax *float64
}
