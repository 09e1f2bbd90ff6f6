package model

import "encoding/json"

// ExternalListing は外部求人ソースから取得し正規化した求人。
// リクエストごとに生成され、永続化されない。
type ExternalListing struct {
	Title    string      `json:"title"`
	Salary   json.Number `json:"salary"`
	Skills   []string    `json:"skills"` // 解析できなかった場合はnil
	Location string      `json:"location"`
}

// SearchFilter は統合検索の条件。
// RawQueryは外部求人ソースへそのまま転送するクエリ文字列。
type SearchFilter struct {
	Name      string
	SalaryMin *float64
	SalaryMax *float64
	Country   string
	RawQuery  string
}

// LocalFilter は統合検索条件をローカル求人の検索条件に変換する。
// name はタイトル、country は勤務地、給与の上下限は salary 列に適用する。
func (f SearchFilter) LocalFilter() ListingFilter {
	return ListingFilter{
		Title:     f.Name,
		Location:  f.Country,
		SalaryMin: f.SalaryMin,
		SalaryMax: f.SalaryMax,
	}
}
