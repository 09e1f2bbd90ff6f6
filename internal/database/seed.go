package database

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hitoshi/jobberwocky/internal/model"
)

//go:embed seed/job_listings.yaml
var defaultSeed []byte

// seedFile はシードファイルのYAML構造。
type seedFile struct {
	Listings []seedListing `yaml:"listings"`
}

type seedListing struct {
	Title       string   `yaml:"title"`
	Description string   `yaml:"description"`
	Company     string   `yaml:"company"`
	Skills      string   `yaml:"skills"`
	Location    string   `yaml:"location"`
	Salary      *float64 `yaml:"salary"`
}

// LoadSeedListings はシード用の求人データを読み込む。
// pathが空の場合は埋め込みの既定データ（20件）を使用する。
func LoadSeedListings(path string) ([]model.ListingInput, error) {
	data := defaultSeed
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read seed file: %w", err)
		}
		data = b
	}
	return parseSeed(data)
}

func parseSeed(data []byte) ([]model.ListingInput, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse seed file: %w", err)
	}

	inputs := make([]model.ListingInput, 0, len(f.Listings))
	for i, l := range f.Listings {
		in := model.ListingInput{
			Title:       strings.TrimSpace(l.Title),
			Description: strings.TrimSpace(l.Description),
			Company:     strings.TrimSpace(l.Company),
			Skills:      strings.TrimSpace(l.Skills),
			Location:    strings.TrimSpace(l.Location),
			Salary:      l.Salary,
		}
		if in.Title == "" || in.Description == "" || in.Company == "" || in.Skills == "" || in.Location == "" {
			return nil, fmt.Errorf("seed listing #%d: title, description, company, skills and location are required", i+1)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}
