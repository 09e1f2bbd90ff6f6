package jobsource

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/hitoshi/jobberwocky/internal/model"
)

//go:embed schema/external_jobs.schema.json
var payloadSchemaJSON []byte

// payloadSchema は外部求人ソースのレスポンス形状を検証するスキーマ。
// パッケージ初期化時に1回だけコンパイルする。
var payloadSchema *gojsonschema.Schema

func init() {
	s, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(payloadSchemaJSON))
	if err != nil {
		panic(fmt.Sprintf("invalid external jobs schema: %v", err))
	}
	payloadSchema = s
}

// rawListing はスキル解析前の外部求人1件。
type rawListing struct {
	Country string
	Title   string
	Salary  json.Number
	Skills  string
}

// decodePayload はレスポンスボディを検証し、国名キーの出現順、リスト内の順序を保って展開する。
// 形状が不正な場合はREMOTE_MALFORMEDを返す。
func decodePayload(body []byte) ([]rawListing, error) {
	result, err := payloadSchema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, model.NewRemoteMalformedError(fmt.Sprintf("invalid JSON: %v", err))
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return nil, model.NewRemoteMalformedError("schema validation failed: " + strings.Join(msgs, "; "))
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, model.NewRemoteMalformedError(err.Error())
	}
	// PHPは空の連想配列を [] として出力する
	if tok == json.Delim('[') {
		return []rawListing{}, nil
	}
	if tok != json.Delim('{') {
		return nil, model.NewRemoteMalformedError("payload must be an object")
	}

	listings := make([]rawListing, 0)
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, model.NewRemoteMalformedError(err.Error())
		}
		country, ok := keyTok.(string)
		if !ok {
			return nil, model.NewRemoteMalformedError("country key must be a string")
		}

		var entries []json.RawMessage
		if err := dec.Decode(&entries); err != nil {
			return nil, model.NewRemoteMalformedError(fmt.Sprintf("listings of %q: %v", country, err))
		}

		for i, raw := range entries {
			l, err := decodeEntry(country, raw)
			if err != nil {
				return nil, model.NewRemoteMalformedError(fmt.Sprintf("entry %d of %q: %v", i, country, err))
			}
			listings = append(listings, l)
		}
	}

	return listings, nil
}

// decodeEntry は [title, salary, skills] の3要素配列を1件の求人に変換する。
// 添字アクセスの前に要素数を検証する。
func decodeEntry(country string, raw json.RawMessage) (rawListing, error) {
	var tuple []json.RawMessage
	if err := json.Unmarshal(raw, &tuple); err != nil {
		return rawListing{}, fmt.Errorf("entry must be an array: %w", err)
	}
	if len(tuple) != 3 {
		return rawListing{}, fmt.Errorf("entry must have exactly 3 elements, got %d", len(tuple))
	}

	l := rawListing{Country: country}
	if err := json.Unmarshal(tuple[0], &l.Title); err != nil {
		return rawListing{}, fmt.Errorf("title must be a string: %w", err)
	}
	salary, err := parseSalary(tuple[1])
	if err != nil {
		return rawListing{}, err
	}
	l.Salary = salary
	if err := json.Unmarshal(tuple[2], &l.Skills); err != nil {
		return rawListing{}, fmt.Errorf("skills must be a string: %w", err)
	}
	return l, nil
}

// parseSalary は数値または数値文字列の給与をjson.Numberに変換する。
func parseSalary(raw json.RawMessage) (json.Number, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return "", fmt.Errorf("salary: %w", err)
	}

	switch s := v.(type) {
	case json.Number:
		return s, nil
	case string:
		s = strings.TrimSpace(s)
		if !isNumeric(s) {
			return "", fmt.Errorf("salary is not numeric: %q", s)
		}
		return json.Number(s), nil
	default:
		return "", fmt.Errorf("salary must be a number or numeric string")
	}
}

// isNumeric はsがJSONの数値リテラルとして妥当かを判定する。
func isNumeric(s string) bool {
	if s == "" || (s[0] != '-' && (s[0] < '0' || s[0] > '9')) {
		return false
	}
	var n json.Number
	return json.Unmarshal([]byte(s), &n) == nil
}
