package listing

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/jobberwocky/internal/model"
)

// validate はパッケージ読み込み時に1回だけ生成する。
// エラーのフィールド名はjsonタグの名前で報告する。
var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// salaryRange は salary 列（NUMERIC(12, 2)）に格納できる範囲。
const salaryRange = "gte=-9999999999.99,lte=9999999999.99"

var (
	errSalaryNotNumeric = errors.New("salary must be numeric")
	errSalaryOutOfRange = errors.New("salary is out of range")
)

// listingFields は作成時に検証する文字列項目。
type listingFields struct {
	Title       string `json:"title" validate:"required,max=255"`
	Description string `json:"description" validate:"required"`
	Company     string `json:"company" validate:"required,max=255"`
	Skills      string `json:"skills" validate:"required,max=255"`
	Location    string `json:"location" validate:"required,max=255"`
}

// stringFields はリクエストボディのキーと検証対象フィールドの対応。
var stringFields = []struct {
	key string
	max int // 0は上限なし
	set func(*listingFields, string)
}{
	{"title", 255, func(f *listingFields, v string) { f.Title = v }},
	{"description", 0, func(f *listingFields, v string) { f.Description = v }},
	{"company", 255, func(f *listingFields, v string) { f.Company = v }},
	{"skills", 255, func(f *listingFields, v string) { f.Skills = v }},
	{"location", 255, func(f *listingFields, v string) { f.Location = v }},
}

// ValidateCreate は求人作成リクエストを検証する。
// title, description, company, skills, location は必須（前後の空白を除いて空でないこと）。
// salary は任意で、数値または数値文字列、nullを受け付ける。
// 未知のキーは無視する。
func ValidateCreate(raw map[string]json.RawMessage) (model.ListingInput, error) {
	invalid := make(map[string]string)

	var fields listingFields
	for _, sf := range stringFields {
		v, present, err := decodeString(raw, sf.key)
		if err != nil {
			invalid[sf.key] = "文字列で指定してください"
			continue
		}
		if present {
			sf.set(&fields, v)
		}
	}

	if err := validate.Struct(fields); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return model.ListingInput{}, err
		}
		for _, fe := range verrs {
			if _, ok := invalid[fe.Field()]; !ok {
				invalid[fe.Field()] = describe(fe.Tag(), fe.Param())
			}
		}
	}

	salary, _, err := decodeSalary(raw)
	if err != nil {
		invalid["salary"] = salaryMessage(err)
	}

	if len(invalid) > 0 {
		return model.ListingInput{}, model.NewValidationError(invalid)
	}

	return model.ListingInput{
		Title:       fields.Title,
		Description: fields.Description,
		Company:     fields.Company,
		Skills:      fields.Skills,
		Location:    fields.Location,
		Salary:      salary,
	}, nil
}

// ValidatePatch は求人更新リクエストを検証する。
// 含まれている項目のみを検証し、文字列項目は含まれている場合に限り空であってはならない。
// salary は null を指定すると未設定に戻る。
func ValidatePatch(raw map[string]json.RawMessage) (model.ListingPatch, error) {
	invalid := make(map[string]string)
	var patch model.ListingPatch

	targets := map[string]**string{
		"title":       &patch.Title,
		"description": &patch.Description,
		"company":     &patch.Company,
		"skills":      &patch.Skills,
		"location":    &patch.Location,
	}

	for _, sf := range stringFields {
		v, present, err := decodeString(raw, sf.key)
		if err != nil {
			invalid[sf.key] = "文字列で指定してください"
			continue
		}
		if !present {
			continue
		}

		tag := "required"
		if sf.max > 0 {
			tag += ",max=" + strconv.Itoa(sf.max)
		}
		if err := validate.Var(v, tag); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				invalid[sf.key] = describe(verrs[0].Tag(), verrs[0].Param())
			} else {
				invalid[sf.key] = "不正な値です"
			}
			continue
		}
		value := v
		*targets[sf.key] = &value
	}

	salary, present, err := decodeSalary(raw)
	if err != nil {
		invalid["salary"] = salaryMessage(err)
	} else if present {
		patch.Salary = salary
		patch.SalarySet = true
	}

	if len(invalid) > 0 {
		return model.ListingPatch{}, model.NewValidationError(invalid)
	}
	return patch, nil
}

// decodeString はキーの値を文字列として取り出し、前後の空白を除去する。
// null は未指定と同じく空文字列として扱う。
func decodeString(raw map[string]json.RawMessage, key string) (value string, present bool, err error) {
	msg, ok := raw[key]
	if !ok {
		return "", false, nil
	}
	if isNull(msg) {
		return "", true, nil
	}
	var s string
	if err := json.Unmarshal(msg, &s); err != nil {
		return "", true, err
	}
	return strings.TrimSpace(s), true, nil
}

// decodeSalary はsalaryを数値として取り出す。
// 数値と数値文字列を受け付け、null、空文字列は未設定（nil）とする。
// salary 列に収まらない値は errSalaryOutOfRange を返す。
func decodeSalary(raw map[string]json.RawMessage) (salary *float64, present bool, err error) {
	msg, ok := raw["salary"]
	if !ok {
		return nil, false, nil
	}
	if isNull(msg) {
		return nil, true, nil
	}

	dec := json.NewDecoder(bytes.NewReader(msg))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, true, err
	}

	var text string
	switch t := v.(type) {
	case json.Number:
		text = t.String()
	case string:
		text = strings.TrimSpace(t)
		if text == "" {
			return nil, true, nil
		}
	default:
		return nil, true, errSalaryNotNumeric
	}

	f, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, true, errSalaryNotNumeric
	}
	if err := validate.Var(f, salaryRange); err != nil {
		return nil, true, errSalaryOutOfRange
	}
	return &f, true, nil
}

func salaryMessage(err error) string {
	if errors.Is(err, errSalaryOutOfRange) {
		return "-9999999999.99から9999999999.99の範囲で指定してください"
	}
	return "数値で指定してください"
}

func isNull(msg json.RawMessage) bool {
	return string(bytes.TrimSpace(msg)) == "null"
}

func describe(tag, param string) string {
	switch tag {
	case "required":
		return "必須項目です"
	case "max":
		return param + "文字以内で指定してください"
	default:
		return "不正な値です"
	}
}
