// Package model はドメインモデルを定義する。
package model

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// APIError は統一エラーフォーマットを表す。
// Codeはクライアントが分岐に使う安定したタグで、Messageは人間向けの説明。
type APIError struct {
	Code     string // エラーコード（レスポンスの error フィールド）
	Message  string // エラーメッセージ
	Category string // カテゴリ: validation, listing, subscription, external, system
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	ErrCodeListingNotFound   = "LISTING_NOT_FOUND"
	ErrCodeRemoteUnavailable = "REMOTE_UNAVAILABLE"
	ErrCodeRemoteMalformed   = "REMOTE_MALFORMED"
	ErrCodeSkillsParse       = "SKILLS_PARSE_ERROR"
	ErrCodeAggregation       = "AGGREGATION_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewValidationError は入力値検証エラーを生成する。
// fieldsには検証に失敗したフィールドとその理由を渡す。
func NewValidationError(fields map[string]string) *APIError {
	parts := make([]string, 0, len(fields))
	for _, name := range sortedKeys(fields) {
		parts = append(parts, fmt.Sprintf("%s: %s", name, fields[name]))
	}
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "入力値が不正です: " + strings.Join(parts, ", "),
		Category: "validation",
	}
}

// NewInvalidBodyError はリクエストボディを解析できなかった場合のエラーを生成する。
func NewInvalidBodyError() *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  "リクエストボディの解析に失敗しました。正しいJSON形式で送信してください。",
		Category: "validation",
	}
}

// NewDuplicateEmailError は登録済みメールアドレスで購読しようとした場合のエラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeDuplicateEmail,
		Message:  fmt.Sprintf("このメールアドレスは既に登録されています: %s", email),
		Category: "validation",
	}
}

// NewListingNotFoundError は求人が見つからない場合のエラーを生成する。
func NewListingNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeListingNotFound,
		Message:  fmt.Sprintf("指定された求人が見つかりません: %s", id),
		Category: "listing",
	}
}

// NewRemoteUnavailableError は外部求人ソースに到達できない場合のエラーを生成する。
func NewRemoteUnavailableError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteUnavailable,
		Message:  fmt.Sprintf("外部求人ソースの取得に失敗しました: %s", reason),
		Category: "external",
	}
}

// NewRemoteMalformedError は外部求人ソースのレスポンスが不正な場合のエラーを生成する。
func NewRemoteMalformedError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeRemoteMalformed,
		Message:  fmt.Sprintf("外部求人ソースのレスポンスが不正です: %s", reason),
		Category: "external",
	}
}

// NewSkillsParseError はスキル定義のマークアップを解析できない場合のエラーを生成する。
func NewSkillsParseError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeSkillsParse,
		Message:  fmt.Sprintf("スキル定義の解析に失敗しました: %s", reason),
		Category: "external",
	}
}

// NewAggregationError は統合検索の失敗を表すエラーを生成する。
func NewAggregationError(cause error) *APIError {
	return &APIError{
		Code:     ErrCodeAggregation,
		Message:  fmt.Sprintf("求人の統合検索に失敗しました: %s", cause.Error()),
		Category: "system",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、クライアントには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。しばらく待ってから再度お試しください。",
		Category: "system",
	}
}

// IsCode はerrがAPIErrorで、かつ指定コードを持つかを判定する。
func IsCode(err error, code string) bool {
	apiErr, ok := AsAPIError(err)
	return ok && apiErr.Code == code
}

// AsAPIError はエラーチェーンからAPIErrorを取り出す。
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
