// Package security はアプリケーションのセキュリティ機能を提供する。
//
// MailSanitizer は通知メールに埋め込む求人項目（利用者が投稿した任意の文字列）を
// 無害化する。ssrfGuard は外部求人ソースへの接続先を検証する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// MailSanitizer は通知メール本文用のサニタイズ機能のインターフェース。
type MailSanitizer interface {
	// SanitizeHTML はHTMLメール本文に埋め込む文字列をサニタイズする。
	// 許可タグ（p, br, ul, ol, li, strong, em, a）のみを通過させ、
	// aタグのhrefは絶対URL（http, https, mailto）のみ許可する。
	SanitizeHTML(raw string) string

	// PlainText はテキストメール本文用に全てのタグを除去し、文字参照を復元した文字列を返す。
	PlainText(raw string) string
}

// mailSanitizer はMailSanitizerの実装。ポリシーは生成後に変更しないためスレッドセーフ。
type mailSanitizer struct {
	htmlPolicy  *bluemonday.Policy
	stripPolicy *bluemonday.Policy
}

// NewMailSanitizer はMailSanitizerを生成する。
func NewMailSanitizer() *mailSanitizer {
	p := bluemonday.NewPolicy()
	p.AllowElements("p", "br", "ul", "ol", "li", "strong", "em")
	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("http", "https", "mailto")
	p.AllowRelativeURLs(false)
	p.RequireNoReferrerOnLinks(true)
	p.AddTargetBlankToFullyQualifiedLinks(true)

	return &mailSanitizer{
		htmlPolicy:  p,
		stripPolicy: bluemonday.StrictPolicy(),
	}
}

// SanitizeHTML はHTMLメール本文に埋め込む文字列をサニタイズする。
func (s *mailSanitizer) SanitizeHTML(raw string) string {
	return s.htmlPolicy.Sanitize(raw)
}

// PlainText は全てのタグを除去したテキストを返す。
// StrictPolicyは出力をHTMLエスケープするため、テキストメール用に復元する。
func (s *mailSanitizer) PlainText(raw string) string {
	return strings.TrimSpace(html.UnescapeString(s.stripPolicy.Sanitize(raw)))
}
