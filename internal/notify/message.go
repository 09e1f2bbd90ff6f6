// Package notify は求人作成イベントを購読者へのメール通知に変換する。
// イベントの受け渡し（Publisher）、本文の生成（Renderer）、送信（Sender）を分離する。
package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/hitoshi/jobberwocky/internal/model"
	"github.com/hitoshi/jobberwocky/internal/security"
)

// MailSubject は求人作成通知メールの件名。
const MailSubject = "Job Created Mail"

// Message は1人の購読者に送る通知メール。
type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

const textBody = `# New Job Created

A new job has been created with the following details:

Title: {{.Title}}
Company: {{.Company}}
Location: {{.Location}}
Description: {{.Description}}

Thanks,
{{.AppName}}
`

const htmlBody = `<!DOCTYPE html>
<html>
<body>
<h1>New Job Created</h1>
<p>A new job has been created with the following details:</p>
<ul>
<li><strong>Title:</strong> {{.Title}}</li>
<li><strong>Company:</strong> {{.Company}}</li>
<li><strong>Location:</strong> {{.Location}}</li>
<li><strong>Description:</strong> {{.Description}}</li>
</ul>
<p>Thanks,<br>{{.AppName}}</p>
</body>
</html>
`

type textView struct {
	Title       string
	Company     string
	Location    string
	Description string
	AppName     string
}

type htmlView struct {
	Title       string
	Company     string
	Location    string
	Description htmltemplate.HTML
	AppName     string
}

// Renderer は求人からメール本文を生成する。テンプレートは生成時に1回だけパースする。
type Renderer struct {
	appName   string
	sanitizer security.MailSanitizer
	text      *texttemplate.Template
	html      *htmltemplate.Template
}

// NewRenderer はRendererを生成する。
func NewRenderer(appName string, sanitizer security.MailSanitizer) *Renderer {
	return &Renderer{
		appName:   appName,
		sanitizer: sanitizer,
		text:      texttemplate.Must(texttemplate.New("job_created.txt").Parse(textBody)),
		html:      htmltemplate.Must(htmltemplate.New("job_created.html").Parse(htmlBody)),
	}
}

// Render は宛先ごとの通知メールを生成する。
// 説明欄はリッチテキストとして扱い、テキスト本文ではタグを除去し、HTML本文では許可タグのみ残す。
// タイトル、会社名、勤務地は入力のまま埋め込み、HTML本文ではhtml/templateのエスケープに任せる。
func (r *Renderer) Render(to string, l model.JobListing) (Message, error) {
	tv := textView{
		Title:       l.Title,
		Company:     l.Company,
		Location:    l.Location,
		Description: r.sanitizer.PlainText(l.Description),
		AppName:     r.appName,
	}
	var text bytes.Buffer
	if err := r.text.Execute(&text, tv); err != nil {
		return Message{}, fmt.Errorf("テキスト本文の生成に失敗: %w", err)
	}

	hv := htmlView{
		Title:    tv.Title,
		Company:  tv.Company,
		Location: tv.Location,
		// サニタイズ済みのためエスケープしない
		Description: htmltemplate.HTML(r.sanitizer.SanitizeHTML(l.Description)),
		AppName:     r.appName,
	}
	var body bytes.Buffer
	if err := r.html.Execute(&body, hv); err != nil {
		return Message{}, fmt.Errorf("HTML本文の生成に失敗: %w", err)
	}

	return Message{
		To:      to,
		Subject: MailSubject,
		Text:    text.String(),
		HTML:    body.String(),
	}, nil
}
