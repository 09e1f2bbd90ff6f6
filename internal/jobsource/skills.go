package jobsource

import (
	"errors"
	"fmt"
	"io"
	"strings"

	xpp "github.com/mmcdole/goxpp"

	"github.com/hitoshi/jobberwocky/internal/model"
)

// ParseSkills はスキル定義のマークアップ断片を解析し、
// 子要素を持たない要素のテキストを文書順に返す。
// 例: "<skills><skill>Go</skill><skill>SQL</skill></skills>" → ["Go", "SQL"]
//
// 整形式でない断片やルート要素を持たない断片はSKILLS_PARSE_ERRORを返す。
// 空要素のみの場合は空スライス（nilではない）を返す。
func ParseSkills(fragment string) ([]string, error) {
	if strings.TrimSpace(fragment) == "" {
		return nil, model.NewSkillsParseError("empty fragment")
	}

	p := xpp.NewXMLPullParser(strings.NewReader(fragment), true, nil)

	type element struct {
		text     strings.Builder
		hasChild bool
	}
	var (
		stack   []*element
		seen    bool
		closed  bool
		results = make([]string, 0)
	)

	for {
		event, err := p.NextToken()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, model.NewSkillsParseError(err.Error())
		}

		switch event {
		case xpp.StartTag:
			if closed && len(stack) == 0 {
				return nil, model.NewSkillsParseError("multiple root elements")
			}
			if len(stack) > 0 {
				stack[len(stack)-1].hasChild = true
			}
			stack = append(stack, &element{})
			seen = true
		case xpp.Text:
			if len(stack) == 0 {
				if strings.TrimSpace(p.Text) != "" {
					return nil, model.NewSkillsParseError("text outside of root element")
				}
				continue
			}
			stack[len(stack)-1].text.WriteString(p.Text)
		case xpp.EndTag:
			if len(stack) == 0 {
				return nil, model.NewSkillsParseError(fmt.Sprintf("unexpected end tag </%s>", p.Name))
			}
			top := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if !top.hasChild {
				if text := strings.TrimSpace(top.text.String()); text != "" {
					results = append(results, text)
				}
			}
			if len(stack) == 0 {
				closed = true
			}
		case xpp.EndDocument:
			if !seen {
				return nil, model.NewSkillsParseError("no root element")
			}
			if len(stack) > 0 {
				return nil, model.NewSkillsParseError("unclosed element")
			}
			return results, nil
		}
	}

	if !seen || len(stack) > 0 {
		return nil, model.NewSkillsParseError("unexpected end of fragment")
	}
	return results, nil
}
