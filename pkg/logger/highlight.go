package logger

import (
	"regexp"
	"sort"
	"strings"

	"github.com/fatih/color"
)

type rule struct {
	pattern string
	color   *color.Color
}

// highlightRules 关键词着色规则，靠前的规则优先
var highlightRules = []rule{
	{`(?i)\b(?:error|panic|failed|fail)\b`, color.New(color.FgHiRed)},
	{`\b(?:GET|POST|PUT|DELETE|PATCH|HEAD|OPTIONS)\b`, color.New(color.FgBlue)},
	{`\b[45]\d{2}\b`, color.New(color.FgHiRed)},
	{`\b2\d{2}\b`, color.New(color.FgHiGreen)},
	{`[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}`, color.New(color.FgHiBlue)},
	{`https?://[^\s]+`, color.New(color.FgBlue, color.Underline)},
	{`\b(?:idle|credentials_submitted|authenticated|second_factor_required|inactive_account)\b`, color.New(color.FgHiMagenta)},
	{`\b(?:authenticator|whatsapp|email)\b`, color.New(color.FgMagenta)},
	{`(?i)\b(?:success|connected|started|ready)\b`, color.New(color.FgHiCyan)},
	{`(?i)\b(?:warning|timeout|retry)\b`, color.New(color.FgHiYellow)},
	{`[a-zA-Z_][a-zA-Z0-9_]*=`, color.New(color.FgHiCyan)},
	{`\[[^\]]+\]`, color.New(color.FgBlue)},
}

var (
	combined *regexp.Regexp
	palette  []*color.Color
)

func init() {
	parts := make([]string, 0, len(highlightRules))
	palette = make([]*color.Color, 0, len(highlightRules))
	for _, r := range highlightRules {
		parts = append(parts, "("+r.pattern+")")
		palette = append(palette, r.color)
	}
	combined = regexp.MustCompile(strings.Join(parts, "|"))
}

type span struct {
	start, end int
	color      *color.Color
}

// highlight 一次匹配全部规则后按区间着色，重叠部分以先出现者为准
func highlight(msg string) string {
	if color.NoColor {
		return msg
	}
	matches := combined.FindAllStringSubmatchIndex(msg, -1)
	if len(matches) == 0 {
		return msg
	}

	spans := make([]span, 0, len(matches))
	for _, m := range matches {
		for g := 0; g < len(palette); g++ {
			s, e := m[2+2*g], m[3+2*g]
			if s >= 0 && e > s {
				spans = append(spans, span{start: s, end: e, color: palette[g]})
				break
			}
		}
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].start < spans[j].start })

	var b strings.Builder
	b.Grow(len(msg) + len(spans)*10)
	cur := 0
	for _, sp := range spans {
		if sp.start < cur {
			continue
		}
		b.WriteString(msg[cur:sp.start])
		b.WriteString(sp.color.Sprint(msg[sp.start:sp.end]))
		cur = sp.end
	}
	b.WriteString(msg[cur:])
	return b.String()
}
