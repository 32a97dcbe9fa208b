package templates

import (
	"html"
	"regexp"
	"strings"
	"time"

	"wipetrace/internal/domain/enums"
)

// Variable names understood by the built-in letters.
const (
	VarClientName      = "clientName"
	VarClientEmail     = "clientEmail"
	VarClientPhone     = "clientPhone"
	VarClientAddress   = "clientAddress"
	VarCompanyName     = "companyName"
	VarDeadline        = "deadline"
	VarJurisdiction    = "jurisdiction"
	VarOriginalDate    = "originalDate"
	VarOriginalSubject = "originalSubject"
)

const DeadlineLayout = "January 2, 2006"

var placeholder = regexp.MustCompile(`\{\{([A-Za-z_][A-Za-z0-9_]*)\}\}`)

type Content struct {
	Subject   string `json:"subject"`
	Body      string `json:"body"`
	PlainText string `json:"plainText"`
}

type Variables map[string]string

// Render substitutes every {{name}} in the three parts. Names missing from
// vars render as the empty string. Text without placeholders is returned as is.
func Render(c Content, vars Variables) Content {
	plain := c.PlainText
	if plain == "" {
		plain = c.Body
	}
	return Content{
		Subject:   renderString(c.Subject, vars),
		Body:      renderString(c.Body, vars),
		PlainText: renderString(plain, vars),
	}
}

func renderString(s string, vars Variables) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholder.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-2]
		return vars[name]
	})
}

// Placeholders lists the distinct variable names referenced by s, in order of
// first appearance.
func Placeholders(s string) []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range placeholder.FindAllStringSubmatch(s, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			out = append(out, m[1])
		}
	}
	return out
}

// Deadline returns from plus the statutory response window of j.
func Deadline(j enums.Jurisdiction, from time.Time) time.Time {
	switch j {
	case enums.CCPA:
		return from.AddDate(0, 0, 45)
	case enums.GDPR:
		return from.AddDate(0, 1, 0)
	case enums.PIPEDA:
		return from.AddDate(0, 0, 30)
	case enums.LGPD:
		return from.AddDate(0, 0, 15)
	default:
		return from.AddDate(0, 0, 30)
	}
}

func FormatDeadline(j enums.Jurisdiction, from time.Time) string {
	return Deadline(j, from).Format(DeadlineLayout)
}

// textToHTML turns blank-line separated paragraphs into <p> blocks, keeping
// single line breaks and leaving {{placeholders}} untouched.
func textToHTML(text string) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		lines := strings.Split(para, "\n")
		for i, line := range lines {
			lines[i] = html.EscapeString(line)
		}
		b.WriteString("<p>")
		b.WriteString(strings.Join(lines, "<br>\n"))
		b.WriteString("</p>\n")
	}
	return b.String()
}
