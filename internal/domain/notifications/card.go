package notifications

import (
	"bytes"
	"html/template"
)

var accents = map[Type]string{
	TypeInfo:    "#2563eb",
	TypeSuccess: "#16a34a",
	TypeWarning: "#d97706",
	TypeError:   "#dc2626",
}

var cardTemplate = template.Must(template.New("card").Parse(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;background:#f4f4f5;font-family:Arial,Helvetica,sans-serif;">
  <div style="max-width:560px;margin:0 auto;background:#ffffff;border-radius:8px;border-top:4px solid {{.Accent}};padding:24px;">
    <h2 style="margin:0 0 12px;color:{{.Accent}};font-size:18px;">{{.Title}}</h2>
    <div style="color:#27272a;font-size:14px;line-height:1.6;">{{.Message}}</div>
    {{- if .Link}}
    <p style="margin-top:20px;"><a href="{{.Link}}" style="color:{{.Accent}};">Open your dashboard</a></p>
    {{- end}}
    <p style="margin-top:24px;color:#71717a;font-size:12px;">Wipe My Trace</p>
  </div>
</body>
</html>`))

// Accent is the card colour for t. Unknown types use the info colour.
func Accent(t Type) string {
	if c, ok := accents[t]; ok {
		return c
	}
	return accents[TypeInfo]
}

// RenderCard builds the HTML email for a notification. Message may carry
// trusted markup composed by the jobs; title is escaped.
func RenderCard(t Type, title string, message template.HTML, link string) (string, error) {
	var buf bytes.Buffer
	err := cardTemplate.Execute(&buf, struct {
		Accent  template.CSS
		Title   string
		Message template.HTML
		Link    string
	}{Accent: template.CSS(Accent(t)), Title: title, Message: message, Link: link})
	return buf.String(), err
}
