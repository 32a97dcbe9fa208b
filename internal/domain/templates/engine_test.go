package templates

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wipetrace/internal/domain/enums"
)

func TestRenderSubstitutesAllOccurrences(t *testing.T) {
	c := Content{
		Subject:   "Request for {{clientName}}",
		Body:      "<p>{{clientName}} / {{clientName}} at {{companyName}}</p>",
		PlainText: "{{clientName}} {{missing}}!",
	}
	out := Render(c, Variables{"clientName": "Ada", "companyName": "Acme"})

	assert.Equal(t, "Request for Ada", out.Subject)
	assert.Equal(t, "<p>Ada / Ada at Acme</p>", out.Body)
	assert.Equal(t, "Ada !", out.PlainText)
}

func TestRenderIsCaseSensitive(t *testing.T) {
	out := Render(Content{Subject: "{{ClientName}}"}, Variables{"clientName": "Ada"})
	assert.Equal(t, "", out.Subject)
}

func TestRenderFallsBackToBodyForPlainText(t *testing.T) {
	out := Render(Content{Body: "Hi {{clientName}}"}, Variables{"clientName": "Ada"})
	assert.Equal(t, "Hi Ada", out.PlainText)
}

func TestRenderIsFixedPointOnceResolved(t *testing.T) {
	vars := Variables{
		VarClientName:    "Ada Lovelace",
		VarClientEmail:   "ada@example.com",
		VarClientPhone:   "555-0100",
		VarClientAddress: "1 Analytical Way",
		VarCompanyName:   "Acme Data",
		VarDeadline:      "March 5, 2024",
	}
	for _, j := range enums.Jurisdictions {
		once := Render(Builtin(j), vars)
		twice := Render(once, vars)
		assert.Equal(t, once, twice, string(j))
		assert.NotContains(t, once.PlainText, "{{", string(j))
	}
}

func TestDeadlineOffsets(t *testing.T) {
	from := time.Date(2024, time.January, 20, 10, 0, 0, 0, time.UTC)
	cases := []struct {
		j    enums.Jurisdiction
		want time.Time
	}{
		{enums.CCPA, from.AddDate(0, 0, 45)},
		{enums.GDPR, time.Date(2024, time.February, 20, 10, 0, 0, 0, time.UTC)},
		{enums.PIPEDA, from.AddDate(0, 0, 30)},
		{enums.LGPD, from.AddDate(0, 0, 15)},
		{enums.Jurisdiction("OTHER"), from.AddDate(0, 0, 30)},
	}
	for _, tc := range cases {
		t.Run(string(tc.j), func(t *testing.T) {
			assert.Equal(t, tc.want, Deadline(tc.j, from))
		})
	}
}

func TestFormatDeadline(t *testing.T) {
	from := time.Date(2024, time.January, 20, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "March 5, 2024", FormatDeadline(enums.CCPA, from))
}

func TestBuiltinsReferenceExpectedVariables(t *testing.T) {
	for _, j := range enums.Jurisdictions {
		names := Placeholders(Builtin(j).PlainText)
		for _, want := range []string{VarClientName, VarClientEmail, VarClientPhone, VarClientAddress, VarCompanyName, VarDeadline} {
			assert.Contains(t, names, want, string(j))
		}
	}
	names := Placeholders(FollowUp().Subject + FollowUp().PlainText)
	for _, want := range []string{VarJurisdiction, VarOriginalDate, VarOriginalSubject} {
		assert.Contains(t, names, want)
	}
}

func TestBuiltinUnknownJurisdictionUsesCCPA(t *testing.T) {
	assert.Equal(t, Builtin(enums.CCPA), Builtin(enums.Jurisdiction("HIPAA")))
	assert.Equal(t, FollowUp(), BuiltinFor(enums.GDPR, enums.TemplateFollowUp))
	assert.Equal(t, Builtin(enums.GDPR), BuiltinFor(enums.GDPR, enums.TemplateEscalation))
}

func TestBuiltinBodyIsHTML(t *testing.T) {
	body := Builtin(enums.GDPR).Body
	assert.True(t, strings.HasPrefix(body, "<p>"))
	assert.Contains(t, body, "{{clientName}}")
}
