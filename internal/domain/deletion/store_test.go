package deletion

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"wipetrace/internal/domain/enums"
)

func TestBuildUpdateGuardsExpectedStatus(t *testing.T) {
	sent := enums.StatusSent
	at := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	query, args := buildUpdate("dr-1", enums.StatusPending, Patch{Status: &sent, SentAt: &at, LastEmailSent: &at, IncrementEmailsSent: true})

	assert.Equal(t, "UPDATE deletion_requests SET updated_at = now(), status = $2, sent_at = $3, last_email_sent = $4, "+
		"emails_sent = emails_sent + 1 WHERE id = $1 AND status = $5", query)
	assert.Equal(t, []any{"dr-1", sent, at, at, enums.StatusPending}, args)
}

func TestBuildUpdateWithoutExpectedStatus(t *testing.T) {
	notes := "called them"
	answered := true

	query, args := buildUpdate("dr-1", "", Patch{Notes: &notes, ResponseReceived: &answered})

	assert.Equal(t, "UPDATE deletion_requests SET updated_at = now(), notes = $2, response_received = $3 WHERE id = $1", query)
	assert.Equal(t, []any{"dr-1", notes, answered}, args)
	assert.NotContains(t, query, "emails_sent")
}

func TestBuildUpdateOnlyIncrements(t *testing.T) {
	query, args := buildUpdate("dr-1", enums.StatusSent, Patch{IncrementEmailsSent: true})

	assert.Equal(t, "UPDATE deletion_requests SET updated_at = now(), emails_sent = emails_sent + 1 WHERE id = $1 AND status = $2", query)
	assert.Equal(t, []any{"dr-1", enums.StatusSent}, args)
}

func TestBuildFilter(t *testing.T) {
	where, args := buildFilter(Filter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	status := enums.StatusSent
	company := "3f1c2d4e-5a6b-4c7d-8e9f-0a1b2c3d4e5f"
	where, args = buildFilter(Filter{UserID: "user-1", Status: &status, CompanyID: &company})
	assert.Equal(t, " WHERE dr.user_id = $1 AND dr.status = $2 AND dr.company_id = $3", where)
	assert.Equal(t, []any{"user-1", status, company}, args)
}
