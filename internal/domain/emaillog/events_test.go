package emaillog

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"wipetrace/internal/domain/enums"
)

func TestParseEventTypeAliases(t *testing.T) {
	cases := map[string]EventType{
		"delivered":       EventDelivered,
		"email.delivered": EventDelivered,
		"open":            EventOpened,
		"Opened":          EventOpened,
		"email.clicked":   EventClicked,
		"click":           EventClicked,
		"dropped":         EventBounced,
		"bounce":          EventBounced,
	}
	for raw, want := range cases {
		got, ok := ParseEventType(raw)
		assert.True(t, ok, raw)
		assert.Equal(t, want, got, raw)
	}

	_, ok := ParseEventType("processed")
	assert.False(t, ok)
}

func TestNextStatusIsMonotonic(t *testing.T) {
	cases := []struct {
		current enums.EmailStatus
		event   EventType
		want    enums.EmailStatus
	}{
		{enums.EmailSent, EventDelivered, enums.EmailDelivered},
		{enums.EmailDelivered, EventOpened, enums.EmailOpened},
		{enums.EmailOpened, EventDelivered, enums.EmailOpened},
		{enums.EmailClicked, EventOpened, enums.EmailClicked},
		{enums.EmailSent, EventClicked, enums.EmailClicked},
		{enums.EmailOpened, EventBounced, enums.EmailBounced},
		{enums.EmailBounced, EventDelivered, enums.EmailBounced},
		{enums.EmailFailed, EventDelivered, enums.EmailFailed},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, NextStatus(tc.current, tc.event), "%s + %s", tc.current, tc.event)
	}
}

func TestNormalizeMessageID(t *testing.T) {
	assert.Equal(t, "14c5d75ce93", NormalizeMessageID("14c5d75ce93.filter0001.16648.5515E0B88.0"))
	assert.Equal(t, "abc", NormalizeMessageID(" <abc> "))
	assert.Equal(t, "plain-id", NormalizeMessageID("plain-id"))
}
