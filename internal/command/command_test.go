package command

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Iron-Ham/herobot/internal/chat"
)

func TestParse(t *testing.T) {
	tests := []struct {
		text string
		kind Kind
		ok   bool
	}{
		{"/status", Status, true},
		{"/stop", Stop, true},
		{"/status ", 0, false},
		{"/STOP", 0, false},
		{"/stop@herobot", 0, false},
		{"status", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			msg := chat.Inbound{ID: 3, Text: tt.text}
			cmd, ok := Parse(msg)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, cmd.Kind)
			if ok {
				assert.Equal(t, msg, cmd.Message)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "status", Status.String())
	assert.Equal(t, "stop", Stop.String())
	assert.Equal(t, "unknown", Kind(0).String())
}
