package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_StructuredJSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)

	log.Info().Str("order_ref", "pf_order_1").Msg("order created")

	var output map[string]interface{}
	err := json.Unmarshal(buf.Bytes(), &output)
	require.NoError(t, err, "logger output should be valid JSON")

	assert.Equal(t, "order created", output["message"])
	assert.Equal(t, "pf_order_1", output["order_ref"])
	assert.Equal(t, "info", output["level"])
	assert.Contains(t, output, "time")
}

func TestNew_LevelFiltering(t *testing.T) {
	cases := []struct {
		level   string
		debugOK bool
		infoOK  bool
	}{
		{"debug", true, true},
		{"info", false, true},
		{"error", false, false},
	}

	for _, tc := range cases {
		t.Run(tc.level, func(t *testing.T) {
			var buf bytes.Buffer
			log := NewWithWriter(tc.level, &buf)

			log.Debug().Msg("dbg")
			assert.Equal(t, tc.debugOK, buf.Len() > 0, "debug visibility")

			buf.Reset()
			log.Info().Msg("inf")
			assert.Equal(t, tc.infoOK, buf.Len() > 0, "info visibility")

			buf.Reset()
			log.Error().Msg("err")
			assert.NotEmpty(t, buf.String(), "error is always visible")
		})
	}
}

func TestNew_InvalidLevel_DefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter("nonsense", &buf)

	log.Debug().Msg("should not appear")
	assert.Empty(t, buf.String())

	log.Info().Msg("should appear")
	assert.NotEmpty(t, buf.String())
}

func TestNew_PrettyMode(t *testing.T) {
	// Pretty mode writes to stdout; just ensure construction works.
	log := New("info", true)
	log.Info().Msg("pretty mode test")
}
