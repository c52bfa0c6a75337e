package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJSONLineShape(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "compliance-test", "info")
	t.Cleanup(func() { Setup(os.Stdout, "compliance", "info") })

	Info("arrival_recorded", "arrival logged", "vehicle_id", "v1", "delay_minutes", 4)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "compliance-test", entry["service"])
	assert.Equal(t, "arrival_recorded", entry["action"])
	assert.Equal(t, "arrival logged", entry["message"])
	assert.Equal(t, "v1", entry["vehicle_id"])
	assert.Equal(t, 4.0, entry["delay_minutes"])
	assert.Contains(t, entry, "timestamp")
	assert.Contains(t, entry, "hostname")
}

func TestErrorCarriesErrorText(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "compliance-test", "info")
	t.Cleanup(func() { Setup(os.Stdout, "compliance", "info") })

	Error("db_write", "copy failed", errors.New("conn reset"), "rows", 10)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "ERROR", entry["level"])
	assert.Equal(t, "conn reset", entry["error"])
}

func TestLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "compliance-test", "warn")
	t.Cleanup(func() { Setup(os.Stdout, "compliance", "info") })

	Debug("a", "dropped")
	Info("b", "dropped")
	Warn("c", "kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], `"action":"c"`)
}
