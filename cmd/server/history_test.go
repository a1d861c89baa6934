package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/rpattn/wellhistory/internal/domain"
)

func TestRenderTable(t *testing.T) {
	at := time.Date(2018, 2, 1, 10, 0, 0, 0, time.UTC)
	out := renderTable([]domain.HistoryEntry{
		{
			Timestamp:      at,
			Editor:         "editor",
			EntityLabel:    "Aquifer 42",
			ChangedFields:  map[string]any{"material": "Gravel", "extents": []any{map[string]any{"start": 0.0}}},
			PreviousFields: map[string]any{"material": "Sand and Gravel", "extents": nil},
		},
		domain.NewCreationEntry("Aquifer 42", "creator", at.AddDate(0, -1, 0)),
	})

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 4)
	assert.Contains(t, lines[0], "FIELD")
	assert.Contains(t, lines[1], "extents")
	assert.Contains(t, lines[1], `[{"start":0}]`)
	assert.Contains(t, lines[2], "Sand and Gravel")
	assert.Contains(t, lines[3], "(created)")
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		names[cmd.Name()] = true
	}
	for _, name := range []string{"serve", "migrate", "history", "seed"} {
		assert.True(t, names[name], name)
	}
}
