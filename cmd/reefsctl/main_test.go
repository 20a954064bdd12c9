package main

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reefs-ai/reefs-backend/internal/pkg/database"
	"github.com/reefs-ai/reefs-backend/internal/pkg/logger"
	tracedata "github.com/reefs-ai/reefs-backend/internal/trace/data"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append([]string{"--config="}, args...))
	require.NoError(t, rootCmd.Execute(), out.String())
	return out.String()
}

func TestRenderEntries(t *testing.T) {
	var out bytes.Buffer
	require.NoError(t, renderEntries(&out, nil))
	assert.Equal(t, "no entries\n", out.String())

	ms := int64(1500)
	out.Reset()
	require.NoError(t, renderEntries(&out, []types.LogEntry{{
		ID:        "1",
		Timestamp: types.ISO("2025-06-10T12:00:00Z"),
		Type:      types.EntryTrace,
		Level:     types.LevelInfo,
		Message:   "Planner: weekly digest",
		Status:    types.StatusCompleted,
		Duration:  &ms,
	}}))
	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "TIME"))
	assert.Contains(t, lines[1], "2025-06-10 12:00:00")
	assert.Contains(t, lines[1], "1.5s")
	assert.Contains(t, lines[1], "Planner: weekly digest")
	assert.True(t, strings.HasSuffix(lines[1], "INFO"))

	out.Reset()
	require.NoError(t, renderEntries(&out, []types.LogEntry{
		{ID: "1", Type: types.EntryTrace, Level: types.LevelInfo, Status: types.StatusCompleted, Message: "a"},
		{ID: "2", Type: types.EntrySpan, Level: types.LevelWarning, Status: types.StatusFailed, Message: "b"},
	}))
	lines = strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasSuffix(lines[1], "INFO"))
	assert.True(t, strings.HasSuffix(lines[2], "WARNING"))
	// every column before the level starts at the same offset on each row
	assert.Equal(t, strings.Index(lines[0], "LEVEL"), strings.LastIndex(lines[1], "INFO"))
	assert.Equal(t, strings.Index(lines[0], "LEVEL"), strings.LastIndex(lines[2], "WARNING"))
}

func TestCommands(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "reefs.db")
	t.Setenv("REEFS_AUTH_JWT_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("REEFS_DATABASE_DRIVER", "sqlite")
	t.Setenv("REEFS_DATABASE_PATH", dbPath)

	assert.Contains(t, execute(t, "migrate"), "migrated 4 tables")

	cfg := database.DefaultConfig()
	cfg.Driver = database.DriverSQLite
	cfg.Path = dbPath
	db, err := database.New(cfg, logger.NewNop())
	require.NoError(t, err)
	start := time.Now().Add(-time.Minute)
	require.NoError(t, tracedata.NewTraceRepo(db).CreateTrace(context.Background(), &types.Trace{
		ID:        "tr-1",
		TraceID:   "trace_1",
		UserID:    "u1",
		Status:    types.StatusFailed,
		StartTime: types.Native(start),
		EndTime:   types.Native(start.Add(2 * time.Second)),
		Metadata:  types.Metadata{"agent_type": "Planner", "name": "digest"},
	}))
	require.NoError(t, db.Close())

	stats := execute(t, "stats")
	assert.Contains(t, stats, "agent_traces")
	assert.Regexp(t, `agent_traces\s+1`, stats)

	traces := execute(t, "traces", "--user", "u1", "--status", "failed")
	assert.Contains(t, traces, "Planner: digest")
	assert.Contains(t, traces, "2.0s")

	assert.Contains(t, execute(t, "traces", "--user", "u2", "--status", "all"), "no entries")

	assert.Contains(t, execute(t, "tools"), "Gmail.SendEmail")
}
