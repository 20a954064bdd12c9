package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/reefs-ai/reefs-backend/internal/pkg/notify"
	tracebiz "github.com/reefs-ai/reefs-backend/internal/trace/biz"
	tracedata "github.com/reefs-ai/reefs-backend/internal/trace/data"
	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

var (
	traceUser   string
	traceStatus string
	traceLimit  int
)

var levelStyles = map[types.Level]lipgloss.Style{
	types.LevelInfo:    lipgloss.NewStyle().Foreground(lipgloss.Color("#8BC34A")),
	types.LevelWarning: lipgloss.NewStyle().Foreground(lipgloss.Color("#FFC107")),
	types.LevelError:   lipgloss.NewStyle().Foreground(lipgloss.Color("#F44336")).Bold(true),
}

// tracesCmd prints the log entries of one user, newest first
var tracesCmd = &cobra.Command{
	Use:   "traces",
	Short: "List agent traces and spans of a user",
	Long: `List the agent log of a user the same way the traces panel shows it.

--status keeps entries with that status, e.g. completed or failed. "all" keeps everything.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if traceUser == "" {
			return fmt.Errorf("--user is required")
		}
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		limit := traceLimit
		if limit <= 0 {
			limit = config.Trace.SnapshotLimit
		}
		uc := tracebiz.NewTraceUseCase(tracedata.NewTraceRepo(db), nil, notify.NewLocal(), limit, log)
		entries, err := uc.Entries(cmd.Context(), traceUser, traceStatus)
		if err != nil {
			return fmt.Errorf("failed to load traces: %w", err)
		}
		return renderEntries(cmd.OutOrStdout(), entries.Entries)
	},
}

func init() {
	tracesCmd.Flags().StringVarP(&traceUser, "user", "u", "", "user id")
	tracesCmd.Flags().StringVarP(&traceStatus, "status", "s", "all", "status filter")
	tracesCmd.Flags().IntVarP(&traceLimit, "limit", "n", 0, "max traces and spans to load (default trace.snapshot_limit)")
}

// renderEntries 以表格输出日志条目。带颜色的级别放在最后一列,
// tabwriter 会把 ANSI 转义计入宽度, 放在中间会让后面的列错位
func renderEntries(out io.Writer, entries []types.LogEntry) error {
	if len(entries) == 0 {
		_, err := fmt.Fprintln(out, "no entries")
		return err
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tTYPE\tSTATUS\tDURATION\tMESSAGE\tLEVEL")
	for _, e := range entries {
		duration := "-"
		if e.Duration != nil {
			duration = tracebiz.FormatDuration(*e.Duration)
		}
		level := strings.ToUpper(string(e.Level))
		if style, ok := levelStyles[e.Level]; ok {
			level = style.Render(level)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			tracebiz.FormatTimestamp(e.Timestamp), e.Type, e.Status, duration, e.Message, level)
	}
	return w.Flush()
}
