package biz

import (
	"fmt"
	"time"

	"github.com/reefs-ai/reefs-backend/internal/trace/types"
)

// Unknown 无法归一化的时间戳显示为此值
const Unknown = "Unknown"

// Normalize 转换 Instant, 无效值返回 ok=false
func Normalize(i types.Instant) (time.Time, bool) {
	return types.Normalize(i)
}

// FormatRelative 相对时间 ("5m ago"), 超过一周显示绝对日期
func FormatRelative(i types.Instant, now time.Time) string {
	t, ok := Normalize(i)
	if !ok {
		return Unknown
	}
	d := now.Sub(t)
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d/time.Second))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d/time.Minute))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d/time.Hour))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d/(24*time.Hour)))
	default:
		return t.UTC().Format("Jan 2, 2006 15:04")
	}
}

// FormatTimestamp 绝对 UTC 时间
func FormatTimestamp(i types.Instant) string {
	t, ok := Normalize(i)
	if !ok {
		return Unknown
	}
	return t.UTC().Format("2006-01-02 15:04:05")
}

// FormatDuration 毫秒转 "850ms"、"1.5s" 或 "2.3m"
func FormatDuration(ms int64) string {
	switch {
	case ms < 1000:
		return fmt.Sprintf("%dms", ms)
	case ms < 60000:
		return fmt.Sprintf("%.1fs", float64(ms)/1000)
	default:
		return fmt.Sprintf("%.1fm", float64(ms)/60000)
	}
}
