package types

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

type instantKind uint8

const (
	instantAbsent instantKind = iota
	instantNative
	instantISO
	instantLazy
)

// Instant 文档存储中读到的时间戳, 可能是原生时间、ISO-8601 字符串,
// 或延迟转换的包装。零值表示缺失
type Instant struct {
	kind instantKind
	t    time.Time
	iso  string
	lazy func() (time.Time, bool)
}

// Native 包装原生时间
func Native(t time.Time) Instant {
	if t.IsZero() {
		return Instant{}
	}
	return Instant{kind: instantNative, t: t}
}

// ISO 包装字符串, 归一化时再解析
func ISO(s string) Instant {
	return Instant{kind: instantISO, iso: s}
}

// Lazy 包装延迟转换, fn 无法给出时间时返回 false
func Lazy(fn func() (time.Time, bool)) Instant {
	if fn == nil {
		return Instant{}
	}
	return Instant{kind: instantLazy, lazy: fn}
}

// NativePtr 包装可选时间
func NativePtr(t *time.Time) Instant {
	if t == nil {
		return Instant{}
	}
	return Native(*t)
}

// IsAbsent 是否完全没有提供值
func (i Instant) IsAbsent() bool {
	return i.kind == instantAbsent
}

var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// Normalize 转换为时间。缺失、无法解析的字符串以及失败的延迟转换
// 都返回 ok=false
func Normalize(i Instant) (time.Time, bool) {
	switch i.kind {
	case instantNative:
		return i.t, true
	case instantISO:
		s := strings.TrimSpace(i.iso)
		if s == "" {
			return time.Time{}, false
		}
		for _, layout := range isoLayouts {
			// 不带时区的格式按 UTC 解析
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	case instantLazy:
		t, ok := i.lazy()
		if !ok || t.IsZero() {
			return time.Time{}, false
		}
		return t, true
	default:
		return time.Time{}, false
	}
}

func (i Instant) Time() (time.Time, bool) {
	return Normalize(i)
}

// MarshalJSON 输出 RFC 3339 字符串, 无法归一化时输出 null
func (i Instant) MarshalJSON() ([]byte, error) {
	t, ok := Normalize(i)
	if !ok {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

// UnmarshalJSON 接受字符串、毫秒时间戳,
// 以及 {"_seconds","_nanoseconds"} / {"seconds","nanos"} 对象, 其余视为缺失
func (i *Instant) UnmarshalJSON(data []byte) error {
	*i = Instant{}
	if !gjson.ValidBytes(data) {
		return nil
	}
	v := gjson.ParseBytes(data)
	switch v.Type {
	case gjson.String:
		*i = ISO(v.String())
	case gjson.Number:
		*i = Native(time.UnixMilli(v.Int()).UTC())
	case gjson.JSON:
		if !v.IsObject() {
			return nil
		}
		secs, nanos := v.Get("_seconds"), v.Get("_nanoseconds")
		if !secs.Exists() {
			secs, nanos = v.Get("seconds"), v.Get("nanos")
		}
		if !secs.Exists() {
			return nil
		}
		*i = Lazy(secondsNanos(secs, nanos))
	}
	return nil
}

func secondsNanos(secs, nanos gjson.Result) func() (time.Time, bool) {
	return func() (time.Time, bool) {
		if secs.Type != gjson.Number || (nanos.Exists() && nanos.Type != gjson.Number) {
			return time.Time{}, false
		}
		n := nanos.Int()
		if n < 0 || n >= int64(time.Second) {
			return time.Time{}, false
		}
		return time.Unix(secs.Int(), n).UTC(), true
	}
}
