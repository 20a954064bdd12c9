package types

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	t0 := time.Date(2025, 3, 4, 10, 20, 30, 0, time.UTC)
	tests := []struct {
		name string
		in   Instant
		want time.Time
		ok   bool
	}{
		{"absent", Instant{}, time.Time{}, false},
		{"native", Native(t0), t0, true},
		{"native zero is absent", Native(time.Time{}), time.Time{}, false},
		{"rfc3339", ISO("2025-03-04T10:20:30Z"), t0, true},
		{"fractional", ISO("2025-03-04T10:20:30.250Z"), t0.Add(250 * time.Millisecond), true},
		{"offset", ISO("2025-03-04T12:20:30+02:00"), t0, true},
		{"no zone", ISO("2025-03-04T10:20:30"), t0, true},
		{"date only", ISO("2025-03-04"), time.Date(2025, 3, 4, 0, 0, 0, 0, time.UTC), true},
		{"garbage", ISO("yesterday"), time.Time{}, false},
		{"empty string", ISO(""), time.Time{}, false},
		{"lazy ok", Lazy(func() (time.Time, bool) { return t0, true }), t0, true},
		{"lazy failure", Lazy(func() (time.Time, bool) { return time.Time{}, false }), time.Time{}, false},
		{"lazy nil", Lazy(nil), time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.in)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestInstantUnmarshalJSON(t *testing.T) {
	t0 := time.Date(2025, 3, 4, 10, 20, 30, 500, time.UTC)
	tests := []struct {
		name string
		raw  string
		want time.Time
		ok   bool
	}{
		{"iso string", `"2025-03-04T10:20:30.0000005Z"`, t0, true},
		{"epoch millis", `1741083630000`, time.Date(2025, 3, 4, 10, 20, 30, 0, time.UTC), true},
		{"firestore wrapper", `{"_seconds":1741083630,"_nanoseconds":500}`, t0, true},
		{"protobuf wrapper", `{"seconds":1741083630,"nanos":500}`, t0, true},
		{"bad nanos", `{"_seconds":1741083630,"_nanoseconds":-1}`, time.Time{}, false},
		{"null", `null`, time.Time{}, false},
		{"bool", `true`, time.Time{}, false},
		{"unrelated object", `{"when":"now"}`, time.Time{}, false},
		{"array", `[1,2]`, time.Time{}, false},
		{"unparseable string", `"not a date"`, time.Time{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var i Instant
			require.NoError(t, json.Unmarshal([]byte(tt.raw), &i))
			got, ok := Normalize(i)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, tt.want.Equal(got), "got %v want %v", got, tt.want)
			}
		})
	}
}

func TestInstantInStruct(t *testing.T) {
	var s Span
	require.NoError(t, json.Unmarshal([]byte(`{"id":"s1","start_time":{"_seconds":10,"_nanoseconds":0},"end_time":null}`), &s))
	assert.False(t, s.StartTime.IsAbsent())
	assert.True(t, s.EndTime.IsAbsent())

	out, err := json.Marshal(struct {
		A Instant `json:"a"`
		B Instant `json:"b"`
	}{A: s.StartTime, B: ISO("garbage")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":"1970-01-01T00:00:10Z","b":null}`, string(out))
}

func TestMetadataString(t *testing.T) {
	m := Metadata{"name": "x", "count": 3}
	v, ok := m.String("name")
	assert.True(t, ok)
	assert.Equal(t, "x", v)
	_, ok = m.String("count")
	assert.False(t, ok)
	_, ok = Metadata(nil).String("name")
	assert.False(t, ok)
}
