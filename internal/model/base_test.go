package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestampUnmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339 millis", `"2024-03-01T10:00:00.000Z"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"no zone", `"2024-03-01T10:00:00"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"bare date", `"2024-03-01"`, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)},
		{"epoch millis", `1709287200000`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"js date", `"Fri Mar 01 2024 10:00:00 GMT+0000"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"js date with zone name", `"Fri Mar 01 2024 10:00:00 GMT+0000 (Coordinated Universal Time)"`, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)},
		{"null", `null`, time.Time{}},
		{"empty", `""`, time.Time{}},
		{"garbage", `"next tuesday"`, time.Time{}},
		{"bool", `true`, time.Time{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := At(time.Now())
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}
}

func TestUnparseableDateKeepsTheRestOfTheList(t *testing.T) {
	var appts []Appointment
	err := json.Unmarshal([]byte(`[
		{"_id":"a1","date":"2024-03-01T10:00:00.000Z"},
		{"_id":"a2","date":"sometime soon"}
	]`), &appts)
	require.NoError(t, err)
	require.Len(t, appts, 2)
	assert.Equal(t, 2024, appts[0].Date.Year())
	assert.Equal(t, "a2", appts[1].ID)
	assert.True(t, appts[1].Date.IsZero())
}

func TestTimestampMarshalZeroIsNull(t *testing.T) {
	b, err := json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, "null", string(b))
}
