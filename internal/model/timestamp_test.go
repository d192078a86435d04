package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimestamp_Marshal(t *testing.T) {
	ts := Timestamp{Time: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	out, err := json.Marshal(ts)
	require.NoError(t, err)
	assert.Equal(t, `"2025-03-01T09:00:00Z"`, string(out))

	out, err = json.Marshal(Timestamp{})
	require.NoError(t, err)
	assert.Equal(t, `null`, string(out))
}

func TestTimestamp_Unmarshal(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want time.Time
	}{
		{"rfc3339", `"2025-03-01T09:00:00Z"`, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		{"offset", `"2025-03-01T18:00:00+09:00"`, time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
		{"naive micro", `"2025-03-01T09:00:00.123456"`, time.Date(2025, 3, 1, 9, 0, 0, 123456000, time.Local)},
		{"naive space", `"2025-03-01 09:00:00"`, time.Date(2025, 3, 1, 9, 0, 0, 0, time.Local)},
		{"null", `null`, time.Time{}},
		{"empty", `""`, time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			require.NoError(t, json.Unmarshal([]byte(tt.in), &ts))
			assert.True(t, tt.want.Equal(ts.Time), "got %v", ts.Time)
		})
	}
}

func TestTimestamp_UnmarshalInvalid(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	assert.Error(t, json.Unmarshal([]byte(`12`), &ts))
}

func TestTimestamp_PointerNull(t *testing.T) {
	var doc struct {
		LastUpdated *Timestamp `json:"lastUpdated"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"lastUpdated": null}`), &doc))
	assert.Nil(t, doc.LastUpdated)
}
