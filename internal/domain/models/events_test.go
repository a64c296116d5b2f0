package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Temutjin2k/driver-engine/internal/domain/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttendanceEvent_UnmarshalDate(t *testing.T) {
	tests := []struct {
		name string
		date string
		want time.Time
	}{
		{"date only", `"2026-05-01"`, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
		{"rfc3339", `"2026-05-01T00:00:00Z"`, time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := `{"source_event_id":"a-1","date":` + tt.date + `,"checked_in":true,"attendance_status":"late","delay_minutes":7}`

			var ev AttendanceEvent
			require.NoError(t, json.Unmarshal([]byte(body), &ev))
			assert.True(t, tt.want.Equal(ev.Date))
			assert.Equal(t, "a-1", ev.SourceEventID)
			assert.True(t, ev.CheckedIn)
			assert.Equal(t, types.AttendanceLate, ev.Status)
			assert.Equal(t, 7, ev.DelayMinutes)
		})
	}
}

func TestAttendanceEvent_UnmarshalBadDate(t *testing.T) {
	var ev AttendanceEvent
	assert.Error(t, json.Unmarshal([]byte(`{"date":"01/05/2026"}`), &ev))
}
