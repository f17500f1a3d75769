package monitor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInTimeWindow(t *testing.T) {
	at := func(hour, min int) time.Time {
		return time.Date(2026, 9, 14, hour, min, 0, 0, time.Local)
	}
	cases := []struct {
		name     string
		t        time.Time
		from, to string
		want     bool
	}{
		{"no bounds", at(3, 0), "", "", true},
		{"equal lower bound", at(9, 0), "09:00", "12:00", true},
		{"equal upper bound", at(12, 0), "09:00", "12:00", true},
		{"just inside upper", at(11, 59), "09:00", "12:00", true},
		{"just below lower", at(8, 59), "09:00", "12:00", false},
		{"just above upper", at(12, 1), "09:00", "12:00", false},
		{"only lower, above", at(15, 0), "09:00", "", true},
		{"only lower, below", at(8, 0), "09:00", "", false},
		{"only upper, below", at(8, 0), "", "12:00", true},
		{"only upper, above", at(13, 0), "", "12:00", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, InTimeWindow(tc.t, tc.from, tc.to))
		})
	}
}

func TestCriteriaWindowClampsToNow(t *testing.T) {
	now := time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)
	c := Criteria{
		DateFrom: now.Add(-72 * time.Hour),
		DateTo:   now.Add(7 * 24 * time.Hour),
	}
	from, to := c.Window(now)
	assert.Equal(t, now, from, "past lower bound clamps to now")
	assert.Equal(t, c.DateTo, to)
}

func TestCriteriaWindowOffset(t *testing.T) {
	now := time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)
	c := Criteria{
		DateFrom:    now.Add(time.Hour),
		DateTo:      now.Add(7 * 24 * time.Hour),
		OffsetHours: 5,
	}
	from, _ := c.Window(now)
	assert.Equal(t, now.Add(5*time.Hour), from, "offset wins over an earlier date_from")
}

func TestCriteriaWindowFutureLowerBoundKept(t *testing.T) {
	now := time.Date(2026, 9, 14, 12, 0, 0, 0, time.UTC)
	c := Criteria{
		DateFrom: now.Add(48 * time.Hour),
		DateTo:   now.Add(7 * 24 * time.Hour),
	}
	from, _ := c.Window(now)
	assert.Equal(t, c.DateFrom, from)
}

func TestExpired(t *testing.T) {
	now := time.Now()
	m := Monitoring{Criteria: Criteria{DateTo: now.Add(-time.Minute)}}
	assert.True(t, m.Expired(now))

	m.Criteria.DateTo = now.Add(time.Minute)
	assert.False(t, m.Expired(now))

	m.Criteria.DateTo = time.Time{}
	assert.False(t, m.Expired(now), "open-ended range never expires")
}

func TestValidate(t *testing.T) {
	now := time.Now()
	valid := Monitoring{
		AccountID:   7,
		Destination: Destination{System: "telegram", ChatID: 7},
		Criteria:    Criteria{DateFrom: now, DateTo: now.Add(24 * time.Hour)},
	}
	require.NoError(t, valid.Validate())

	m := valid
	m.AccountID = 0
	assert.Error(t, m.Validate())

	m = valid
	m.Destination.ChatID = 0
	assert.Error(t, m.Validate())

	m = valid
	m.Criteria.DateTo = time.Time{}
	assert.Error(t, m.Validate())

	m = valid
	m.Criteria.DateTo = m.Criteria.DateFrom
	assert.Error(t, m.Validate(), "date_to must be strictly after date_from")
}

func TestNewID(t *testing.T) {
	a, b := NewID(), NewID()
	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)
}
