package scheduler

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"visitbot/internal/gateway"
	"visitbot/internal/monitor"
)

func termAt(scheduleID int64, start time.Time) monitor.Term {
	return monitor.Term{
		ScheduleID: scheduleID,
		StartAt:    start,
		ClinicID:   3,
		DoctorID:   9,
		DoctorName: "Dr. Nowak",
		ClinicName: "Clinic Center",
	}
}

func TestExecuteNotifiesOnceAndDeactivates(t *testing.T) {
	m := activeMonitoring("m-1", 7)
	st := newFakeStore(m)
	snd := &fakeSender{}
	gw := &fakeGateway{searchFunc: func(int64, monitor.Criteria) ([]monitor.Term, error) {
		return []monitor.Term{termAt(11, time.Now().Add(48 * time.Hour))}, nil
	}}
	s := newTestService(st, gw, snd)
	s.ActivateAll([]monitor.Monitoring{m})

	s.execute(context.Background(), m)

	require.False(t, s.registered(m.ID), "one-shot match must retire the job")
	require.False(t, st.get(m.ID).Active)
	msgs := snd.messages()
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "Found 1 open slots for Cardiology consult")
	assert.Contains(t, msgs[0], "Dr. Nowak")
}

func TestExecuteAutobookUsesEarliestTerm(t *testing.T) {
	m := activeMonitoring("m-1", 7)
	m.Autobook = true
	st := newFakeStore(m)
	early := termAt(11, time.Now().Add(24*time.Hour))
	late := termAt(12, time.Now().Add(72*time.Hour))
	gw := &fakeGateway{searchFunc: func(int64, monitor.Criteria) ([]monitor.Term, error) {
		return []monitor.Term{early, late}, nil
	}}
	snd := &fakeSender{}
	s := newTestService(st, gw, snd)
	booker := &fakeBooker{}
	s.SetBooker(booker)
	s.ActivateAll([]monitor.Monitoring{m})
	defer s.cancelAll()

	s.execute(context.Background(), m)

	require.Len(t, booker.booked, 1)
	assert.Equal(t, early.ScheduleID, booker.booked[0].ScheduleID)
	assert.Empty(t, snd.messages(), "booking outcome messaging belongs to the coordinator")
}

func TestExecuteTransientErrorKeepsJob(t *testing.T) {
	m := activeMonitoring("m-1", 7)
	st := newFakeStore(m)
	gw := &fakeGateway{searchFunc: func(int64, monitor.Criteria) ([]monitor.Term, error) {
		return nil, errors.New("gateway timeout")
	}}
	snd := &fakeSender{}
	s := newTestService(st, gw, snd)
	s.ActivateAll([]monitor.Monitoring{m})
	defer s.cancelAll()

	s.execute(context.Background(), m)

	require.True(t, s.registered(m.ID), "transient failures must not retire the job")
	require.True(t, st.get(m.ID).Active)
	assert.Empty(t, snd.messages())
}

func TestAuthFailureCascadesAcrossAccount(t *testing.T) {
	m1 := activeMonitoring("m-1", 7)
	m2 := activeMonitoring("m-2", 7)
	m3 := activeMonitoring("m-3", 7)
	other := activeMonitoring("m-other", 8)
	st := newFakeStore(m1, m2, m3, other)
	gw := &fakeGateway{searchFunc: func(int64, monitor.Criteria) ([]monitor.Term, error) {
		return nil, fmt.Errorf("status 401: %w", gateway.ErrInvalidCredentials)
	}}
	snd := &fakeSender{}
	s := newTestService(st, gw, snd)
	s.ActivateAll([]monitor.Monitoring{m1, m2, m3, other})
	defer s.cancelAll()

	s.execute(context.Background(), m1)

	for _, id := range []string{"m-1", "m-2", "m-3"} {
		assert.False(t, s.registered(id), "%s must be unscheduled", id)
		assert.False(t, st.get(id).Active, "%s must be inactive", id)
	}
	assert.True(t, s.registered("m-other"), "other accounts are untouched")
	assert.True(t, st.get("m-other").Active)
	require.Len(t, snd.messages(), 1, "exactly one message per failing account")
	assert.Contains(t, snd.messages()[0], "session was rejected")
}

func TestAuthFailureCatchesUnscheduledRecords(t *testing.T) {
	// m-2 is in the store but not yet discovered; the cascade reads the store
	// fresh, so it is retired too.
	m1 := activeMonitoring("m-1", 7)
	m2 := activeMonitoring("m-2", 7)
	st := newFakeStore(m1, m2)
	gw := &fakeGateway{searchFunc: func(int64, monitor.Criteria) ([]monitor.Term, error) {
		return nil, gateway.ErrInvalidCredentials
	}}
	s := newTestService(st, gw, &fakeSender{})
	s.ActivateAll([]monitor.Monitoring{m1})
	defer s.cancelAll()

	s.execute(context.Background(), m1)

	assert.False(t, st.get("m-1").Active)
	assert.False(t, st.get("m-2").Active)
}

func TestFilterTermsTimeWindow(t *testing.T) {
	now := time.Now()
	day := now.Add(48 * time.Hour)
	at := func(hour, min int) time.Time {
		return time.Date(day.Year(), day.Month(), day.Day(), hour, min, 0, 0, time.Local)
	}
	c := monitor.Criteria{
		DateFrom: now.Add(-time.Hour),
		DateTo:   now.Add(14 * 24 * time.Hour),
		TimeFrom: "09:00",
		TimeTo:   "12:00",
	}

	cases := []struct {
		name  string
		start time.Time
		want  bool
	}{
		{"at lower bound", at(9, 0), true},
		{"at upper bound", at(12, 0), true},
		{"inside", at(11, 59), true},
		{"before window", at(8, 59), false},
		{"after window", at(12, 1), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := filterTerms(c, []monitor.Term{termAt(1, tc.start)}, now)
			if tc.want {
				require.Len(t, got, 1)
			} else {
				require.Empty(t, got)
			}
		})
	}
}

func TestFilterTermsClampsDateRange(t *testing.T) {
	now := time.Now()
	c := monitor.Criteria{
		DateFrom: now.Add(-72 * time.Hour), // past lower bound clamps to now
		DateTo:   now.Add(7 * 24 * time.Hour),
	}
	past := termAt(1, now.Add(-time.Hour))
	ok := termAt(2, now.Add(24*time.Hour))
	beyond := termAt(3, now.Add(30*24*time.Hour))

	got := filterTerms(c, []monitor.Term{past, ok, beyond}, now)

	require.Len(t, got, 1)
	assert.Equal(t, int64(2), got[0].ScheduleID)
}
