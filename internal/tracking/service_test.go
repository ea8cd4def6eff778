package tracking

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== テスト用フェイク =====

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type fakeStore struct {
	events     []TimeEvent
	nextID     int64
	statsCalls int
	statsErr   error
}

func newFakeStore(events ...TimeEvent) *fakeStore {
	maxID := int64(0)
	for _, ev := range events {
		if ev.EventID > maxID {
			maxID = ev.EventID
		}
	}
	return &fakeStore{events: events, nextID: maxID + 1}
}

func (f *fakeStore) EventsForDay(_ context.Context, date string) ([]TimeEvent, error) {
	return f.filter(date, date), nil
}

func (f *fakeStore) EventsForMonth(_ context.Context, month string) ([]TimeEvent, error) {
	var out []TimeEvent
	for _, ev := range sortEvents(f.events) {
		if strings.HasPrefix(ev.Date, month+"-") {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (f *fakeStore) EventsForRange(_ context.Context, from, to string) ([]TimeEvent, error) {
	return f.filter(from, to), nil
}

func (f *fakeStore) AllEventsDesc(_ context.Context) ([]TimeEvent, error) {
	sorted := sortEvents(f.events)
	out := make([]TimeEvent, 0, len(sorted))
	for i := len(sorted) - 1; i >= 0; i-- {
		out = append(out, sorted[i])
	}
	return out, nil
}

func (f *fakeStore) OverallStats(_ context.Context, cutoff *string) (OverallStats, error) {
	f.statsCalls++
	if f.statsErr != nil {
		return OverallStats{}, f.statsErr
	}
	var in []TimeEvent
	for _, ev := range f.events {
		if cutoff == nil || ev.Date <= *cutoff {
			in = append(in, ev)
		}
	}
	return OverallBalance(in), nil
}

func (f *fakeStore) Insert(_ context.Context, in EventInput) (int64, error) {
	id := f.nextID
	f.nextID++
	f.events = append(f.events, TimeEvent{
		EventID: id, Date: in.Date, Time: in.Time, Note: in.Note, IsManualEntry: in.IsManualEntry,
	})
	return id, nil
}

func (f *fakeStore) Update(_ context.Context, id int64, in EventInput) error {
	for i := range f.events {
		if f.events[i].EventID == id {
			f.events[i] = TimeEvent{
				EventID: id, Date: in.Date, Time: in.Time, Note: in.Note, IsManualEntry: in.IsManualEntry,
			}
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) Delete(_ context.Context, id int64) error {
	for i := range f.events {
		if f.events[i].EventID == id {
			f.events = append(f.events[:i], f.events[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakeStore) BulkInsert(ctx context.Context, inputs []EventInput) error {
	for _, in := range inputs {
		if _, err := f.Insert(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

func (f *fakeStore) filter(from, to string) []TimeEvent {
	var out []TimeEvent
	for _, ev := range sortEvents(f.events) {
		if from <= ev.Date && ev.Date <= to {
			out = append(out, ev)
		}
	}
	return out
}

// ===== tests =====

func TestClockTogglesCheckInAndOut(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newServiceWith(store, fixedClock{localTime("2026-03-02", "09:00")})

	res, err := svc.Clock(ctx, ClockRequest{})
	require.NoError(t, err)
	assert.Equal(t, ActionCheckIn, res.Action)
	assert.Equal(t, "2026-03-02", res.Event.Date)
	assert.Equal(t, "09:00", res.Event.Time)
	assert.False(t, res.Event.IsManualEntry)

	svc.clock = fixedClock{localTime("2026-03-02", "17:00")}
	res, err = svc.Clock(ctx, ClockRequest{})
	require.NoError(t, err)
	assert.Equal(t, ActionCheckOut, res.Action)
}

func TestDayViewPairedDay(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		ev(1, "2026-03-02", "09:00"),
		ev(2, "2026-03-02", "12:30"),
		ev(3, "2026-03-02", "13:00"),
		ev(4, "2026-03-02", "17:00"),
	)
	svc := newServiceWith(store, fixedClock{localTime("2026-03-02", "18:00")})

	view, err := svc.DayView(ctx, "2026-03-02")
	require.NoError(t, err)

	assert.Equal(t, PeriodDay, view.Kind)
	require.Len(t, view.Events, 4)
	assert.Equal(t, TypeStart, view.Events[0].Type)
	assert.Equal(t, TypeEnd, view.Events[3].Type)
	require.NotNil(t, view.Events[0].Separator)
	assert.Equal(t, "03:30", view.Events[0].Separator.Label)

	assert.Equal(t, "07:30", view.Metrics.Worked)
	assert.Equal(t, "-00:30", view.Metrics.Balance)
	assert.Equal(t, "-00:30", view.Metrics.Overall)
	assert.False(t, view.CheckedIn)
	assert.Empty(t, view.Warnings)
}

func TestDayViewOpenSession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(ev(1, "2026-03-02", "08:00"))
	svc := newServiceWith(store, fixedClock{localTime("2026-03-02", "09:15")})

	view, err := svc.DayView(ctx, "2026-03-02")
	require.NoError(t, err)

	assert.Equal(t, "01:15", view.Metrics.Worked)
	assert.True(t, view.CheckedIn)
	// 進行中セッションの経過分はベースライン（0）に上乗せされる
	assert.Equal(t, "+01:15", view.Metrics.Overall)
}

func TestDayViewDefaultsToToday(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(ev(1, "2026-03-02", "08:00"))
	svc := newServiceWith(store, fixedClock{localTime("2026-03-02", "09:00")})

	view, err := svc.DayView(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", view.Start)

	view, err = svc.DayView(ctx, "today")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", view.Start)
}

func TestDayViewStatsUnavailableFailsFast(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	store.statsErr = assert.AnError
	svc := newServiceWith(store, fixedClock{localTime("2026-03-02", "09:00")})

	// ベースラインが取れないときは 0 に置き換えず失敗させる
	_, err := svc.DayView(ctx, "2026-03-02")
	require.Error(t, err)
	api, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, CodeInternal, api.Code)
	assert.Equal(t, "stats unavailable", api.Message)
}

func TestWeekViewAggregatesPerDay(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		ev(1, "2026-03-02", "09:00"),
		ev(2, "2026-03-02", "16:30"), // 450分
		ev(3, "2026-03-03", "08:00"),
		ev(4, "2026-03-03", "16:20"), // 500分
	)
	svc := newServiceWith(store, fixedClock{localTime("2026-03-06", "10:00")})

	view, err := svc.WeekView(ctx, "2026-03-04")
	require.NoError(t, err)

	assert.Equal(t, "2026-03-02", view.Start)
	assert.Equal(t, "2026-03-08", view.End)
	require.Len(t, view.Events, 4)
	assert.True(t, view.Events[2].ShowDateHeader)

	// 950分 - 2日×480分 = -10分
	assert.Equal(t, "15:50", view.Metrics.Worked)
	assert.Equal(t, "-00:10", view.Metrics.Balance)
	assert.False(t, view.CheckedIn)
}

func TestMonthViewValidatesMonth(t *testing.T) {
	ctx := context.Background()
	svc := newServiceWith(newFakeStore(), fixedClock{localTime("2026-03-06", "10:00")})

	_, err := svc.MonthView(ctx, "2026-3")
	require.Error(t, err)
	api, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidArgument, api.Code)

	view, err := svc.MonthView(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", view.Start)
	assert.Equal(t, "2026-03-31", view.End)
}

func TestBaselineIsMemoizedPerCutoffAndInvalidatedOnMutation(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(
		ev(1, "2026-03-02", "09:00"),
		ev(2, "2026-03-02", "17:00"),
	)
	svc := newServiceWith(store, fixedClock{localTime("2026-03-02", "18:00")})

	_, err := svc.DayView(ctx, "2026-03-02")
	require.NoError(t, err)
	_, err = svc.DayView(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 1, store.statsCalls, "同じ締切日の2回目はメモ化から返す")

	manual := true
	_, err = svc.CreateEvent(ctx, CreateEventRequest{Date: "2026-03-03", Time: "09:00", IsManualEntry: &manual})
	require.NoError(t, err)

	_, err = svc.DayView(ctx, "2026-03-02")
	require.NoError(t, err)
	assert.Equal(t, 2, store.statsCalls, "イベント変更後は再計算する")
}

func TestStatusReportsOpenSession(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore(ev(1, "2026-03-02", "08:00"))
	svc := newServiceWith(store, fixedClock{localTime("2026-03-02", "09:00")})

	res, err := svc.Status(ctx)
	require.NoError(t, err)
	assert.True(t, res.CheckedIn)
	require.NotNil(t, res.Since)
	assert.Equal(t, "08:00", *res.Since)

	_, err = svc.Clock(ctx, ClockRequest{})
	require.NoError(t, err)

	res, err = svc.Status(ctx)
	require.NoError(t, err)
	assert.False(t, res.CheckedIn)
	assert.Nil(t, res.Since)
}

func TestCreateEventValidation(t *testing.T) {
	ctx := context.Background()
	svc := newServiceWith(newFakeStore(), fixedClock{localTime("2026-03-02", "09:00")})

	_, err := svc.CreateEvent(ctx, CreateEventRequest{Date: "02-03-2026", Time: "09:00"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidArgument, err.(*APIError).Code)

	_, err = svc.CreateEvent(ctx, CreateEventRequest{Date: "2026-03-02", Time: "9:00"})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidArgument, err.(*APIError).Code)

	// 省略時は手動打刻として記録する
	res, err := svc.CreateEvent(ctx, CreateEventRequest{Date: "2026-03-02", Time: "09:00"})
	require.NoError(t, err)
	assert.True(t, res.IsManualEntry)
}

func TestUpdateAndDeleteNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newServiceWith(newFakeStore(), fixedClock{localTime("2026-03-02", "09:00")})

	_, err := svc.UpdateEvent(ctx, 99, UpdateEventRequest{Date: "2026-03-02", Time: "09:00"})
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, err.(*APIError).Code)

	err = svc.DeleteEvent(ctx, 99)
	require.Error(t, err)
	assert.Equal(t, CodeNotFound, err.(*APIError).Code)
}

func TestListEventsValidatesRange(t *testing.T) {
	ctx := context.Background()
	svc := newServiceWith(newFakeStore(), fixedClock{localTime("2026-03-02", "09:00")})

	_, err := svc.ListEvents(ctx, "2026-03-05", "2026-03-01")
	require.Error(t, err)
	assert.Equal(t, CodeInvalidArgument, err.(*APIError).Code)
}

func TestImportEventsValidatesAndCounts(t *testing.T) {
	ctx := context.Background()
	store := newFakeStore()
	svc := newServiceWith(store, fixedClock{localTime("2026-03-02", "09:00")})

	_, err := svc.ImportEvents(ctx, []EventInput{{Date: "bogus", Time: "09:00"}})
	require.Error(t, err)
	assert.Equal(t, CodeInvalidArgument, err.(*APIError).Code)

	count, err := svc.ImportEvents(ctx, []EventInput{
		{Date: "2026-03-01", Time: "09:00"},
		{Date: "2026-03-01", Time: "17:00"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	assert.Len(t, store.events, 2)
}
