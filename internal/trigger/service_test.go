package trigger

import (
	"context"
	"fmt"
	"testing"
	"time"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ===== テスト用フェイク =====

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type seqIDGen struct{ n int }

func (g *seqIDGen) New() (string, error) {
	g.n++
	return fmt.Sprintf("01TESTULID%016d", g.n), nil
}

type recordedEvent struct {
	date, clock, note string
}

type fakeRecorder struct {
	checkedIn bool
	nextID    int64
	events    []recordedEvent
}

func (f *fakeRecorder) CheckedIn(_ context.Context, _ string) (bool, error) {
	return f.checkedIn, nil
}

func (f *fakeRecorder) RecordAutoEvent(_ context.Context, date, clock, note string) (int64, error) {
	f.events = append(f.events, recordedEvent{date, clock, note})
	f.checkedIn = !f.checkedIn
	f.nextID++
	return f.nextID, nil
}

type fakeLogStore struct {
	logs     []TriggerLog
	seenKeys map[string]bool
}

func newFakeLogStore() *fakeLogStore {
	return &fakeLogStore{seenKeys: make(map[string]bool)}
}

func (f *fakeLogStore) InsertLog(_ context.Context, l TriggerLog) error {
	if l.IdempotencyKey != nil {
		if f.seenKeys[*l.IdempotencyKey] {
			return &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}
		}
		f.seenKeys[*l.IdempotencyKey] = true
	}
	f.logs = append(f.logs, l)
	return nil
}

func (f *fakeLogStore) SetLogEvent(_ context.Context, triggerULID string, eventID int64) error {
	for i := range f.logs {
		if f.logs[i].TriggerULID == triggerULID {
			f.logs[i].EventID = &eventID
			return nil
		}
	}
	return fmt.Errorf("log %s not found", triggerULID)
}

func (f *fakeLogStore) ListLogs(_ context.Context, q ListQuery) ([]TriggerLog, int64, error) {
	out := make([]TriggerLog, 0, len(f.logs))
	for i := len(f.logs) - 1; i >= 0; i-- {
		out = append(out, f.logs[i])
	}
	if q.Offset < len(out) {
		out = out[q.Offset:]
	} else {
		out = nil
	}
	if q.Limit > 0 && q.Limit < len(out) {
		out = out[:q.Limit]
	}
	return out, int64(len(f.logs)), nil
}

func newTestService(rec *fakeRecorder, store *fakeLogStore, now time.Time) *Service {
	return &Service{
		store:  store,
		events: rec,
		clock:  fixedClock{now},
		id:     &seqIDGen{},
	}
}

func at(date, clock string) time.Time {
	t, err := time.ParseInLocation("2006-01-02T15:04", date+"T"+clock, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

// ===== tests =====

func TestHandleGeofenceEnterChecksIn(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	store := newFakeLogStore()
	svc := newTestService(rec, store, at("2026-03-02", "08:58"))

	res, err := svc.HandleGeofence(ctx, GeofenceRequest{EventType: EventEnter}, "key-1")
	require.NoError(t, err)

	assert.Equal(t, SourceGeofence, res.Source)
	assert.Equal(t, ActionCheckIn, res.Action)
	assert.False(t, res.Skipped)
	assert.Equal(t, "2026-03-02", res.Date)
	assert.Equal(t, "08:58", res.Time)
	require.NotNil(t, res.EventID)

	require.Len(t, rec.events, 1)
	assert.Equal(t, NoteGeofenceIn, rec.events[0].note)

	// ログにもイベントIDが紐付く
	require.Len(t, store.logs, 1)
	require.NotNil(t, store.logs[0].EventID)
	assert.Equal(t, *res.EventID, *store.logs[0].EventID)
}

func TestHandleGeofenceEnterWhileCheckedInIsSkipped(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{checkedIn: true}
	store := newFakeLogStore()
	svc := newTestService(rec, store, at("2026-03-02", "09:10"))

	res, err := svc.HandleGeofence(ctx, GeofenceRequest{EventType: EventEnter}, "")
	require.NoError(t, err)

	// 既に出勤中の enter は打刻しない。ログは skipped で残す
	assert.True(t, res.Skipped)
	assert.Nil(t, res.EventID)
	assert.Empty(t, rec.events)
	require.Len(t, store.logs, 1)
	assert.True(t, store.logs[0].Skipped)
}

func TestHandleGeofenceExitWhileCheckedOutIsSkipped(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{checkedIn: false}
	store := newFakeLogStore()
	svc := newTestService(rec, store, at("2026-03-02", "18:00"))

	res, err := svc.HandleGeofence(ctx, GeofenceRequest{EventType: EventExit}, "")
	require.NoError(t, err)
	assert.Equal(t, ActionCheckOut, res.Action)
	assert.True(t, res.Skipped)
	assert.Empty(t, rec.events)
}

func TestHandleGeofenceRejectsUnknownEventType(t *testing.T) {
	ctx := context.Background()
	svc := newTestService(&fakeRecorder{}, newFakeLogStore(), at("2026-03-02", "09:00"))

	_, err := svc.HandleGeofence(ctx, GeofenceRequest{EventType: "dwell"}, "")
	require.Error(t, err)
	api, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, CodeInvalidArgument, api.Code)
}

func TestHandleNFCToggles(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	store := newFakeLogStore()
	svc := newTestService(rec, store, at("2026-03-02", "09:00"))

	res, err := svc.HandleNFC(ctx, NFCRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, SourceNFC, res.Source)
	assert.Equal(t, ActionCheckIn, res.Action)
	assert.False(t, res.Skipped)

	res, err = svc.HandleNFC(ctx, NFCRequest{}, "")
	require.NoError(t, err)
	assert.Equal(t, ActionCheckOut, res.Action)
	assert.False(t, res.Skipped)

	require.Len(t, rec.events, 2)
	assert.Equal(t, NoteNFCIn, rec.events[0].note)
	assert.Equal(t, NoteNFCOut, rec.events[1].note)
}

func TestDuplicateIdempotencyKeyIsConflict(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	store := newFakeLogStore()
	svc := newTestService(rec, store, at("2026-03-02", "09:00"))

	_, err := svc.HandleGeofence(ctx, GeofenceRequest{EventType: EventEnter}, "dup-key")
	require.NoError(t, err)

	// 再配信はログ確保の段階で弾かれ、打刻は1回だけ
	_, err = svc.HandleGeofence(ctx, GeofenceRequest{EventType: EventExit}, "dup-key")
	require.Error(t, err)
	api, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, CodeConflict, api.Code)

	assert.Len(t, rec.events, 1)
	assert.Len(t, store.logs, 1)
}

func TestEmptyIdempotencyKeyIsNotDeduplicated(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	store := newFakeLogStore()
	svc := newTestService(rec, store, at("2026-03-02", "09:00"))

	_, err := svc.HandleNFC(ctx, NFCRequest{}, "")
	require.NoError(t, err)
	_, err = svc.HandleNFC(ctx, NFCRequest{}, "")
	require.NoError(t, err)

	require.Len(t, store.logs, 2)
	assert.Nil(t, store.logs[0].IdempotencyKey)
}

func TestListReturnsNewestFirst(t *testing.T) {
	ctx := context.Background()
	rec := &fakeRecorder{}
	store := newFakeLogStore()
	svc := newTestService(rec, store, at("2026-03-02", "09:00"))

	_, err := svc.HandleNFC(ctx, NFCRequest{}, "a")
	require.NoError(t, err)
	_, err = svc.HandleNFC(ctx, NFCRequest{}, "b")
	require.NoError(t, err)

	logs, total, err := svc.List(ctx, ListQuery{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, logs, 2)
	assert.Equal(t, ActionCheckOut, logs[0].Action)
	assert.Equal(t, ActionCheckIn, logs[1].Action)
}
