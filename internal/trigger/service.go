package trigger

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"time"

	mysql "github.com/go-sql-driver/mysql"
	"github.com/oklog/ulid/v2"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== インターフェース群 =====

// 打刻側（tracking.Service が実装）。
// 「今日の偶奇を読んでから挿入する」手順はこの2つで表現する。
type EventRecorder interface {
	CheckedIn(ctx context.Context, date string) (bool, error)
	RecordAutoEvent(ctx context.Context, date, clock, note string) (int64, error)
}

type LogStore interface {
	InsertLog(ctx context.Context, l TriggerLog) error
	SetLogEvent(ctx context.Context, triggerULID string, eventID int64) error
	ListLogs(ctx context.Context, q ListQuery) ([]TriggerLog, int64, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// ===== Service本体 =====

type Service struct {
	store  LogStore
	events EventRecorder
	clock  Clock
	id     IDGen
}

func NewService(conn *sql.DB, events EventRecorder) *Service {
	return &Service{
		store:  NewStore(conn),
		events: events,
		clock:  realClock{},
		id:     ulidGen{},
	}
}

// POST /triggers/geofence
// enter で既に出勤中 / exit で既に退勤済みのときは打刻せず skipped で返す
// （プラットフォームのトリガーは排他でないため、二重配信は表示上の余計な行に
// 留め、クラッシュさせない）。
func (s *Service) HandleGeofence(ctx context.Context, req GeofenceRequest, idemKey string) (*TriggerResponse, error) {
	if req.EventType != EventEnter && req.EventType != EventExit {
		return nil, ErrInvalid("event_type must be 'enter' or 'exit'")
	}

	action := ActionCheckIn
	note := NoteGeofenceIn
	if req.EventType == EventExit {
		action = ActionCheckOut
		note = NoteGeofenceOut
	}
	return s.handle(ctx, SourceGeofence, action, note, idemKey)
}

// POST /triggers/nfc
// NFC タップは出勤/退勤のトグル。種別は今日の偶奇から決まる。
func (s *Service) HandleNFC(ctx context.Context, req NFCRequest, idemKey string) (*TriggerResponse, error) {
	now := s.clock.Now()
	checkedIn, err := s.events.CheckedIn(ctx, formatDate(now))
	if err != nil {
		return nil, err
	}
	action := ActionCheckIn
	note := NoteNFCIn
	if checkedIn {
		action = ActionCheckOut
		note = NoteNFCOut
	}
	return s.handle(ctx, SourceNFC, action, note, idemKey)
}

func (s *Service) handle(ctx context.Context, source, action, note, idemKey string) (*TriggerResponse, error) {
	now := s.clock.Now()
	date := formatDate(now)
	clock := formatClock(now)

	// read-check-then-write：今日の偶奇を見て、不要な打刻は省略する
	checkedIn, err := s.events.CheckedIn(ctx, date)
	if err != nil {
		return nil, err
	}
	skipped := (action == ActionCheckIn && checkedIn) ||
		(action == ActionCheckOut && !checkedIn)

	triggerULID, err := s.id.New()
	if err != nil {
		return nil, ErrInternal("failed to generate trigger id")
	}

	// 打刻より先にログを確保する。同じ Idempotency-Key の再配信はここで弾く。
	l := TriggerLog{
		TriggerULID:    triggerULID,
		Source:         source,
		Action:         action,
		Skipped:        skipped,
		IdempotencyKey: keyOrNil(idemKey),
		CreatedAt:      now,
	}
	if err := s.store.InsertLog(ctx, l); err != nil {
		if isDuplicateKey(err) {
			return nil, ErrConflict("duplicate trigger delivery")
		}
		return nil, err
	}

	res := &TriggerResponse{
		TriggerULID: triggerULID,
		Source:      source,
		Action:      action,
		Skipped:     skipped,
		Date:        date,
		Time:        clock,
	}
	if skipped {
		return res, nil
	}

	eventID, err := s.events.RecordAutoEvent(ctx, date, clock, note)
	if err != nil {
		return nil, err
	}
	if err := s.store.SetLogEvent(ctx, triggerULID, eventID); err != nil {
		return nil, err
	}
	res.EventID = &eventID
	return res, nil
}

// GET /triggers
func (s *Service) List(ctx context.Context, q ListQuery) ([]LogResponse, int64, error) {
	logs, total, err := s.store.ListLogs(ctx, q)
	if err != nil {
		return nil, 0, err
	}
	out := make([]LogResponse, 0, len(logs))
	for _, l := range logs {
		out = append(out, l.toDTO())
	}
	return out, total, nil
}

// ===== helpers =====

func formatDate(t time.Time) string  { return t.Format("2006-01-02") }
func formatClock(t time.Time) string { return t.Format("15:04") }

func keyOrNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// MySQL の重複キー（ER_DUP_ENTRY）
func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}
