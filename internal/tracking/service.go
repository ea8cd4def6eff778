package tracking

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"timetrack-backend/internal/platform/db"
)

// ===== Error model =====
type Code string

const (
	CodeInvalidArgument Code = "INVALID_ARGUMENT"
	CodeNotFound        Code = "NOT_FOUND"
	CodeConflict        Code = "CONFLICT"
	CodeInternal        Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string      { return fmt.Sprintf("%s: %s", e.Code, e.Message) }
func ErrInvalid(msg string) *APIError  { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrConflict(msg string) *APIError { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError { return &APIError{Code: CodeInternal, Message: msg} }

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return 400
		case CodeNotFound:
			return 404
		case CodeConflict:
			return 409
		default:
			return 500
		}
	}
	return 500
}

// ===== インターフェース群 =====

// Event Store。実装は MySQL（store.go）。
type EventStore interface {
	EventsForDay(ctx context.Context, date string) ([]TimeEvent, error)
	EventsForMonth(ctx context.Context, month string) ([]TimeEvent, error)
	EventsForRange(ctx context.Context, from, to string) ([]TimeEvent, error)
	AllEventsDesc(ctx context.Context) ([]TimeEvent, error)
	OverallStats(ctx context.Context, cutoff *string) (OverallStats, error)
	Insert(ctx context.Context, in EventInput) (int64, error)
	Update(ctx context.Context, id int64, in EventInput) error
	Delete(ctx context.Context, id int64) error
	BulkInsert(ctx context.Context, inputs []EventInput) error
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// ===== Service本体 =====

type Service struct {
	store      EventStore
	clock      Clock
	bulkImport func(ctx context.Context, inputs []EventInput) error

	// 全体収支ベースラインのメモ化（締切日キー）。
	// イベントが変化したら全て破棄する。gin は並行にハンドラを呼ぶため要ロック。
	mu           sync.Mutex
	baselineMemo map[string]OverallStats
}

func NewService(conn *sql.DB) *Service {
	store := NewStore(conn)
	s := &Service{
		store:        store,
		clock:        realClock{},
		baselineMemo: make(map[string]OverallStats),
	}
	// インポートは1トランザクションで反映する
	s.bulkImport = func(ctx context.Context, inputs []EventInput) error {
		return db.RunInTx(ctx, conn, nil, func(ctx context.Context, tx db.DBTX) error {
			return NewStore(tx).BulkInsert(ctx, inputs)
		})
	}
	return s
}

// テスト用（フェイクストア＋固定時計）
func newServiceWith(store EventStore, clock Clock) *Service {
	s := &Service{
		store:        store,
		clock:        clock,
		baselineMemo: make(map[string]OverallStats),
	}
	s.bulkImport = func(ctx context.Context, inputs []EventInput) error {
		return store.BulkInsert(ctx, inputs)
	}
	return s
}

// ===== ビュー =====

// GET /views/day
func (s *Service) DayView(ctx context.Context, date string) (*ViewResponse, error) {
	date = s.normalizeDate(date)
	if err := validateDate(date); err != nil {
		return nil, err
	}
	events, err := s.store.EventsForDay(ctx, date)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, Period{Kind: PeriodDay, Start: date, End: date}, events)
}

// GET /views/week （date を含む月曜始まりの週）
func (s *Service) WeekView(ctx context.Context, date string) (*ViewResponse, error) {
	date = s.normalizeDate(date)
	if err := validateDate(date); err != nil {
		return nil, err
	}
	start, end, err := WeekRange(date)
	if err != nil {
		return nil, ErrInvalid(err.Error())
	}
	events, err := s.store.EventsForRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, Period{Kind: PeriodWeek, Start: start, End: end}, events)
}

// GET /views/month
func (s *Service) MonthView(ctx context.Context, month string) (*ViewResponse, error) {
	if month == "" {
		month = s.clock.Now().Format(MonthLayout)
	}
	if err := validateMonth(month); err != nil {
		return nil, err
	}
	start, end, err := MonthRange(month)
	if err != nil {
		return nil, ErrInvalid(err.Error())
	}
	events, err := s.store.EventsForMonth(ctx, month)
	if err != nil {
		return nil, err
	}
	return s.buildView(ctx, Period{Kind: PeriodMonth, Start: start, End: end}, events)
}

// 日/週/月で共通のビュー組み立て。ペアリングと集計はここからのみ呼ぶ
// （画面ごとに偶奇判定を再実装しない）。
func (s *Service) buildView(ctx context.Context, period Period, events []TimeEvent) (*ViewResponse, error) {
	now := s.clock.Now()

	processed, warnings := PairEvents(events)

	// ベースラインが取れないときは 0 で誤魔化さず失敗させる
	// （無言の 0 は過去の収支を偽って見せることになる）。
	baseline, err := s.overallBaseline(ctx, period.End)
	if err != nil {
		return nil, ErrInternal("stats unavailable")
	}

	metrics, mwarns := ComputeMetrics(events, period, now, baseline)
	warnings = append(warnings, mwarns...)

	eventDTOs := make([]ProcessedEventResponse, 0, len(processed))
	for _, p := range processed {
		eventDTOs = append(eventDTOs, p.toDTO())
	}

	today := FormatDate(now)
	checkedIn := false
	if period.Contains(today) {
		n := 0
		for _, ev := range events {
			if ev.Date == today {
				n++
			}
		}
		checkedIn = n%2 != 0
	}

	return &ViewResponse{
		Kind:   period.Kind,
		Start:  period.Start,
		End:    period.End,
		Events: eventDTOs,
		Metrics: MetricsResponse{
			Worked:         FormatMinutes(metrics.WorkedMinutes, false),
			Balance:        FormatMinutes(metrics.BalanceMinutes, true),
			Overall:        FormatMinutes(metrics.OverallBalanceMinutes, true),
			WorkedMinutes:  metrics.WorkedMinutes,
			BalanceMinutes: metrics.BalanceMinutes,
			OverallMinutes: metrics.OverallBalanceMinutes,
		},
		CheckedIn: checkedIn,
		Warnings:  warnings,
	}, nil
}

// ===== 打刻 =====

// POST /clock : 現在時刻で出勤/退勤をトグルする。
// 今日の件数を読んでから挿入する（read-check-then-write）。
func (s *Service) Clock(ctx context.Context, req ClockRequest) (*ClockResponse, error) {
	now := s.clock.Now()
	date := FormatDate(now)

	events, err := s.store.EventsForDay(ctx, date)
	if err != nil {
		return nil, err
	}
	action := ActionCheckIn
	if len(events)%2 != 0 {
		action = ActionCheckOut
	}

	in := EventInput{Date: date, Time: FormatClock(now), Note: req.Note, IsManualEntry: false}
	id, err := s.store.Insert(ctx, in)
	if err != nil {
		return nil, err
	}
	s.invalidateBaseline()

	return &ClockResponse{
		Action: action,
		Event: EventResponse{
			EventID:       id,
			Date:          in.Date,
			Time:          in.Time,
			Note:          in.Note,
			IsManualEntry: false,
		},
	}, nil
}

// GET /status
func (s *Service) Status(ctx context.Context) (*StatusResponse, error) {
	date := FormatDate(s.clock.Now())
	events, err := s.store.EventsForDay(ctx, date)
	if err != nil {
		return nil, err
	}
	res := &StatusResponse{Date: date, CheckedIn: len(events)%2 != 0}
	if res.CheckedIn {
		since := events[len(events)-1].Time
		res.Since = &since
	}
	return res, nil
}

// CheckedIn は自動打刻（ジオフェンス/NFC）の read-check 用。
func (s *Service) CheckedIn(ctx context.Context, date string) (bool, error) {
	events, err := s.store.EventsForDay(ctx, date)
	if err != nil {
		return false, err
	}
	return len(events)%2 != 0, nil
}

// RecordAutoEvent は自動トリガー由来の打刻を挿入する（isManualEntry=false）。
func (s *Service) RecordAutoEvent(ctx context.Context, date, clock, note string) (int64, error) {
	id, err := s.store.Insert(ctx, EventInput{Date: date, Time: clock, Note: &note})
	if err != nil {
		return 0, err
	}
	s.invalidateBaseline()
	return id, nil
}

// ===== CRUD =====

// GET /events
func (s *Service) ListEvents(ctx context.Context, from, to string) ([]EventResponse, error) {
	if err := validateDate(from); err != nil {
		return nil, ErrInvalid("from must be YYYY-MM-DD")
	}
	if err := validateDate(to); err != nil {
		return nil, ErrInvalid("to must be YYYY-MM-DD")
	}
	if to < from {
		return nil, ErrInvalid("to must be >= from")
	}
	events, err := s.store.EventsForRange(ctx, from, to)
	if err != nil {
		return nil, err
	}
	out := make([]EventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.toDTO())
	}
	return out, nil
}

// POST /events （後から手で入れる打刻。省略時 isManualEntry=true）
func (s *Service) CreateEvent(ctx context.Context, req CreateEventRequest) (*EventResponse, error) {
	in, err := eventInputOf(req.Date, req.Time, req.Note, req.IsManualEntry)
	if err != nil {
		return nil, err
	}
	id, err := s.store.Insert(ctx, in)
	if err != nil {
		return nil, err
	}
	s.invalidateBaseline()

	res := in.toDTO(id)
	return &res, nil
}

// PUT /events/:id
func (s *Service) UpdateEvent(ctx context.Context, id int64, req UpdateEventRequest) (*EventResponse, error) {
	if id <= 0 {
		return nil, ErrInvalid("event_id must be positive")
	}
	in, err := eventInputOf(req.Date, req.Time, req.Note, req.IsManualEntry)
	if err != nil {
		return nil, err
	}
	if err := s.store.Update(ctx, id, in); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound("event not found")
		}
		return nil, err
	}
	s.invalidateBaseline()

	res := in.toDTO(id)
	return &res, nil
}

// DELETE /events/:id
func (s *Service) DeleteEvent(ctx context.Context, id int64) error {
	if id <= 0 {
		return ErrInvalid("event_id must be positive")
	}
	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound("event not found")
		}
		return err
	}
	s.invalidateBaseline()
	return nil
}

// ===== CSV 連携用ポート =====

func (s *Service) ExportEvents(ctx context.Context) ([]TimeEvent, error) {
	return s.store.AllEventsDesc(ctx)
}

// ImportEvents は行を検証して1トランザクションで追記する。
// 日付は DATE 列の制約上厳密に検証する。時刻は既存アプリのエクスポートに
// 壊れた値が混ざり得るため空でなければ通す（集計側が警告付きで 0 扱いする）。
func (s *Service) ImportEvents(ctx context.Context, inputs []EventInput) (int, error) {
	for i, in := range inputs {
		if err := validateDate(in.Date); err != nil {
			return 0, ErrInvalid(fmt.Sprintf("row %d: date must be YYYY-MM-DD", i+1))
		}
		if strings.TrimSpace(in.Time) == "" {
			return 0, ErrInvalid(fmt.Sprintf("row %d: time is required", i+1))
		}
	}
	if len(inputs) == 0 {
		return 0, ErrInvalid("no valid events to import")
	}
	if err := s.bulkImport(ctx, inputs); err != nil {
		return 0, err
	}
	s.invalidateBaseline()
	return len(inputs), nil
}

// ===== ベースラインのメモ化 =====

func (s *Service) overallBaseline(ctx context.Context, cutoff string) (OverallStats, error) {
	s.mu.Lock()
	if stats, ok := s.baselineMemo[cutoff]; ok {
		s.mu.Unlock()
		return stats, nil
	}
	s.mu.Unlock()

	stats, err := s.store.OverallStats(ctx, &cutoff)
	if err != nil {
		return OverallStats{}, err
	}

	s.mu.Lock()
	s.baselineMemo[cutoff] = stats
	s.mu.Unlock()
	return stats, nil
}

func (s *Service) invalidateBaseline() {
	s.mu.Lock()
	s.baselineMemo = make(map[string]OverallStats)
	s.mu.Unlock()
}

// ===== helpers =====

func (s *Service) normalizeDate(v string) string {
	v = strings.TrimSpace(strings.ToLower(v))
	if v == "" || v == "today" {
		return FormatDate(s.clock.Now())
	}
	return v
}

func validateDate(v string) error {
	t, err := time.ParseInLocation(DateLayout, v, time.Local)
	if err != nil || t.Format(DateLayout) != v {
		return ErrInvalid("date must be YYYY-MM-DD")
	}
	return nil
}

func validateClock(v string) error {
	t, err := time.ParseInLocation(TimeLayout, v, time.Local)
	if err != nil || t.Format(TimeLayout) != v {
		return ErrInvalid("time must be HH:MM")
	}
	return nil
}

func validateMonth(v string) error {
	t, err := time.ParseInLocation(MonthLayout, v, time.Local)
	if err != nil || t.Format(MonthLayout) != v {
		return ErrInvalid("month must be YYYY-MM")
	}
	return nil
}

func eventInputOf(date, clock string, note *string, manual *bool) (EventInput, error) {
	if err := validateDate(date); err != nil {
		return EventInput{}, err
	}
	if err := validateClock(clock); err != nil {
		return EventInput{}, err
	}
	isManual := true
	if manual != nil {
		isManual = *manual
	}
	return EventInput{Date: date, Time: clock, Note: note, IsManualEntry: isManual}, nil
}

func (in EventInput) toDTO(id int64) EventResponse {
	return EventResponse{
		EventID:       id,
		Date:          in.Date,
		Time:          in.Time,
		Note:          in.Note,
		IsManualEntry: in.IsManualEntry,
	}
}
