package tracking

// DB行に対応（スキャン用）
type eventRow struct {
	EventID       int64
	Date          string // DATE → "YYYY-MM-DD"
	Time          string // TIME → "HH:MM"
	Note          *string
	IsManualEntry bool
}

// Service ↔ Store で使うモデル（必要最小限）。
// 種別（出勤/退勤）は保持しない。日付内の並び順の偶奇から導出する。
type TimeEvent struct {
	EventID       int64
	Date          string
	Time          string
	Note          *string
	IsManualEntry bool
}

func (r eventRow) toModel() TimeEvent {
	return TimeEvent{
		EventID:       r.EventID,
		Date:          r.Date,
		Time:          r.Time,
		Note:          r.Note,
		IsManualEntry: r.IsManualEntry,
	}
}

func (e TimeEvent) toDTO() EventResponse {
	return EventResponse{
		EventID:       e.EventID,
		Date:          e.Date,
		Time:          e.Time,
		Note:          e.Note,
		IsManualEntry: e.IsManualEntry,
	}
}
