package tracking

const (
	DateLayout  = "2006-01-02"
	TimeLayout  = "15:04"
	MonthLayout = "2006-01"
	// date+time を壁時計のまま解釈するための結合レイアウト（タイムゾーン変換なし）
	stampLayout = "2006-01-02T15:04"

	TypeStart = "start" // 出勤（日付内の偶数番目）
	TypeEnd   = "end"   // 退勤（日付内の奇数番目）

	ActionCheckIn  = "check_in"
	ActionCheckOut = "check_out"
)

type CreateEventRequest struct {
	Date string  `json:"date" binding:"required"` // "YYYY-MM-DD"
	Time string  `json:"time" binding:"required"` // "HH:MM"
	Note *string `json:"note,omitempty"`
	// 省略時は true（後から手で追加した打刻とみなす）
	IsManualEntry *bool `json:"is_manual_entry,omitempty"`
}

type UpdateEventRequest struct {
	Date string  `json:"date" binding:"required"`
	Time string  `json:"time" binding:"required"`
	Note *string `json:"note,omitempty"`
	// 省略時は true（編集された時点で手動扱い）
	IsManualEntry *bool `json:"is_manual_entry,omitempty"`
}

type ClockRequest struct {
	Note *string `json:"note,omitempty"`
}

type EventResponse struct {
	EventID       int64   `json:"event_id"`
	Date          string  `json:"date"`
	Time          string  `json:"time"`
	Note          *string `json:"note,omitempty"`
	IsManualEntry bool    `json:"is_manual_entry"`
}

// 次イベントまでの区切り。null のときは単純な区切り線（日境界など）を描く。
type SeparatorResponse struct {
	Label           string  `json:"label"` // "HH:MM"
	DurationMinutes float64 `json:"duration_minutes"`
	IsWork          bool    `json:"is_work"`
}

type ProcessedEventResponse struct {
	EventResponse
	Type           string             `json:"type"` // "start" | "end"
	ShowDateHeader bool               `json:"show_date_header"`
	Separator      *SeparatorResponse `json:"separator,omitempty"`
}

type MetricsResponse struct {
	Worked         string  `json:"worked"`          // "HH:MM"
	Balance        string  `json:"balance"`         // "±HH:MM"
	Overall        string  `json:"overall"`         // "±HH:MM"
	WorkedMinutes  float64 `json:"worked_minutes"`
	BalanceMinutes float64 `json:"balance_minutes"`
	OverallMinutes float64 `json:"overall_minutes"`
}

type ViewResponse struct {
	Kind      string                   `json:"kind"` // "day" | "week" | "month"
	Start     string                   `json:"start"`
	End       string                   `json:"end"`
	Events    []ProcessedEventResponse `json:"events"`
	Metrics   MetricsResponse          `json:"metrics"`
	CheckedIn bool                     `json:"checked_in"`
	Warnings  []string                 `json:"warnings,omitempty"`
}

type ClockResponse struct {
	Action string        `json:"action"` // "check_in" | "check_out"
	Event  EventResponse `json:"event"`
}

type StatusResponse struct {
	Date      string  `json:"date"`
	CheckedIn bool    `json:"checked_in"`
	Since     *string `json:"since,omitempty"` // 出勤中のときの開始時刻 "HH:MM"
}
