package trigger

import "time"

// DB行に対応（スキャン用）
type triggerRow struct {
	TriggerULID    string
	Source         string
	Action         string
	Skipped        bool
	EventID        *int64
	IdempotencyKey *string
	CreatedAt      time.Time
}

// プラットフォーム側トリガー1配信分の記録。
// 打刻を省略した配信（既に出勤中の enter など）も残す。
type TriggerLog struct {
	TriggerULID    string
	Source         string
	Action         string
	Skipped        bool
	EventID        *int64
	IdempotencyKey *string
	CreatedAt      time.Time
}

type LogResponse struct {
	TriggerULID    string    `json:"trigger_ulid"`
	Source         string    `json:"source"`
	Action         string    `json:"action"`
	Skipped        bool      `json:"skipped"`
	EventID        *int64    `json:"event_id,omitempty"`
	IdempotencyKey *string   `json:"idempotency_key,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

func (r triggerRow) toModel() TriggerLog {
	return TriggerLog{
		TriggerULID:    r.TriggerULID,
		Source:         r.Source,
		Action:         r.Action,
		Skipped:        r.Skipped,
		EventID:        r.EventID,
		IdempotencyKey: r.IdempotencyKey,
		CreatedAt:      r.CreatedAt,
	}
}

func (l TriggerLog) toDTO() LogResponse {
	return LogResponse{
		TriggerULID:    l.TriggerULID,
		Source:         l.Source,
		Action:         l.Action,
		Skipped:        l.Skipped,
		EventID:        l.EventID,
		IdempotencyKey: l.IdempotencyKey,
		CreatedAt:      l.CreatedAt,
	}
}
