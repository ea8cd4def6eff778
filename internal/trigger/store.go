package trigger

import (
	"context"

	"timetrack-backend/internal/platform/db"
)

type Store struct{ db db.DBTX }

func NewStore(dbtx db.DBTX) *Store { return &Store{db: dbtx} }

// InsertLog はトリガー配信を記録する。idempotency_key は UNIQUE 制約付きで、
// 同一キーの再配信は重複キーエラーになる（Service 側で 1062 を判定）。
// 先にログを確保してから打刻を挿入する順序なので、重複配信が打刻を
// 二重に作ることはない。
func (s *Store) InsertLog(ctx context.Context, l TriggerLog) error {
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO trigger_logs (trigger_ulid, source, action, skipped, event_id, idempotency_key, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.TriggerULID, l.Source, l.Action, l.Skipped, l.EventID, l.IdempotencyKey, l.CreatedAt)
	return err
}

// SetLogEvent は打刻挿入後に event_id を書き戻す。
func (s *Store) SetLogEvent(ctx context.Context, triggerULID string, eventID int64) error {
	_, err := s.db.ExecContext(ctx, `
	UPDATE trigger_logs SET event_id = ? WHERE trigger_ulid = ?`,
		eventID, triggerULID)
	return err
}

// ListLogs は新しい配信から順に返す。
func (s *Store) ListLogs(ctx context.Context, q ListQuery) ([]TriggerLog, int64, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultPageLimit
	}
	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
	SELECT trigger_ulid, source, action, skipped, event_id, idempotency_key, created_at
	FROM trigger_logs
	ORDER BY created_at DESC, trigger_ulid DESC
	LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []TriggerLog
	for rows.Next() {
		var r triggerRow
		if err := rows.Scan(&r.TriggerULID, &r.Source, &r.Action, &r.Skipped, &r.EventID, &r.IdempotencyKey, &r.CreatedAt); err != nil {
			return nil, 0, err
		}
		out = append(out, r.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, 0, err
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM trigger_logs`).Scan(&total); err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
