package tracking

import (
	"context"
	"database/sql"

	"timetrack-backend/internal/platform/db"
)

// 新規挿入用（id は DB が採番する）
type EventInput struct {
	Date          string
	Time          string
	Note          *string
	IsManualEntry bool
}

type Store struct{ db db.DBTX }

func NewStore(dbtx db.DBTX) *Store { return &Store{db: dbtx} }

const selectColumns = `
	SELECT event_id, DATE_FORMAT(event_date, '%Y-%m-%d') AS event_date, event_time, note, is_manual_entry
	FROM events
`

// 取得系はすべて date 昇順 → time 昇順 → id 昇順。
// 同時刻の打刻でも挿入順が保たれることが偶奇判定の前提になる。

func (s *Store) EventsForDay(ctx context.Context, date string) ([]TimeEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
	WHERE event_date = ?
	ORDER BY event_time ASC, event_id ASC`, date)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (s *Store) EventsForMonth(ctx context.Context, month string) ([]TimeEvent, error) {
	// month: "YYYY-MM"
	rows, err := s.db.QueryContext(ctx, selectColumns+`
	WHERE DATE_FORMAT(event_date, '%Y-%m') = ?
	ORDER BY event_date ASC, event_time ASC, event_id ASC`, month)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

func (s *Store) EventsForRange(ctx context.Context, from, to string) ([]TimeEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
	WHERE event_date BETWEEN ? AND ?
	ORDER BY event_date ASC, event_time ASC, event_id ASC`, from, to)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// AllEventsDesc は CSV エクスポート用。新しい打刻から順に返す。
func (s *Store) AllEventsDesc(ctx context.Context) ([]TimeEvent, error) {
	rows, err := s.db.QueryContext(ctx, selectColumns+`
	ORDER BY event_date DESC, event_time DESC, event_id DESC`)
	if err != nil {
		return nil, err
	}
	return scanEvents(rows)
}

// OverallStats は締切日（含む）までの全履歴から累計を算出する。
// 期間切替のたびに呼ばず、Service 側で締切日キーのメモ化を行う。
func (s *Store) OverallStats(ctx context.Context, cutoff *string) (OverallStats, error) {
	q := selectColumns
	var args []any
	if cutoff != nil && *cutoff != "" {
		q += ` WHERE event_date <= ?`
		args = append(args, *cutoff)
	}
	q += ` ORDER BY event_date ASC, event_time ASC, event_id ASC`

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return OverallStats{}, err
	}
	events, err := scanEvents(rows)
	if err != nil {
		return OverallStats{}, err
	}
	return OverallBalance(events), nil
}

func (s *Store) Insert(ctx context.Context, in EventInput) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
	INSERT INTO events (event_date, event_time, note, is_manual_entry)
	VALUES (?, ?, ?, ?)`,
		in.Date, in.Time, noteOrNil(in.Note), in.IsManualEntry)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (s *Store) Update(ctx context.Context, id int64, in EventInput) error {
	// 値が同一でも RowsAffected=0 になるため、存在確認を先に行う
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM events WHERE event_id = ? LIMIT 1`, id).Scan(&one)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
	UPDATE events
	SET event_date = ?, event_time = ?, note = ?, is_manual_entry = ?
	WHERE event_id = ?`,
		in.Date, in.Time, noteOrNil(in.Note), in.IsManualEntry, id)
	return err
}

func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE event_id = ?`, id)
	if err != nil {
		return err
	}
	aff, _ := res.RowsAffected()
	if aff == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// BulkInsert は CSV インポート用。トランザクション内の DBTX で呼ぶこと。
func (s *Store) BulkInsert(ctx context.Context, inputs []EventInput) error {
	for _, in := range inputs {
		if _, err := s.Insert(ctx, in); err != nil {
			return err
		}
	}
	return nil
}

// ===== helpers =====

func scanEvents(rows *sql.Rows) ([]TimeEvent, error) {
	defer rows.Close()

	var out []TimeEvent
	for rows.Next() {
		var r eventRow
		if err := rows.Scan(&r.EventID, &r.Date, &r.Time, &r.Note, &r.IsManualEntry); err != nil {
			return nil, err
		}
		out = append(out, r.toModel())
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func noteOrNil(s *string) any {
	if s == nil {
		return nil
	}
	if *s == "" {
		return nil
	}
	return *s
}
