package transfer

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"timetrack-backend/internal/tracking"
)

const (
	EncodingUTF8 = "utf8"
	// Excel（日本語環境）でそのまま開けるように Shift_JIS も選べる
	EncodingSJIS = "sjis"
)

// 打刻側（tracking.Service が実装）
type EventPort interface {
	ExportEvents(ctx context.Context) ([]tracking.TimeEvent, error)
	ImportEvents(ctx context.Context, inputs []tracking.EventInput) (int, error)
}

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Service struct {
	events EventPort
	clock  Clock
}

func NewService(events EventPort) *Service {
	return &Service{events: events, clock: realClock{}}
}

// テスト用（固定時計）
func newServiceWith(events EventPort, clock Clock) *Service {
	return &Service{events: events, clock: clock}
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// GET /transfer/export
func (s *Service) Export(ctx context.Context, encoding string) (*ExportResult, error) {
	if encoding == "" {
		encoding = EncodingUTF8
	}
	if encoding != EncodingUTF8 && encoding != EncodingSJIS {
		return nil, tracking.ErrInvalid("encoding must be 'utf8' or 'sjis'")
	}

	events, err := s.events.ExportEvents(ctx)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := EncodeEvents(&buf, events); err != nil {
		return nil, tracking.ErrInternal("failed to encode CSV")
	}

	res := &ExportResult{
		Filename:    fmt.Sprintf("time_tracking_export_%s.csv", s.clock.Now().Format(tracking.DateLayout)),
		ContentType: "text/csv; charset=utf-8",
		Data:        buf.Bytes(),
	}
	if encoding == EncodingSJIS {
		data, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), buf.Bytes())
		if err != nil {
			return nil, tracking.ErrInternal("failed to encode CSV as Shift_JIS")
		}
		res.ContentType = "text/csv; charset=shift_jis"
		res.Data = data
	}
	return res, nil
}

// POST /transfer/import
// 既存イベントは消さず追記する（既存アプリと同じ方針）。
func (s *Service) Import(ctx context.Context, r io.Reader) (int, error) {
	inputs, err := DecodeEvents(r)
	if err != nil {
		return 0, tracking.ErrInvalid(err.Error())
	}
	if len(inputs) == 0 {
		return 0, tracking.ErrInvalid("no valid events found in CSV")
	}
	return s.events.ImportEvents(ctx, inputs)
}
