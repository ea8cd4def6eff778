package transfer

import (
	"encoding/csv"
	"fmt"
	"io"
	"strings"

	"timetrack-backend/internal/tracking"
)

// 既存アプリのエクスポートと同じ列構成
var csvHeader = []string{"Date", "Time", "Note", "IsManualEntry"}

func EncodeEvents(w io.Writer, events []tracking.TimeEvent) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, ev := range events {
		note := ""
		if ev.Note != nil {
			note = *ev.Note
		}
		manual := "false"
		if ev.IsManualEntry {
			manual = "true"
		}
		if err := cw.Write([]string{ev.Date, ev.Time, note, manual}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// DecodeEvents はヘッダ行から列位置を引き、Date/Time が揃っている行だけを
// 取り込む（既存アプリと同じく欠損行は黙って読み飛ばす）。
// 列順の入れ替えには耐えるが、Date/Time 列が無いファイルはエラー。
func DecodeEvents(r io.Reader) ([]tracking.EventInput, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("CSVヘッダの読み込み失敗: %w", err)
	}
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	dateIdx, okDate := col["Date"]
	timeIdx, okTime := col["Time"]
	if !okDate || !okTime {
		return nil, fmt.Errorf("CSVに Date/Time 列がない")
	}
	noteIdx, hasNote := col["Note"]
	manualIdx, hasManual := col["IsManualEntry"]

	var out []tracking.EventInput
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("CSV行の読み込み失敗: %w", err)
		}

		date := field(record, dateIdx)
		clock := field(record, timeIdx)
		if date == "" || clock == "" {
			continue
		}

		in := tracking.EventInput{Date: date, Time: clock}
		if hasNote {
			if note := field(record, noteIdx); note != "" {
				in.Note = &note
			}
		}
		if hasManual {
			in.IsManualEntry = field(record, manualIdx) == "true"
		}
		out = append(out, in)
	}
	return out, nil
}

func field(record []string, i int) string {
	if i < 0 || i >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[i])
}
