package tracking

import (
	"fmt"
	"sort"
	"time"
)

// 表示用に種別と区切り情報を付与したイベント。
// 種別は「その日付内で何番目か」の偶奇だけで決まる。偶数=出勤、奇数=退勤。
// 日付が変わったら必ず数え直す（日をまたいでペアを作らない）。
type ProcessedEvent struct {
	TimeEvent
	Type           string
	ShowDateHeader bool
	Separator      *Separator // 同一日付内の次イベントへの間隔。nil は単純区切り
}

type Separator struct {
	DurationMinutes float64
	IsWork          bool // 出勤直後の間隔=労働、退勤直後の間隔=休憩
}

// PairEvents は date 昇順・time 昇順に整列済みのイベント列を受け取り、
// 各イベントに種別と区切りを付けて同じ順序・同じ長さで返す。
// 時刻が "HH:MM" として解釈できない場合は間隔を 0 とし、警告として返す
// （ユーザが自由に編集できる値なのでエラーにはしない）。
// 純粋関数であり、同じ入力には常に同じ出力を返す。
func PairEvents(events []TimeEvent) ([]ProcessedEvent, []string) {
	processed := make([]ProcessedEvent, 0, len(events))
	var warnings []string

	currentDate := ""
	indexInDay := 0

	for i := range events {
		ev := events[i]
		if ev.Date != currentDate {
			currentDate = ev.Date
			indexInDay = 0
		} else {
			indexInDay++
		}

		typ := TypeStart
		if indexInDay%2 == 1 {
			typ = TypeEnd
		}

		p := ProcessedEvent{
			TimeEvent:      ev,
			Type:           typ,
			ShowDateHeader: indexInDay == 0,
		}

		// 同じ日付に次のイベントがある場合のみ間隔を計算する。
		// 日付グループ最後のイベントには間隔を付けない（その日の最終退勤か、
		// 奇数個なら進行中セッション）。
		if i+1 < len(events) && events[i+1].Date == ev.Date {
			diff, err := minutesBetween(ev, events[i+1])
			if err != nil {
				warnings = append(warnings, err.Error())
				diff = 0
			}
			p.Separator = &Separator{
				DurationMinutes: diff,
				IsWork:          indexInDay%2 == 0,
			}
		}

		processed = append(processed, p)
	}
	return processed, warnings
}

func (p ProcessedEvent) toDTO() ProcessedEventResponse {
	res := ProcessedEventResponse{
		EventResponse:  p.TimeEvent.toDTO(),
		Type:           p.Type,
		ShowDateHeader: p.ShowDateHeader,
	}
	if p.Separator != nil {
		res.Separator = &SeparatorResponse{
			Label:           FormatMinutes(p.Separator.DurationMinutes, false),
			DurationMinutes: p.Separator.DurationMinutes,
			IsWork:          p.Separator.IsWork,
		}
	}
	return res
}

// sortEvents は date 昇順 → time 昇順に安定ソートする。
// 同時刻の打刻が挿入順（id順）を保つよう必ず SliceStable を使う。
func sortEvents(events []TimeEvent) []TimeEvent {
	sorted := make([]TimeEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].Time < sorted[j].Time
	})
	return sorted
}

// parseStamp は date+time をタイムゾーン変換なしの壁時計として解釈する。
func parseStamp(date, clock string) (time.Time, error) {
	t, err := time.ParseInLocation(stampLayout, date+"T"+clock, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("時刻の解析に失敗: %s %q", date, clock)
	}
	return t, nil
}

func minutesBetween(a, b TimeEvent) (float64, error) {
	start, err := parseStamp(a.Date, a.Time)
	if err != nil {
		return 0, err
	}
	end, err := parseStamp(b.Date, b.Time)
	if err != nil {
		return 0, err
	}
	// ミリ秒→分。端数は合算後に切り捨てるため、ここでは丸めない。
	return end.Sub(start).Minutes(), nil
}
