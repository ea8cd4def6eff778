package tracking

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// 1労働日あたりの基準労働時間（8時間）。
// 「その日の労働時間合計が正」の日だけを労働日として数える。
const DailyTargetMinutes = 480

const (
	PeriodDay   = "day"
	PeriodWeek  = "week"
	PeriodMonth = "month"
)

// 対象期間。Start/End は "YYYY-MM-DD" の両端含む。
type Period struct {
	Kind  string
	Start string
	End   string
}

// "YYYY-MM-DD" は辞書順=日付順なので文字列比較でよい。
func (p Period) Contains(date string) bool {
	return p.Start <= date && date <= p.End
}

// 全履歴（締切日まで）から日毎ロジックで算出した累計。
type OverallStats struct {
	TotalWorkedMinutes float64
	BalanceMinutes     float64
}

type PeriodMetrics struct {
	WorkedMinutes         float64
	BalanceMinutes        float64
	OverallBalanceMinutes float64
}

// ComputeMetrics は期間内のイベントから労働時間と過不足を算出する。
//
//   - workedMinutes: 同一日付内ペアの合計。進行中セッション（奇数個の日の末尾）は
//     その日が「今日」でありかつ期間内のときに限り now までの経過を加算する。
//     過去の日の対になっていない打刻は加算しない（測る「今」が存在しない）。
//   - balanceMinutes: workedMinutes - 労働日数×480。符号はそのまま。
//   - overallBalanceMinutes: 呼び出し側が渡す全履歴ベースライン（締切=期間末日）に、
//     上と同じ進行中セッション補正を加えたもの。
//
// 分は浮動小数のまま合算し、切り捨ては表示時に一度だけ行う。
// 純粋関数。イベント列は内部で安定ソートするので順序の乱れには耐える。
func ComputeMetrics(events []TimeEvent, period Period, now time.Time, baseline OverallStats) (PeriodMetrics, []string) {
	var warnings []string

	sorted := sortEvents(events)
	byDate, dates := groupByDate(sorted)
	today := FormatDate(now)

	var workedMinutes float64
	workedDays := 0

	for _, d := range dates {
		dayEvents := byDate[d]

		dayMinutes, warns := dayPairedMinutes(dayEvents)
		warnings = append(warnings, warns...)

		// 進行中セッション：奇数個の日の末尾。今日かつ期間内のときだけ加算。
		if len(dayEvents)%2 != 0 && d == today && period.Contains(d) {
			diff, err := minutesSince(dayEvents[len(dayEvents)-1], now)
			if err != nil {
				warnings = append(warnings, err.Error())
			} else {
				dayMinutes += diff
			}
		}

		if dayMinutes > 0 {
			workedMinutes += dayMinutes
			workedDays++
		}
	}

	balanceMinutes := workedMinutes - float64(workedDays)*DailyTargetMinutes

	// 全体収支：ベースラインはペア済みのみで計算されているため、
	// 進行中セッションの経過分をここで一度だけ上乗せする。
	overall := baseline.BalanceMinutes
	if period.Contains(today) {
		todayEvents := byDate[today]
		if len(todayEvents)%2 != 0 {
			diff, err := minutesSince(todayEvents[len(todayEvents)-1], now)
			if err != nil {
				warnings = append(warnings, err.Error())
			} else {
				overall += diff
			}
		}
	}

	return PeriodMetrics{
		WorkedMinutes:         workedMinutes,
		BalanceMinutes:        balanceMinutes,
		OverallBalanceMinutes: overall,
	}, warnings
}

// OverallBalance は全履歴（呼び出し側が締切日で絞る）に日毎ロジックを適用した
// 累計を返す。進行中セッションは含めない。解釈できない時刻は 0 扱い。
func OverallBalance(events []TimeEvent) OverallStats {
	sorted := sortEvents(events)
	byDate, dates := groupByDate(sorted)

	var total float64
	workedDays := 0
	for _, d := range dates {
		dayMinutes, _ := dayPairedMinutes(byDate[d])
		if dayMinutes > 0 {
			total += dayMinutes
			workedDays++
		}
	}

	return OverallStats{
		TotalWorkedMinutes: total,
		BalanceMinutes:     total - float64(workedDays)*DailyTargetMinutes,
	}
}

// 日付ごとにまとめる。dates は出現順（=日付昇順）。
func groupByDate(sorted []TimeEvent) (map[string][]TimeEvent, []string) {
	byDate := make(map[string][]TimeEvent)
	var dates []string
	for _, ev := range sorted {
		if _, ok := byDate[ev.Date]; !ok {
			dates = append(dates, ev.Date)
		}
		byDate[ev.Date] = append(byDate[ev.Date], ev)
	}
	return byDate, dates
}

// 同一日付内で (0,1), (2,3), ... とペアにして経過分を合算する。
// 対の相手がいない末尾はここでは数えない。
func dayPairedMinutes(dayEvents []TimeEvent) (float64, []string) {
	var minutes float64
	var warnings []string
	for i := 0; i+1 < len(dayEvents); i += 2 {
		diff, err := minutesBetween(dayEvents[i], dayEvents[i+1])
		if err != nil {
			warnings = append(warnings, err.Error())
			continue
		}
		minutes += diff
	}
	return minutes, warnings
}

func minutesSince(ev TimeEvent, now time.Time) (float64, error) {
	start, err := parseStamp(ev.Date, ev.Time)
	if err != nil {
		return 0, err
	}
	return now.Sub(start).Minutes(), nil
}

// FormatMinutes は分を "HH:MM" に整形する。時は 2 桁詰めだが上限はない
// （100時間超は "100:00"）。showSign のとき負は "-"、0以上は "+" を付ける。
// showSign なしで負値を渡すと絶対値の文字列になる点は既存アプリの挙動を踏襲
// している（呼び出し側が符号表示を要求しない限り符号は落ちる）。
func FormatMinutes(totalMinutes float64, showSign bool) string {
	neg := totalMinutes < 0
	abs := math.Abs(totalMinutes)
	hours := int(math.Floor(abs / 60))
	minutes := int(math.Floor(math.Mod(abs, 60)))
	s := fmt.Sprintf("%02d:%02d", hours, minutes)
	if !showSign {
		return s
	}
	if neg {
		return "-" + s
	}
	return "+" + s
}

// ParseHHMM は FormatMinutes の逆変換（分精度）。先頭の符号を受け付ける。
func ParseHHMM(s string) (float64, error) {
	sign := 1.0
	switch {
	case strings.HasPrefix(s, "-"):
		sign = -1.0
		s = s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	var hours, minutes int
	if _, err := fmt.Sscanf(s, "%d:%d", &hours, &minutes); err != nil {
		return 0, fmt.Errorf("HH:MM 形式ではない: %q", s)
	}
	if minutes < 0 || minutes > 59 {
		return 0, fmt.Errorf("分が範囲外: %q", s)
	}
	return sign * float64(hours*60+minutes), nil
}

// FormatDate は "YYYY-MM-DD"、FormatClock は "HH:MM"（いずれもローカル壁時計）。
func FormatDate(t time.Time) string  { return t.Format(DateLayout) }
func FormatClock(t time.Time) string { return t.Format(TimeLayout) }

// WeekRange は date を含む月曜始まりの週の両端を返す。
func WeekRange(date string) (string, string, error) {
	t, err := time.ParseInLocation(DateLayout, date, time.Local)
	if err != nil {
		return "", "", fmt.Errorf("日付の解析に失敗: %q", date)
	}
	// Go の Weekday は日曜=0。月曜始まりに合わせて日曜は 6 日戻す。
	wd := int(t.Weekday())
	diffToMonday := wd - 1
	if wd == 0 {
		diffToMonday = 6
	}
	monday := t.AddDate(0, 0, -diffToMonday)
	sunday := monday.AddDate(0, 0, 6)
	return FormatDate(monday), FormatDate(sunday), nil
}

// MonthRange は "YYYY-MM" の月初と月末を返す。
func MonthRange(month string) (string, string, error) {
	t, err := time.ParseInLocation(MonthLayout, month, time.Local)
	if err != nil {
		return "", "", fmt.Errorf("月の解析に失敗: %q", month)
	}
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.Local)
	last := first.AddDate(0, 1, -1)
	return FormatDate(first), FormatDate(last), nil
}
