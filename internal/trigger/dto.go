package trigger

const (
	SourceGeofence = "geofence"
	SourceNFC      = "nfc"

	EventEnter = "enter"
	EventExit  = "exit"

	ActionCheckIn  = "check_in"
	ActionCheckOut = "check_out"

	// 自動打刻のメモ（アプリの表示と揃える）
	NoteGeofenceIn  = "Auto check-in geofence"
	NoteGeofenceOut = "Auto check-out geofence"
	NoteNFCIn       = "Auto check-in NFC"
	NoteNFCOut      = "Auto check-out NFC"

	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

type GeofenceRequest struct {
	EventType string `json:"event_type" binding:"required"` // "enter" | "exit"
}

type NFCRequest struct {
	TagID *string `json:"tag_id,omitempty"`
}

type TriggerResponse struct {
	TriggerULID string `json:"trigger_ulid"`
	Source      string `json:"source"`
	Action      string `json:"action"` // 実行（または省略）された打刻種別
	Skipped     bool   `json:"skipped"`
	EventID     *int64 `json:"event_id,omitempty"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

type ListQuery struct {
	Limit  int
	Offset int
}
