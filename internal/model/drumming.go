package model

// DrummingSession はドラム練習セッションの記録を表す。
// 作成後は更新・削除されない。
type DrummingSession struct {
	ID              int64
	SessionDate     DateTime
	DurationMinutes int
	TempoBPM        int
	Notes           *string
}

// DrummingSessionIn はPOST /drumming_data/ のリクエストスキーマ。
// 必須フィールドの欠落を検出するため数値はポインタで受ける。
type DrummingSessionIn struct {
	SessionDate     *DateTime `json:"session_date"`
	DurationMinutes *int      `json:"duration_minutes" validate:"required"`
	TempoBPM        *int      `json:"tempo_bpm" validate:"required"`
	Notes           *string   `json:"notes"`
}

// DrummingSessionOut はドラム練習セッションのレスポンススキーマ。
type DrummingSessionOut struct {
	ID              int64    `json:"id"`
	SessionDate     DateTime `json:"session_date"`
	DurationMinutes int      `json:"duration_minutes"`
	TempoBPM        int      `json:"tempo_bpm"`
	Notes           *string  `json:"notes"`
}

// ToDrummingSessionOut はDrummingSessionをレスポンススキーマに変換する。
func ToDrummingSessionOut(s *DrummingSession) DrummingSessionOut {
	return DrummingSessionOut{
		ID:              s.ID,
		SessionDate:     s.SessionDate,
		DurationMinutes: s.DurationMinutes,
		TempoBPM:        s.TempoBPM,
		Notes:           s.Notes,
	}
}
