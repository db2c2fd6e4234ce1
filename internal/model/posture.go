package model

// フィードバック文言。
const (
	FeedbackGood = "Good posture"
	FeedbackPoor = "Poor posture"
)

// GoodPostureThreshold は良い姿勢と判定するスコアの境界値。
const GoodPostureThreshold = 5.0

// PostureRecord は姿勢チェック結果の記録を表す。
// Feedbackは常にPostureScoreから導出される。
type PostureRecord struct {
	ID           int64
	PostureScore float64
	Feedback     string
	Timestamp    DateTime
}

// PostureRecordIn は姿勢スコアAPIのレスポンスを表すスキーマ。
// Feedbackは保存前にFeedbackForScoreで上書きされる。
type PostureRecordIn struct {
	PostureScore float64  `json:"posture_score"`
	Feedback     string   `json:"feedback"`
	Timestamp    DateTime `json:"timestamp"`
}

// PostureRecordOut は姿勢チェック結果のレスポンススキーマ。
type PostureRecordOut struct {
	ID           int64    `json:"id"`
	PostureScore float64  `json:"posture_score"`
	Feedback     string   `json:"feedback"`
	Timestamp    DateTime `json:"timestamp"`
}

// PostureSummary は保存済み姿勢チェック結果の集計値。
type PostureSummary struct {
	Count        int     `json:"count"`
	AverageScore float64 `json:"average_score"`
	GoodCount    int     `json:"good_count"`
	PoorCount    int     `json:"poor_count"`
}

// FeedbackForScore は姿勢チェックで保存するフィードバックを返す。
// スコアが閾値以上なら良い姿勢と判定する。
func FeedbackForScore(score float64) string {
	if score >= GoodPostureThreshold {
		return FeedbackGood
	}
	return FeedbackPoor
}

// DummyFeedbackForScore はダミーAPI用のフィードバックを返す。
// 閾値ちょうどは悪い姿勢と判定する点がFeedbackForScoreと異なる。
func DummyFeedbackForScore(score float64) string {
	if score > GoodPostureThreshold {
		return FeedbackGood
	}
	return FeedbackPoor
}

// ToPostureRecordOut はPostureRecordをレスポンススキーマに変換する。
func ToPostureRecordOut(p *PostureRecord) PostureRecordOut {
	return PostureRecordOut{
		ID:           p.ID,
		PostureScore: p.PostureScore,
		Feedback:     p.Feedback,
		Timestamp:    p.Timestamp,
	}
}
