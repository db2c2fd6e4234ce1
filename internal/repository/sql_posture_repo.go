package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/drumposture/internal/database"
	"github.com/hitoshi/drumposture/internal/model"
)

// postureRow はposture_dataテーブルの行を表す。
type postureRow struct {
	ID           int64     `db:"id"`
	PostureScore float64   `db:"posture_score"`
	Feedback     string    `db:"feedback"`
	Timestamp    time.Time `db:"timestamp"`
}

func (r postureRow) toModel() *model.PostureRecord {
	return &model.PostureRecord{
		ID:           r.ID,
		PostureScore: r.PostureScore,
		Feedback:     r.Feedback,
		Timestamp:    model.NewDateTime(r.Timestamp),
	}
}

// summaryRow は集計クエリの結果を表す。
type summaryRow struct {
	Count        int     `db:"count"`
	AverageScore float64 `db:"average_score"`
	GoodCount    int     `db:"good_count"`
}

const (
	insertPostureSQL = `INSERT INTO posture_data (posture_score, feedback, timestamp)
		 VALUES (?, ?, ?) RETURNING id`
	selectPostureByIDSQL = `SELECT id, posture_score, feedback, timestamp
		 FROM posture_data WHERE id = ?`
	listPostureSQL = `SELECT id, posture_score, feedback, timestamp
		 FROM posture_data ORDER BY id LIMIT ? OFFSET ?`
	summaryPostureSQL = `SELECT COUNT(*) AS count,
		        COALESCE(AVG(posture_score), 0) AS average_score,
		        COALESCE(SUM(CASE WHEN posture_score >= ? THEN 1 ELSE 0 END), 0) AS good_count
		 FROM posture_data`
)

// SQLPostureRecordRepo はSQLite/PostgreSQLを使用した姿勢チェック結果リポジトリ。
type SQLPostureRecordRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLPostureRecordRepo はSQLPostureRecordRepoを生成する。
func NewSQLPostureRecordRepo(db *sqlx.DB) *SQLPostureRecordRepo {
	return &SQLPostureRecordRepo{db: db, now: time.Now}
}

// Create は姿勢チェック結果を1トランザクションで保存し、コミット後に保存内容を再読込して返す。
func (r *SQLPostureRecordRepo) Create(ctx context.Context, record *model.PostureRecord) (*model.PostureRecord, error) {
	ts := record.Timestamp.Time
	if ts.IsZero() {
		ts = r.now()
	}

	var id int64
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, r.db.Rebind(insertPostureSQL),
			record.PostureScore, record.Feedback, ts.UTC(),
		).Scan(&id)
	})
	if err != nil {
		return nil, storageError("姿勢チェック結果の保存に失敗しました", err)
	}

	var row postureRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectPostureByIDSQL), id); err != nil {
		return nil, storageError("保存した姿勢チェック結果の再読込に失敗しました", err)
	}

	return row.toModel(), nil
}

// List はID昇順でskip件を読み飛ばし、最大limit件の姿勢チェック結果を返す。
func (r *SQLPostureRecordRepo) List(ctx context.Context, skip, limit int) ([]*model.PostureRecord, error) {
	var rows []postureRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(listPostureSQL), limit, skip); err != nil {
		return nil, storageError("姿勢チェック結果一覧の取得に失敗しました", err)
	}

	records := make([]*model.PostureRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toModel())
	}
	return records, nil
}

// Summary は全件のスコア集計を返す。
// 良い姿勢の判定はFeedbackForScoreと同じ閾値（以上）を使用する。
func (r *SQLPostureRecordRepo) Summary(ctx context.Context) (*model.PostureSummary, error) {
	var row summaryRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(summaryPostureSQL), model.GoodPostureThreshold); err != nil {
		return nil, storageError("姿勢チェック結果の集計に失敗しました", err)
	}

	return &model.PostureSummary{
		Count:        row.Count,
		AverageScore: row.AverageScore,
		GoodCount:    row.GoodCount,
		PoorCount:    row.Count - row.GoodCount,
	}, nil
}
