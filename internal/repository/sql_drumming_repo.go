package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/drumposture/internal/database"
	"github.com/hitoshi/drumposture/internal/model"
)

// drummingRow はdrumming_dataテーブルの行を表す。
type drummingRow struct {
	ID              int64          `db:"id"`
	SessionDate     time.Time      `db:"session_date"`
	DurationMinutes int            `db:"duration_minutes"`
	TempoBPM        int            `db:"tempo_bpm"`
	Notes           sql.NullString `db:"notes"`
}

func (r drummingRow) toModel() *model.DrummingSession {
	s := &model.DrummingSession{
		ID:              r.ID,
		SessionDate:     model.NewDateTime(r.SessionDate),
		DurationMinutes: r.DurationMinutes,
		TempoBPM:        r.TempoBPM,
	}
	if r.Notes.Valid {
		notes := r.Notes.String
		s.Notes = &notes
	}
	return s
}

const (
	insertDrummingSQL = `INSERT INTO drumming_data (session_date, duration_minutes, tempo_bpm, notes)
		 VALUES (?, ?, ?, ?) RETURNING id`
	selectDrummingByIDSQL = `SELECT id, session_date, duration_minutes, tempo_bpm, notes
		 FROM drumming_data WHERE id = ?`
	listDrummingSQL = `SELECT id, session_date, duration_minutes, tempo_bpm, notes
		 FROM drumming_data ORDER BY id LIMIT ? OFFSET ?`
)

// SQLDrummingSessionRepo はSQLite/PostgreSQLを使用したドラム練習セッションリポジトリ。
type SQLDrummingSessionRepo struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSQLDrummingSessionRepo はSQLDrummingSessionRepoを生成する。
func NewSQLDrummingSessionRepo(db *sqlx.DB) *SQLDrummingSessionRepo {
	return &SQLDrummingSessionRepo{db: db, now: time.Now}
}

// Create はセッションを1トランザクションで保存し、コミット後に保存内容を再読込して返す。
func (r *SQLDrummingSessionRepo) Create(ctx context.Context, session *model.DrummingSession) (*model.DrummingSession, error) {
	sessionDate := session.SessionDate.Time
	if sessionDate.IsZero() {
		sessionDate = r.now()
	}

	var notes sql.NullString
	if session.Notes != nil {
		notes = sql.NullString{String: *session.Notes, Valid: true}
	}

	var id int64
	err := database.WithTx(ctx, r.db, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, r.db.Rebind(insertDrummingSQL),
			sessionDate.UTC(), session.DurationMinutes, session.TempoBPM, notes,
		).Scan(&id)
	})
	if err != nil {
		return nil, storageError("ドラム練習セッションの保存に失敗しました", err)
	}

	var row drummingRow
	if err := r.db.GetContext(ctx, &row, r.db.Rebind(selectDrummingByIDSQL), id); err != nil {
		return nil, storageError("保存したドラム練習セッションの再読込に失敗しました", err)
	}

	return row.toModel(), nil
}

// List はID昇順でskip件を読み飛ばし、最大limit件のセッションを返す。
func (r *SQLDrummingSessionRepo) List(ctx context.Context, skip, limit int) ([]*model.DrummingSession, error) {
	var rows []drummingRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(listDrummingSQL), limit, skip); err != nil {
		return nil, storageError("ドラム練習セッション一覧の取得に失敗しました", err)
	}

	sessions := make([]*model.DrummingSession, 0, len(rows))
	for _, row := range rows {
		sessions = append(sessions, row.toModel())
	}
	return sessions, nil
}
