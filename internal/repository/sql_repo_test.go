package repository

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/drumposture/internal/database"
	"github.com/hitoshi/drumposture/internal/model"
)

// SQLDrummingSessionRepoはDrummingSessionRepositoryインターフェースを満たすことを検証
func TestSQLDrummingSessionRepo_ImplementsInterface(t *testing.T) {
	var _ DrummingSessionRepository = (*SQLDrummingSessionRepo)(nil)
}

// SQLPostureRecordRepoはPostureRecordRepositoryインターフェースを満たすことを検証
func TestSQLPostureRecordRepo_ImplementsInterface(t *testing.T) {
	var _ PostureRecordRepository = (*SQLPostureRecordRepo)(nil)
}

// newTestDB はスキーマ作成済みの一時SQLiteデータベースを返す。
func newTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dbURL := "sqlite://" + filepath.Join(t.TempDir(), "repo_test.db")
	if err := database.RunMigrations(dbURL); err != nil {
		t.Fatalf("マイグレーション実行に失敗: %v", err)
	}

	db, err := database.Open(dbURL, database.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func strPtr(s string) *string { return &s }

func mustDateTime(t *testing.T, s string) model.DateTime {
	t.Helper()
	d, err := model.ParseDateTime(s)
	if err != nil {
		t.Fatalf("ParseDateTime(%q): %v", s, err)
	}
	return d
}

// --- ドラム練習セッション ---

func TestSQLDrummingSessionRepo_CreateAssignsIDAndKeepsFields(t *testing.T) {
	repo := NewSQLDrummingSessionRepo(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.DrummingSession{
		SessionDate:     mustDateTime(t, "2024-01-01T10:00:00"),
		DurationMinutes: 30,
		TempoBPM:        120,
		Notes:           strPtr("warmup"),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if created.ID != 1 {
		t.Errorf("ID = %d, want 1", created.ID)
	}
	if created.SessionDate.String() != "2024-01-01T10:00:00" {
		t.Errorf("SessionDate = %s", created.SessionDate)
	}
	if created.DurationMinutes != 30 || created.TempoBPM != 120 {
		t.Errorf("duration/tempo = %d/%d", created.DurationMinutes, created.TempoBPM)
	}
	if created.Notes == nil || *created.Notes != "warmup" {
		t.Errorf("Notes = %v, want warmup", created.Notes)
	}

	second, err := repo.Create(ctx, &model.DrummingSession{
		SessionDate:     mustDateTime(t, "2024-01-02T10:00:00"),
		DurationMinutes: 45,
		TempoBPM:        90,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if second.ID != 2 {
		t.Errorf("2件目のID = %d, want 2", second.ID)
	}
	if second.Notes != nil {
		t.Errorf("Notes = %q, want nil", *second.Notes)
	}
}

// SessionDate未指定時は作成時刻が設定されることを検証する。
func TestSQLDrummingSessionRepo_CreateDefaultsSessionDate(t *testing.T) {
	repo := NewSQLDrummingSessionRepo(newTestDB(t))
	fixed := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	created, err := repo.Create(context.Background(), &model.DrummingSession{
		DurationMinutes: 10,
		TempoBPM:        100,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if !created.SessionDate.Equal(fixed) {
		t.Errorf("SessionDate = %v, want %v", created.SessionDate.Time, fixed)
	}
}

func TestSQLDrummingSessionRepo_ListPagination(t *testing.T) {
	repo := NewSQLDrummingSessionRepo(newTestDB(t))
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := repo.Create(ctx, &model.DrummingSession{
			SessionDate:     mustDateTime(t, "2024-01-01T10:00:00"),
			DurationMinutes: i * 10,
			TempoBPM:        100 + i,
		}); err != nil {
			t.Fatalf("Create #%d: %v", i, err)
		}
	}

	tests := []struct {
		name    string
		skip    int
		limit   int
		wantIDs []int64
	}{
		{"先頭から2件", 0, 2, []int64{1, 2}},
		{"2件読み飛ばし", 2, 10, []int64{3, 4, 5}},
		{"範囲外", 10, 10, []int64{}},
		{"limit 0", 0, 0, []int64{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.skip, tt.limit)
			if err != nil {
				t.Fatalf("List returned error: %v", err)
			}
			ids := make([]int64, 0, len(got))
			for _, s := range got {
				ids = append(ids, s.ID)
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("IDs = %v, want %v", ids, tt.wantIDs)
			}
		})
	}
}

// 同じskip/limitで繰り返し取得した結果が一致することを検証する。
func TestSQLDrummingSessionRepo_ListIsRepeatable(t *testing.T) {
	repo := NewSQLDrummingSessionRepo(newTestDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if _, err := repo.Create(ctx, &model.DrummingSession{DurationMinutes: 20, TempoBPM: 80}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	first, err := repo.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	second, err := repo.List(ctx, 1, 2)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("繰り返し取得の結果が一致しない: %v vs %v", first, second)
	}
}

// 挿入失敗時にロールバックされ、StorageErrorが返ることを検証する。
func TestSQLDrummingSessionRepo_CreateRollsBackOnInsertError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer raw.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO drumming_data").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	repo := NewSQLDrummingSessionRepo(sqlx.NewDb(raw, "sqlite3"))
	_, err = repo.Create(context.Background(), &model.DrummingSession{DurationMinutes: 30, TempoBPM: 120})

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	if storageErr.Err == nil || !strings.Contains(storageErr.Error(), "disk full") {
		t.Errorf("元のエラーが保持されること: %v", storageErr)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}

func TestSQLDrummingSessionRepo_ListError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer raw.Close()

	mock.ExpectQuery("SELECT id, session_date").WithArgs(-1, -5).WillReturnError(errors.New("LIMIT must not be negative"))

	repo := NewSQLDrummingSessionRepo(sqlx.NewDb(raw, "sqlite3"))
	_, err = repo.List(context.Background(), -5, -1)

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("skip/limitがそのまま渡されること: %v", err)
	}
}

// --- 姿勢チェック結果 ---

func TestSQLPostureRecordRepo_CreateAndList(t *testing.T) {
	repo := NewSQLPostureRecordRepo(newTestDB(t))
	ctx := context.Background()

	created, err := repo.Create(ctx, &model.PostureRecord{
		PostureScore: 7.25,
		Feedback:     model.FeedbackGood,
		Timestamp:    mustDateTime(t, "2024-02-03T04:05:06"),
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if created.ID != 1 {
		t.Errorf("ID = %d, want 1", created.ID)
	}
	if created.PostureScore != 7.25 || created.Feedback != model.FeedbackGood {
		t.Errorf("unexpected record: %+v", created)
	}
	if created.Timestamp.String() != "2024-02-03T04:05:06" {
		t.Errorf("Timestamp = %s", created.Timestamp)
	}

	list, err := repo.List(ctx, 0, 10)
	if err != nil {
		t.Fatalf("List returned error: %v", err)
	}
	if len(list) != 1 || !reflect.DeepEqual(list[0], created) {
		t.Errorf("List = %+v, want [%+v]", list, created)
	}
}

func TestSQLPostureRecordRepo_CreateDefaultsTimestamp(t *testing.T) {
	repo := NewSQLPostureRecordRepo(newTestDB(t))
	fixed := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	repo.now = func() time.Time { return fixed }

	created, err := repo.Create(context.Background(), &model.PostureRecord{
		PostureScore: 3,
		Feedback:     model.FeedbackPoor,
	})
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if !created.Timestamp.Equal(fixed) {
		t.Errorf("Timestamp = %v, want %v", created.Timestamp.Time, fixed)
	}
}

func TestSQLPostureRecordRepo_Summary(t *testing.T) {
	repo := NewSQLPostureRecordRepo(newTestDB(t))
	ctx := context.Background()

	empty, err := repo.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	if *empty != (model.PostureSummary{}) {
		t.Errorf("空テーブルの集計 = %+v, want zero", empty)
	}

	for _, s := range []float64{2, 5, 8} {
		if _, err := repo.Create(ctx, &model.PostureRecord{
			PostureScore: s,
			Feedback:     model.FeedbackForScore(s),
		}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	got, err := repo.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary returned error: %v", err)
	}
	want := model.PostureSummary{Count: 3, AverageScore: 5, GoodCount: 2, PoorCount: 1}
	if *got != want {
		t.Errorf("Summary = %+v, want %+v", *got, want)
	}
}

func TestSQLPostureRecordRepo_CreateRollsBackOnInsertError(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	defer raw.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO posture_data").WillReturnError(errors.New("database is locked"))
	mock.ExpectRollback()

	repo := NewSQLPostureRecordRepo(sqlx.NewDb(raw, "sqlite3"))
	_, err = repo.Create(context.Background(), &model.PostureRecord{PostureScore: 6, Feedback: model.FeedbackGood})

	var storageErr *StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("err = %v, want *StorageError", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("expectations: %v", err)
	}
}
