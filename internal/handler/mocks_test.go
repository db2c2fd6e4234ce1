package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/hitoshi/drumposture/internal/model"
)

// --- モック定義 ---

// mockDrummingRepo はrepository.DrummingSessionRepositoryのモック実装。
type mockDrummingRepo struct {
	createFn func(ctx context.Context, session *model.DrummingSession) (*model.DrummingSession, error)
	listFn   func(ctx context.Context, skip, limit int) ([]*model.DrummingSession, error)

	createCalls int
}

func (m *mockDrummingRepo) Create(ctx context.Context, session *model.DrummingSession) (*model.DrummingSession, error) {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	created := *session
	created.ID = 1
	return &created, nil
}

func (m *mockDrummingRepo) List(ctx context.Context, skip, limit int) ([]*model.DrummingSession, error) {
	if m.listFn != nil {
		return m.listFn(ctx, skip, limit)
	}
	return nil, nil
}

// mockPostureRepo はrepository.PostureRecordRepositoryのモック実装。
type mockPostureRepo struct {
	createFn  func(ctx context.Context, record *model.PostureRecord) (*model.PostureRecord, error)
	listFn    func(ctx context.Context, skip, limit int) ([]*model.PostureRecord, error)
	summaryFn func(ctx context.Context) (*model.PostureSummary, error)

	createCalls int
}

func (m *mockPostureRepo) Create(ctx context.Context, record *model.PostureRecord) (*model.PostureRecord, error) {
	m.createCalls++
	if m.createFn != nil {
		return m.createFn(ctx, record)
	}
	created := *record
	created.ID = 1
	return &created, nil
}

func (m *mockPostureRepo) List(ctx context.Context, skip, limit int) ([]*model.PostureRecord, error) {
	if m.listFn != nil {
		return m.listFn(ctx, skip, limit)
	}
	return nil, nil
}

func (m *mockPostureRepo) Summary(ctx context.Context) (*model.PostureSummary, error) {
	if m.summaryFn != nil {
		return m.summaryFn(ctx)
	}
	return &model.PostureSummary{}, nil
}

// mockScorer はPostureScorerのモック実装。
type mockScorer struct {
	scoreFn func(ctx context.Context, imageURL string) (*model.PostureRecordIn, error)

	calls []string
}

func (m *mockScorer) Score(ctx context.Context, imageURL string) (*model.PostureRecordIn, error) {
	m.calls = append(m.calls, imageURL)
	if m.scoreFn != nil {
		return m.scoreFn(ctx, imageURL)
	}
	return &model.PostureRecordIn{PostureScore: 7, Feedback: "from scorer"}, nil
}

// mockPinger はPingerのモック実装。
type mockPinger struct {
	err error
}

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.err
}

// fakeCounter はRecordCounterのテスト用実装。
type fakeCounter struct {
	mu     sync.Mutex
	tables []string
}

func (f *fakeCounter) RecordRecordCreated(table string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tables = append(f.tables, table)
}

// --- テストヘルパー ---

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

// parseAPIErrorResponse はレスポンスボディからAPIErrorレスポンスをパースするヘルパー。
func parseAPIErrorResponse(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var result map[string]string
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("failed to decode error response: %v", err)
	}
	return result
}

func mustDateTime(t *testing.T, s string) model.DateTime {
	t.Helper()
	d, err := model.ParseDateTime(s)
	if err != nil {
		t.Fatalf("ParseDateTime(%q): %v", s, err)
	}
	return d
}

func strPtr(s string) *string { return &s }
