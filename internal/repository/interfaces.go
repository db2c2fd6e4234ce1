// Package repository はデータ永続化のインターフェースとSQL実装を提供する。
package repository

import (
	"context"

	"github.com/hitoshi/drumposture/internal/model"
)

// DrummingSessionRepository はドラム練習セッションの永続化インターフェース。
type DrummingSessionRepository interface {
	// Create はセッションを保存し、採番されたIDとデフォルト値を反映した記録を返す。
	// SessionDateがゼロ値の場合は作成時刻を設定する。
	Create(ctx context.Context, session *model.DrummingSession) (*model.DrummingSession, error)

	// List は挿入順（ID昇順）でskip件を読み飛ばし、最大limit件を返す。
	// skip・limitは検証せずそのままデータベースに渡す。
	List(ctx context.Context, skip, limit int) ([]*model.DrummingSession, error)
}

// PostureRecordRepository は姿勢チェック結果の永続化インターフェース。
type PostureRecordRepository interface {
	// Create は姿勢チェック結果を保存し、採番されたIDとデフォルト値を反映した記録を返す。
	// Timestampがゼロ値の場合は作成時刻を設定する。
	Create(ctx context.Context, record *model.PostureRecord) (*model.PostureRecord, error)

	// List は挿入順（ID昇順）でskip件を読み飛ばし、最大limit件を返す。
	List(ctx context.Context, skip, limit int) ([]*model.PostureRecord, error)

	// Summary は保存済み全件のスコア集計を返す。
	Summary(ctx context.Context) (*model.PostureSummary, error)
}
