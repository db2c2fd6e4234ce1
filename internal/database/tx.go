package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// WithTx はリクエスト単位のトランザクションを開き、fnを実行する。
// fnが成功した場合のみコミットし、エラー・panic・コミット失敗のいずれの場合も
// トランザクションをロールバックして接続をプールに返却する。
func WithTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if committed {
			return
		}
		// コミット前に抜けた場合は必ずロールバックする
		_ = tx.Rollback()
		if p := recover(); p != nil {
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true

	return nil
}
