package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// サポートするドライバー名。
const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "postgres"
)

// sqliteScheme はSQLiteファイルを指すDATABASE_URLのスキーム。
const sqliteScheme = "sqlite://"

// Target はDATABASE_URLを解釈した接続先を表す。
type Target struct {
	Driver string // database/sqlのドライバー名
	DSN    string // ドライバーに渡す接続文字列
}

// ParseURL はDATABASE_URLからドライバーと接続文字列を決定する。
// postgres:// または postgresql:// はPostgreSQL、sqlite:// またはスキームなしのパスはSQLiteファイルとして扱う。
func ParseURL(databaseURL string) (Target, error) {
	u := strings.TrimSpace(databaseURL)
	if u == "" {
		return Target{}, fmt.Errorf("database URL is empty")
	}

	switch {
	case strings.HasPrefix(u, "postgres://"), strings.HasPrefix(u, "postgresql://"):
		return Target{Driver: DriverPostgres, DSN: u}, nil
	case strings.HasPrefix(u, sqliteScheme):
		path := strings.TrimPrefix(u, sqliteScheme)
		if path == "" {
			return Target{}, fmt.Errorf("sqlite database path is empty")
		}
		return Target{Driver: DriverSQLite, DSN: path}, nil
	case strings.Contains(u, "://"):
		return Target{}, fmt.Errorf("unsupported database URL scheme: %s", u[:strings.Index(u, "://")])
	default:
		return Target{Driver: DriverSQLite, DSN: u}, nil
	}
}

// Options はコネクションプールの設定。
type Options struct {
	MaxOpenConns int
}

// Open はDATABASE_URLに対応するコネクションプールを開く。
// プロセス起動時に1回だけ呼び出し、終了時にCloseすること。
// sqlx.Openは接続を試行しないため、実際の接続確認にはPingを使用すること。
// SQLiteは書き込みの競合を避けるため同時接続数を1に固定する。
func Open(databaseURL string, opts Options) (*sqlx.DB, error) {
	target, err := ParseURL(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := sqlx.Open(target.Driver, target.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	maxOpen := opts.MaxOpenConns
	if target.Driver == DriverSQLite {
		maxOpen = 1
	}
	if maxOpen > 0 {
		db.SetMaxOpenConns(maxOpen)
	}

	return db, nil
}

// Pinger はデータベースの疎通確認を提供する。
// /health エンドポイントから利用する。
type Pinger struct {
	db *sqlx.DB
}

// NewPinger はPingerを生成する。
func NewPinger(db *sqlx.DB) *Pinger {
	return &Pinger{db: db}
}

// Ping はデータベースへの疎通を確認する。
func (p *Pinger) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}
