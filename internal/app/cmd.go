package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hitoshi/drumposture/internal/config"
	"github.com/hitoshi/drumposture/internal/logger"
)

// サブコマンド名。
const (
	// CommandServe はAPIサーバーモードで起動することを示す。
	CommandServe = "serve"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck = "healthcheck"
)

// Run はアプリケーションのメインエントリーポイント。
// argsにはos.Args[1:]を渡す。サブコマンド省略時はserveとして起動する。
// SIGINTまたはSIGTERMを受信するとserveはグレースフルシャットダウンする。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(w)
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

// cliState はサブコマンド間で共有する設定とロガー。
type cliState struct {
	out        io.Writer
	v          *viper.Viper
	configFile string

	cfg    *config.Config
	logger *slog.Logger
}

// Init は設定ファイル（指定時）と環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
func (s *cliState) Init() error {
	if s.configFile != "" {
		if err := config.ReadFile(s.v, s.configFile); err != nil {
			return err
		}
	}

	cfg, err := config.FromViper(s.v)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}

	s.cfg = cfg
	s.logger = logger.SetupDefault(s.out, level)
	return nil
}

// NewRootCommand はCLIのルートコマンドを生成する。
// ログはwに出力する。
func NewRootCommand(w io.Writer) *cobra.Command {
	state := &cliState{out: w, v: config.NewViper()}

	rootCmd := &cobra.Command{
		Use:           "drumposture",
		Short:         "Drumming practice and posture check API server",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveCommand(cmd, state)
		},
	}
	rootCmd.SetOut(w)
	rootCmd.SetErr(w)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&state.configFile, "config", "", "path to a config file (yaml, json or toml)")
	flags.String("database-url", "", "database URL (sqlite://path or postgres://...)")
	flags.String("port", "", "HTTP listen port")
	flags.String("posture-api-url", "", "external posture scoring API URL")
	flags.String("log-level", "", "log level (debug, info, warn, error)")

	for key, name := range map[string]string{
		config.KeyDatabaseURL:   "database-url",
		config.KeyServerPort:    "port",
		config.KeyPostureAPIURL: "posture-api-url",
		config.KeyLogLevel:      "log-level",
	} {
		// フラグは直前に定義済みのためLookupはnilを返さない
		_ = state.v.BindPFlag(key, flags.Lookup(name))
	}

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   CommandServe,
			Short: "Run the HTTP API server",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return serveCommand(cmd, state)
			},
		},
		&cobra.Command{
			Use:   CommandMigrate,
			Short: "Apply database migrations and exit",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				if err := state.Init(); err != nil {
					return fmt.Errorf("initialization failed: %w", err)
				}
				return runMigrate(state.cfg, state.logger)
			},
		},
		&cobra.Command{
			Use:   CommandHealthcheck,
			Short: "Probe the local /health endpoint",
			Args:  cobra.NoArgs,
			// 軽量サブコマンドのため、設定の検証とログの初期化をスキップする
			RunE: func(cmd *cobra.Command, args []string) error {
				port := state.v.GetString(config.KeyServerPort)
				return runHealthcheck(cmd.Context(), "http://localhost:"+port)
			},
		},
	)

	return rootCmd
}

func serveCommand(cmd *cobra.Command, state *cliState) error {
	if err := state.Init(); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	state.logger.Info("starting application",
		slog.String("command", CommandServe),
		slog.String("port", state.cfg.ServerPort),
	)
	return runServe(cmd.Context(), state.cfg, state.logger)
}
