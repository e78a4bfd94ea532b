// Пакет cli — административная утилита community-ctl:
// миграции БД, ручные начисления, сверка бонусов и просмотр прайс-листа.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/taskmasterai/community-module/internal/config"
	"github.com/taskmasterai/community-module/internal/database"
	"github.com/taskmasterai/community-module/internal/repository"
	"github.com/taskmasterai/community-module/internal/service"
)

// ValidFormats — допустимые форматы вывода.
var ValidFormats = []string{"text", "json"}

// Env — подключённое окружение команды.
type Env struct {
	Store   repository.Store
	Economy service.Economy
	Logger  *slog.Logger
	// Close освобождает ресурсы (пул подключений)
	Close func()
}

// OpenFunc подключает хранилище для команд, работающих с данными.
type OpenFunc func(ctx context.Context, logger *slog.Logger) (*Env, error)

// MigrateFunc применяет (up=true) или откатывает миграции.
type MigrateFunc func(up bool, logger *slog.Logger) error

// RootOptions — глобальные флаги и зависимости команд.
type RootOptions struct {
	Format  string
	Verbose bool
	Open    OpenFunc
	Migrate MigrateFunc
}

// NewRootCommand создаёт корневую команду с подключением к PostgreSQL
// по переменным окружения CM_DB_*.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{
		Open:    openPostgres,
		Migrate: migratePostgres,
	})
}

// NewRootCommandWithOptions создаёт корневую команду с заданными зависимостями.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "community-ctl",
		Short: "Администрирование Community Module",
		Long: `Утилита администрирования файловой экономики Community Module.

Подключение к PostgreSQL задаётся переменными окружения CM_DB_*,
параметры экономики — CM_FILES_PER_BONUS, CM_TOKENS_PER_BONUS и др.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("недопустимый формат %q: допустимые %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "формат вывода (json|text)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "подробные логи в stderr")

	cmd.AddCommand(newMigrateCommand(opts))
	cmd.AddCommand(newBalanceCommand(opts))
	cmd.AddCommand(newCreditCommand(opts))
	cmd.AddCommand(newAbuseCheckCommand(opts))
	cmd.AddCommand(newPricesCommand(opts))

	return cmd
}

// newLogger создаёт логгер команд. Логи идут в stderr, чтобы не
// смешиваться с JSON-выводом.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// output печатает результат в выбранном формате.
// text — строка для текстового вывода.
func output(cmd *cobra.Command, opts *RootOptions, result any, text string) error {
	w := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}
	_, err := fmt.Fprintln(w, text)
	return err
}

// withEnv подключает окружение, выполняет fn и освобождает ресурсы.
func withEnv(cmd *cobra.Command, opts *RootOptions, fn func(ctx context.Context, env *Env) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := opts.Open(ctx, newLogger(opts, cmd.ErrOrStderr()))
	if err != nil {
		return err
	}
	if env.Close != nil {
		defer env.Close()
	}
	return fn(ctx, env)
}

func openPostgres(ctx context.Context, logger *slog.Logger) (*Env, error) {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return nil, err
	}
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	retry := repository.RetryPolicy{MaxAttempts: cfg.TxMaxAttempts, BaseDelay: cfg.TxBaseDelay}
	return &Env{
		Store: repository.NewPgStore(pool, retry, logger),
		Economy: service.Economy{
			FilesPerBonus:            cfg.FilesPerBonus,
			TokensPerBonus:           cfg.TokensPerBonus,
			TokensPerDownload:        cfg.TokensPerDownload,
			StartingBalance:          cfg.StartingBalance,
			AbuseEscalationThreshold: cfg.AbuseEscalationThreshold,
		},
		Logger: logger,
		Close:  pool.Close,
	}, nil
}

func migratePostgres(up bool, logger *slog.Logger) error {
	cfg, err := config.LoadDatabase()
	if err != nil {
		return err
	}
	if up {
		return database.Migrate(cfg, logger)
	}
	return database.MigrateDown(cfg, logger)
}
