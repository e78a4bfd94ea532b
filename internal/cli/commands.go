package cli

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taskmasterai/community-module/internal/config"
	"github.com/taskmasterai/community-module/internal/service"
)

func newMigrateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Миграции схемы PostgreSQL",
	}

	run := func(up bool) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			if err := opts.Migrate(up, newLogger(opts, cmd.ErrOrStderr())); err != nil {
				return err
			}
			direction := "up"
			if !up {
				direction = "down"
			}
			return output(cmd, opts, map[string]string{"migrate": direction, "status": "ok"},
				"Миграции выполнены: "+direction)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Применить все миграции",
		Args:  cobra.NoArgs,
		RunE:  run(true),
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Откатить все миграции (удаляет данные)",
		Args:  cobra.NoArgs,
		RunE:  run(false),
	})
	return cmd
}

type balanceResult struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
}

func newBalanceCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "balance <user-id>",
		Short: "Показать баланс пользователя",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				ledger := service.NewTokenLedger(env.Store, env.Logger)
				balance, err := ledger.Balance(ctx, args[0])
				if err != nil {
					return err
				}
				return output(cmd, opts, balanceResult{UserID: args[0], Balance: balance},
					fmt.Sprintf("%s: %d токенов", args[0], balance))
			})
		},
	}
}

func newCreditCommand(opts *RootOptions) *cobra.Command {
	var create bool

	cmd := &cobra.Command{
		Use:   "credit <user-id> <amount>",
		Short: "Начислить токены пользователю",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil || amount <= 0 {
				return fmt.Errorf("%w: сумма должна быть положительным целым, получено %q", service.ErrInvalidAmount, args[1])
			}

			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				if create {
					accounts := service.NewAccountService(env.Store, env.Economy, env.Logger)
					if _, _, err := accounts.EnsureUser(ctx, args[0]); err != nil {
						return err
					}
				}

				ledger := service.NewTokenLedger(env.Store, env.Logger)
				user, err := ledger.CreditNow(ctx, args[0], amount, service.ReasonAdmin)
				if err != nil {
					return err
				}
				return output(cmd, opts, balanceResult{UserID: user.ID, Balance: user.TokenBalance},
					fmt.Sprintf("Начислено %d токенов, баланс %s: %d", amount, user.ID, user.TokenBalance))
			})
		},
	}

	cmd.Flags().BoolVar(&create, "create", false, "создать пользователя, если его нет")
	// После первого аргумента флаги не разбираются: "-5" — это сумма
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func newAbuseCheckCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "abuse-check <user-id>...",
		Short: "Сверить счётчик бонусов с числом файлов",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(cmd, opts, func(ctx context.Context, env *Env) error {
				monitor := service.NewAbuseMonitor(env.Store, env.Economy, nil, env.Logger)

				reports := make([]*service.AbuseReport, 0, len(args))
				var text strings.Builder
				for i, userID := range args {
					report, err := monitor.CheckAbuse(ctx, userID)
					if err != nil {
						return fmt.Errorf("%s: %w", userID, err)
					}
					reports = append(reports, report)

					if i > 0 {
						text.WriteByte('\n')
					}
					fmt.Fprintf(&text, "%s: файлов %d, бонусов %d (ожидалось %d), предупреждений %d",
						report.UserID, report.FileCount, report.StoredGroups, report.ExpectedGroups, report.WarningCount)
					if report.Corrected {
						text.WriteString(", счётчик исправлен")
					}
					if report.Escalate {
						text.WriteString(", ТРЕБУЕТСЯ ЭСКАЛАЦИЯ")
					}
				}
				return output(cmd, opts, reports, text.String())
			})
		},
	}
}

func newPricesCommand(opts *RootOptions) *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "prices",
		Short: "Показать прайс-лист разблокировки",
		Long: `Показать прайс-лист разблокировки.

Без --file выводится встроенный прайс-лист. С --file файл проверяется
так же, как при старте сервиса (CM_PRICE_TABLE_PATH).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			table := service.DefaultPriceTable()
			if path != "" {
				prices, err := config.LoadPrices(path)
				if err != nil {
					return err
				}
				if table, err = service.NewPriceTable(prices); err != nil {
					return err
				}
			}

			entries := table.Entries()
			var text strings.Builder
			for i, e := range entries {
				if i > 0 {
					text.WriteByte('\n')
				}
				fmt.Fprintf(&text, "%-8s %d", e.Extension, e.Cost)
			}
			return output(cmd, opts, entries, text.String())
		},
	}

	cmd.Flags().StringVarP(&path, "file", "f", "", "YAML прайс-лист для проверки")
	return cmd
}
