package main

import (
	"context"
	"fmt"
	"os"
	"stk-relay/internal/config"
	"stk-relay/internal/infra"
	"stk-relay/internal/payments"
	"stk-relay/internal/payments/entities"
	"stk-relay/internal/payments/repository"
	"stk-relay/internal/redis"
	"text/tabwriter"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func loadConfig() (*config.Settings, error) {
	config.LoadDotEnv()
	return config.LoadStorageConfig()
}

func openLedger(ctx context.Context, cfg *config.Settings) (repository.Ledger, func(), error) {
	if cfg.LedgerDriver == config.LedgerSQLite {
		repo, err := payments.NewLedgerSQLiteRepository(cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return repo, repo.Close, nil
	}

	repo, err := payments.NewLedgerPostgresRepository(ctx, cfg.ConnString)
	if err != nil {
		return nil, nil, err
	}
	return repo, repo.Close, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the ledger table in PostgreSQL",
		Long: `Create the ledger_entries table and its correlation_id index.

The SQLite ledger creates its schema on open, so this command only
does work when LEDGER_DRIVER=postgres.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.LedgerDriver != config.LedgerPostgres {
				fmt.Println("SQLite ledger migrates itself, nothing to do")
				return nil
			}

			ctx := cmd.Context()
			repo, err := payments.NewLedgerPostgresRepository(ctx, cfg.ConnString)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Migrate(ctx); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("ledger schema is up to date")
			return nil
		},
	}
}

func historyCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "history [correlation-id]",
		Short: "List every callback delivery recorded for a correlation ID",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			ledger, closeLedger, err := openLedger(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeLedger()

			entries, err := ledger.FindByCorrelationID(ctx, args[0])
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(entries)
			}
			printEntries(entries)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&asJSON, "json", "j", false, "Output as JSON")
	return cmd
}

func printEntries(entries []entities.LedgerEntry) {
	if len(entries) == 0 {
		fmt.Println("no ledger entries")
		return
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RECORDED AT\tSTATUS\tRESULT\tPHONE\tAMOUNT\tRECEIPT\tENTRY ID")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%d\t%s\t%s\n",
			e.RecordedAt.Format(time.RFC3339), e.Status, e.ResultCode, e.PhoneNumber, e.Amount, e.MpesaReceiptNumber, e.ID)
	}
	w.Flush()
}

func pendingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show how many ledger entries are waiting for replay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			redisClient, err := redis.NewClient(ctx, cfg.RedisURL)
			if err != nil {
				return err
			}
			defer redisClient.Close()

			queue := infra.NewLedgerQueue(redisClient.Client, redisClient.Lock, nil, 1)
			if err := queue.EnsureGroup(ctx); err != nil {
				return err
			}
			count, err := queue.Pending(ctx)
			if err != nil {
				return err
			}

			fmt.Printf("%d ledger entries awaiting replay\n", count)
			return nil
		},
	}
}
