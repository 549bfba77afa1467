package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/stratumlab/tiersweep/internal/audit"
	"github.com/stratumlab/tiersweep/internal/config"
	"github.com/stratumlab/tiersweep/internal/engine"
	"github.com/stratumlab/tiersweep/internal/logger"
	"github.com/stratumlab/tiersweep/internal/plan"
	"github.com/stratumlab/tiersweep/internal/venue"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"
)

// sweepAction runs one sweep per configured account. Accounts are
// independent (separate sessions, separate plan files) and fan out across
// goroutines.
func sweepAction(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	accountFilter := cmd.String("account")
	dryRun := cmd.Bool("dry-run")

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	zl, err := logger.NewLoggerWithFile(logger.FileConfig{
		Path:       cfg.LogFile,
		MaxSizeMB:  50,
		MaxBackups: 5,
		MaxAgeDays: 14,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer zl.Sync() //nolint:errcheck

	accounts := make([]config.AccountConfig, 0, len(cfg.Accounts))

	for _, account := range cfg.Accounts {
		if accountFilter != "" && account.Name != accountFilter {
			continue
		}

		accounts = append(accounts, account)
	}

	if len(accounts) == 0 {
		return fmt.Errorf("no account matches filter %q", accountFilter)
	}

	audits, err := audit.NewStore(cfg.AuditPath)
	if err != nil {
		return fmt.Errorf("failed to open audit store: %w", err)
	}
	defer audits.Close() //nolint:errcheck

	plans := plan.NewStore(cfg.PlanRoot)

	bar := progressbar.Default(int64(len(accounts)), "sweeping accounts")

	var wg sync.WaitGroup

	for _, account := range accounts {
		wg.Add(1)

		go func(account config.AccountConfig) {
			defer wg.Done()
			defer bar.Add(1) //nolint:errcheck

			gateway, err := venue.NewGateway(venue.GatewayType(account.Gateway), account.GatewayConfig)
			if err != nil {
				zl.Error("failed to build venue gateway",
					zap.String("account", account.Name), zap.Error(err))

				return
			}

			sweeper := engine.NewSweeper(cfg, account, gateway, plans, audits, zl)
			sweeper.DryRun = dryRun

			// Connect and narrower failures are already contained and
			// logged by the sweeper; other accounts keep going.
			summary, _ := sweeper.Run(ctx)

			zl.Info("account sweep finished",
				zap.String("account", summary.Account),
				zap.String("tier", summary.Tier),
				zap.Int("placed", summary.Placed),
				zap.Int("cancelled", summary.Cancelled),
				zap.Int("rejected", summary.Rejected),
				zap.Int("skipped", summary.Skipped),
				zap.Int("stops_advanced", summary.StopsAdvanced),
				zap.Int("targets_resynced", summary.TargetsResynced),
				zap.Int("volume_escalations", summary.VolumeEscalations))
		}(account)
	}

	wg.Wait()

	return nil
}

// gatewaysAction prints the supported venue gateways and their config schema.
func gatewaysAction(ctx context.Context, cmd *cli.Command) error {
	for _, name := range venue.GetSupportedGateways() {
		info, err := venue.GetGatewayInfo(name)
		if err != nil {
			return err
		}

		fmt.Printf("%s - %s\n", info.Name, info.Description)

		if cmd.Bool("schema") {
			schema, err := venue.GetGatewayConfigSchema(name)
			if err != nil {
				return err
			}

			fmt.Println(schema)
		}
	}

	return nil
}

func main() {
	// Credentials referenced by gateway configs may live in a local .env.
	_ = godotenv.Load()

	cmd := &cli.Command{
		Name:  "tiersweep",
		Usage: "Reconcile pending limit orders across brokerage accounts by risk tier",
		Commands: []*cli.Command{
			{
				Name:  "run",
				Usage: "Run one reconciliation sweep over the configured accounts",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "config",
						Aliases:  []string{"c"},
						Usage:    "Path to the engine YAML config",
						Value:    "tiersweep.yaml",
						Required: false,
					},
					&cli.StringFlag{
						Name:     "account",
						Aliases:  []string{"a"},
						Usage:    "Sweep only the named account",
						Required: false,
					},
					&cli.BoolFlag{
						Name:  "dry-run",
						Usage: "Log intended mutations without issuing them",
					},
				},
				Action: sweepAction,
			},
			{
				Name:  "gateways",
				Usage: "List supported venue gateways",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "schema",
						Usage: "Print each gateway's JSON config schema",
					},
				},
				Action: gatewaysAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		log.Fatal(err)
	}
}
