// Command kebabctl is the staff command line for the takeaway backend: menu
// seeding, order handling from the counter and end-of-day reports.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/metric/noop"
	"go.uber.org/zap"

	"github.com/xenking/takeaway/internal/domain/menu"
	"github.com/xenking/takeaway/internal/domain/order"
	"github.com/xenking/takeaway/internal/repository"
)

var Version = "dev"

// env holds what subcommands share once the root command has connected.
type env struct {
	lg     *zap.Logger
	pool   *pgxpool.Pool
	menu   *menu.Service
	orders *order.Service
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		databaseURL string
		verbose     bool
		e           = &env{}
	)
	cmd := &cobra.Command{
		Use:           "kebabctl",
		Short:         "Staff tooling for the takeaway ordering backend",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.open(cmd.Context(), databaseURL, verbose)
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			e.close()
		},
	}
	cmd.PersistentFlags().StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or TAKEAWAY_DATABASE_URL / DATABASE_URL env)")
	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress")

	cmd.AddCommand(menuCmd(e))
	cmd.AddCommand(ordersCmd(e))
	cmd.AddCommand(reportCmd(e))
	return cmd
}

func (e *env) open(ctx context.Context, databaseURL string, verbose bool) error {
	if verbose {
		lg, err := zap.NewDevelopment()
		if err != nil {
			return errors.Wrap(err, "create logger")
		}
		e.lg = lg
	} else {
		e.lg = zap.NewNop()
	}

	for _, key := range []string{"TAKEAWAY_DATABASE_URL", "DATABASE_URL"} {
		if databaseURL != "" {
			break
		}
		databaseURL = os.Getenv(key)
	}
	if databaseURL == "" {
		return errors.New("database URL is required: set --database-url or DATABASE_URL")
	}

	e.lg.Debug("Connecting to database")
	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect")
	}
	e.pool = pool

	orders, err := order.NewService(repository.NewOrderRepository(pool), noop.NewMeterProvider().Meter("kebabctl"))
	if err != nil {
		return errors.Wrap(err, "create order service")
	}
	e.orders = orders
	e.menu = menu.NewService(repository.NewMenuRepository(pool))
	return nil
}

func (e *env) close() {
	if e.pool != nil {
		e.pool.Close()
	}
	if e.lg != nil {
		_ = e.lg.Sync()
	}
}
