package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"clarte-be/internal/config"
	"clarte-be/internal/coupon"
	"clarte-be/internal/db"
	"clarte-be/internal/inventory"
	"clarte-be/internal/logger"
	"clarte-be/internal/order"

	"github.com/bsm/redislock"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const (
	lockKey = "lock:order-sweep"
	lockTTL = 5 * time.Minute
)

var errLocked = errors.New("another sweep holds the lock")

type expirer interface {
	ExpireStale(ctx context.Context, olderThan time.Duration, dryRun bool) (*order.SweepReport, error)
}

// lockFunc acquires the cross-instance sweep lock.
type lockFunc func(ctx context.Context) (release func(), err error)

type sweeper struct {
	orders     expirer
	lock       lockFunc
	defaultTTL time.Duration
	out        io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd(setup).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(build func(out io.Writer) (*sweeper, func(), error)) *cobra.Command {
	var (
		hours  int
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:          "sweeper",
		Short:        "cancel pending orders that were never paid",
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if hours < 0 {
				return fmt.Errorf("--hours must be positive, got %d", hours)
			}
			s, cleanup, err := build(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer cleanup()

			olderThan := time.Duration(hours) * time.Hour
			if olderThan == 0 {
				olderThan = s.defaultTTL
			}
			return s.run(cmd.Context(), olderThan, dryRun)
		},
	}

	cmd.Flags().IntVar(&hours, "hours", 0, "age in hours after which a pending order is stale (default PENDING_ORDER_TTL_HOURS)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list stale orders without cancelling them")
	return cmd
}

func (s *sweeper) run(ctx context.Context, olderThan time.Duration, dryRun bool) error {
	log := logger.L().With(zap.Duration("older_than", olderThan), zap.Bool("dry_run", dryRun))

	release, err := s.lock(ctx)
	if errors.Is(err, errLocked) {
		log.Info("sweep skipped, lock held elsewhere")
		fmt.Fprintln(s.out, "another sweep is running, nothing to do")
		return nil
	}
	if err != nil {
		return fmt.Errorf("obtain sweep lock: %w", err)
	}
	defer release()

	report, err := s.orders.ExpireStale(ctx, olderThan, dryRun)
	if err != nil {
		return fmt.Errorf("expire stale orders: %w", err)
	}

	log.Info("sweep finished",
		zap.Int("candidates", len(report.Candidates)),
		zap.Int("cancelled", len(report.Cancelled)),
		zap.Int("failed", report.Failed),
	)
	printReport(s.out, report)
	return nil
}

func printReport(w io.Writer, r *order.SweepReport) {
	mode := "applied"
	if r.DryRun {
		mode = "dry run"
	}
	fmt.Fprintf(w, "cutoff:     %s (%s)\n", r.Cutoff.Format(time.RFC3339), mode)
	fmt.Fprintf(w, "candidates: %d\n", len(r.Candidates))
	fmt.Fprintf(w, "cancelled:  %d\n", len(r.Cancelled))
	if len(r.Cancelled) > 0 {
		fmt.Fprintf(w, "            %s\n", strings.Join(r.Cancelled, ", "))
	}
	fmt.Fprintf(w, "failed:     %d\n", r.Failed)
}

func setup(out io.Writer) (*sweeper, func(), error) {
	cfg := config.LoadConfig()
	logger.Init(cfg.AppEnv)

	database, err := db.NewDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}

	orders := order.NewService(
		database,
		order.NewRepository(),
		inventory.NewCatalog(),
		inventory.NewLedger(),
		coupon.NewValidator(coupon.NewRepository()),
		order.Options{Prefix: cfg.OrderPrefix, Location: cfg.Location()},
	)

	s := &sweeper{orders: orders, defaultTTL: cfg.PendingOrderTTL, out: out, lock: noLock}
	closers := []func(){func() { _ = database.Close() }, logger.Sync}

	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		s.lock = redisLock(redislock.New(rdb))
		closers = append(closers, func() { _ = rdb.Close() })
	} else {
		logger.L().Warn("REDIS_ADDR not set, sweeping without a cross-instance lock")
	}

	return s, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

func redisLock(client *redislock.Client) lockFunc {
	return func(ctx context.Context) (func(), error) {
		lock, err := client.Obtain(ctx, lockKey, lockTTL, nil)
		if errors.Is(err, redislock.ErrNotObtained) {
			return nil, errLocked
		}
		if err != nil {
			return nil, err
		}
		return func() {
			if err := lock.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
				logger.L().Warn("failed to release sweep lock", zap.Error(err))
			}
		}, nil
	}
}

func noLock(context.Context) (func(), error) { return func() {}, nil }
