package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-mailinglist/app/lock"
	"github.com/vibast-solutions/ms-go-mailinglist/app/queue"
	"github.com/vibast-solutions/ms-go-mailinglist/app/repository"
	"github.com/vibast-solutions/ms-go-mailinglist/app/service"
	"github.com/vibast-solutions/ms-go-mailinglist/app/topic"
	"github.com/vibast-solutions/ms-go-mailinglist/config"
)

var scheduleOnce bool

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Fan out the daily topic on a schedule",
	Long:  "Run the daily topic fan-out on the FANOUT_SCHEDULE cron expression, or run a single tick with --once for external schedulers.",
	Args:  cobra.NoArgs,
	Run:   runSchedule,
}

// init registers the schedule command.
func init() {
	scheduleCmd.Flags().BoolVar(&scheduleOnce, "once", false, "run a single fan-out tick and exit")
	rootCmd.AddCommand(scheduleCmd)
}

// runSchedule wires the fan-out and runs it once or on the cron schedule.
func runSchedule(_ *cobra.Command, _ []string) {
	cfg := loadConfig()
	if err := cfg.ValidateFanout(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := openDB(cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	fanout := newFanoutService(cfg, repository.NewSubscriberRepository(db), queue.NewProducer(rdb, cfg.QueueStream), lock.NewRedisLocker(rdb))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		logrus.Info("Received shutdown signal, stopping scheduler...")
		cancel()
	}()

	if scheduleOnce {
		if err := runTick(ctx, fanout); err != nil {
			logrus.Fatalf("Fan-out tick failed: %v", err)
		}
		return
	}

	c := cron.New(
		cron.WithParser(config.ScheduleParser()),
		cron.WithLogger(cron.PrintfLogger(logrus.StandardLogger())),
		cron.WithChain(cron.SkipIfStillRunning(cron.PrintfLogger(logrus.StandardLogger()))),
	)
	if _, err := c.AddFunc(cfg.FanoutSchedule, func() {
		if err := runTick(ctx, fanout); err != nil {
			logrus.WithError(err).Error("Fan-out tick failed")
		}
	}); err != nil {
		logrus.Fatalf("Invalid FANOUT_SCHEDULE: %v", err)
	}

	c.Start()
	logrus.WithField("schedule", cfg.FanoutSchedule).Info("Scheduler started")

	<-ctx.Done()

	stopCtx := c.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		logrus.Warn("Timed out waiting for the running tick")
	}
	logrus.Info("Scheduler stopped")
}

func newFanoutService(cfg *config.Config, store service.SubscriberStore, publisher service.Publisher, locker service.TickLocker) *service.FanoutService {
	fetcher := topic.NewClient(topic.Config{
		URL:            cfg.TopicAPIURL,
		RequestTimeout: cfg.TopicRequestTimeout,
		BaseDelay:      cfg.TopicRetryBaseDelay,
		MaxDelay:       cfg.TopicRetryMaxDelay,
	})

	opts := []service.FanoutOption{service.WithFanoutConcurrency(cfg.FanoutConcurrency)}
	if cfg.FanoutLock {
		opts = append(opts, service.WithTickLocker(locker, cfg.FanoutLockTTL))
	}
	return service.NewFanoutService(store, fetcher, publisher, opts...)
}

// runTick runs one fan-out tick. A tick skipped because another replica holds
// the lock is not a failure.
func runTick(ctx context.Context, fanout *service.FanoutService) error {
	_, err := fanout.Run(service.WithTickID(ctx, uuid.NewString()))
	if errors.Is(err, service.ErrTickInProgress) {
		return nil
	}
	return err
}
