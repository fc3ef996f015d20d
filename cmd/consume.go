package cmd

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/vibast-solutions/ms-go-mailinglist/app/queue"
	"github.com/vibast-solutions/ms-go-mailinglist/app/renderer"
	"github.com/vibast-solutions/ms-go-mailinglist/app/repository"
	"github.com/vibast-solutions/ms-go-mailinglist/app/service"
)

var consumeCmd = &cobra.Command{
	Use:   "consume",
	Short: "Consume queued messages",
	Long:  "Consume queued messages from Redis streams.",
}

// init registers consume subcommands.
func init() {
	consumeCmd.AddCommand(consumeEmailsCmd)
	rootCmd.AddCommand(consumeCmd)
}

var consumeEmailsCmd = &cobra.Command{
	Use:   "emails [consumer_name]",
	Short: "Start the email queue consumer",
	Long:  "Start a worker that reads email messages from the Redis stream, renders them and sends them via the configured provider.",
	Args:  cobra.ExactArgs(1),
	Run:   runConsumeEmails,
}

// runConsumeEmails starts the email queue consumer worker.
func runConsumeEmails(_ *cobra.Command, args []string) {
	consumerName := args[0]

	cfg := loadConfig()
	if err := cfg.ValidateMailer(); err != nil {
		logrus.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb, err := openRedis(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer rdb.Close()

	emailProvider, err := buildEmailProvider(ctx, cfg)
	if err != nil {
		logrus.Fatalf("Failed to build email provider: %v", err)
	}

	// The delivery log is optional; without MYSQL_DSN outcomes are only logged.
	var recorder queue.DeliveryRecorder
	if cfg.MySQLDSN != "" {
		var db *sql.DB
		db, err = openDB(cfg)
		if err != nil {
			logrus.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		recorder = repository.NewDeliveryLogRepository(db)
	}

	log := logrus.WithField("consumer", consumerName)

	mailRenderer := renderer.New(cfg.MailFrom, cfg.SiteBaseURL)
	mailOpts := []service.MailOption{
		service.WithSendConcurrency(cfg.SendConcurrency),
		service.WithSendTimeout(cfg.SendTimeout),
		service.WithMailLogger(log),
	}
	consumerOpts := []queue.ConsumerOption{queue.WithLogger(log)}
	if recorder != nil {
		mailOpts = append(mailOpts, service.WithMailRecorder(recorder))
		consumerOpts = append(consumerOpts, queue.WithRecorder(recorder))
	}
	mailService := service.NewMailService(mailRenderer, emailProvider, mailOpts...)

	consumer := queue.NewConsumer(rdb, mailService, consumerName, queue.ConsumerConfig{
		Stream:           cfg.QueueStream,
		Group:            cfg.QueueGroup,
		DeadLetterStream: cfg.QueueDeadLetterStream,
		BatchSize:        cfg.QueueBatchSize,
		Block:            cfg.QueueBlock,
		MaxDeliveries:    cfg.QueueMaxDeliveries,
		ClaimIdle:        cfg.QueueClaimIdle,
		ReclaimInterval:  cfg.QueueReclaimInterval,
	}, consumerOpts...)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		logrus.Info("Received shutdown signal, stopping consumer...")
		cancel()
	}()

	if err := consumer.Run(ctx); err != nil {
		logrus.Fatalf("Consumer error: %v", err)
	}

	logrus.Info("Consumer stopped")
}
