// Command notifier consumes deposit release events and delivers the guest
// notifications: email on one queue, in-app plus SMS on the other.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/carshare-deposits/internal/config"
	"github.com/iliyamo/carshare-deposits/internal/database"
	"github.com/iliyamo/carshare-deposits/internal/notify"
	"github.com/iliyamo/carshare-deposits/internal/queue"
	"github.com/iliyamo/carshare-deposits/internal/repository"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadNotifier()
	config.SetupLogger(cfg.Env)

	db, err := database.Open(database.Options{
		User: cfg.DBUser, Pass: cfg.DBPass,
		Host: cfg.DBHost, Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("connect database")
	}
	defer db.Close()

	email := notify.NewEmailSender(notify.SMTPConfig(cfg.SMTP))
	sms := notify.NewSMSSender(repository.NewNotificationRepo(db), cfg.SMSWebhookURL, cfg.SMSTimeout)

	consumers := []*queue.Consumer{
		{URL: cfg.AMQPURL, Queue: queue.QueueDepositReleasedEmail, Handle: email.Send, MaxAttempts: cfg.ConsumeAttempts, RetryDelay: cfg.RetryDelay},
		{URL: cfg.AMQPURL, Queue: queue.QueueDepositReleasedSMS, Handle: sms.Send, MaxAttempts: cfg.ConsumeAttempts, RetryDelay: cfg.RetryDelay},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	for _, c := range consumers {
		wg.Add(1)
		go func(c *queue.Consumer) {
			defer wg.Done()
			log.Info().Str("queue", c.Queue).Msg("consumer started")
			if err := c.Run(ctx); err != nil && ctx.Err() == nil {
				log.Error().Err(err).Str("queue", c.Queue).Msg("consumer stopped")
			}
		}(c)
	}
	wg.Wait()
	log.Info().Msg("notifier stopped")
}
