package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-seat-booking/internal/config"
	"github.com/iliyamo/event-seat-booking/internal/logging"
	"github.com/iliyamo/event-seat-booking/internal/queue"
)

func main() {
	_ = godotenv.Load()
	cfg := config.LoadNotifier()
	logging.Init(cfg.LogLevel, cfg.LogFormat)
	log := logrus.WithField("component", "notifier")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.LogFile), 0o755); err != nil {
			log.WithError(err).Fatal("cannot create notification log directory")
		}
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			log.WithError(err).Fatal("cannot open notification log")
		}
		defer f.Close()
		out = f
	}

	c := queue.NewConsumer(cfg.RabbitMQURL, cfg.Queue, queue.WriterHandler(out))
	if err := c.Run(logging.ToContext(ctx, log)); err != nil {
		log.WithError(err).Error("consumer stopped")
		os.Exit(1)
	}
	log.Info("consumer stopped")
}
