package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"gopkg.in/DataDog/dd-trace-go.v1/ddtrace/tracer"

	"github.com/tazhibayda/profile-service/internal/config"
	plog "github.com/tazhibayda/profile-service/internal/log"
	"github.com/tazhibayda/profile-service/internal/mail"
	"github.com/tazhibayda/profile-service/internal/notify"
	"github.com/tazhibayda/profile-service/internal/queue"
	"github.com/tazhibayda/profile-service/internal/repo"
)

func main() {
	cfg := config.LoadNotifier()

	lg, err := plog.Init(cfg.Env == "prod")
	if err != nil {
		panic(err)
	}
	defer lg.Sync()

	tracer.Start(tracer.WithService("profile-notifier"), tracer.WithEnv(cfg.Env), tracer.WithLogStartup(false))
	defer tracer.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	store, err := repo.NewStore(connectCtx, cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		lg.Fatal("mongo connect", zap.Error(err))
	}
	defer store.Close(context.Background())

	cons, err := queue.NewConsumer(cfg.RabbitURL, cfg.Exchange, cfg.Queue, cfg.BindKey)
	if err != nil {
		lg.Fatal("rabbit consumer init failed", zap.Error(err)) // <- не даём программе идти дальше
	}
	defer cons.Close()

	h := notify.NewHandler(
		repo.NewMongoMetadataStore(store, cfg.MetadataCollection),
		mail.NewSender(lg),
		lg,
	)

	lg.Info("profile-notifier up",
		zap.String("exchange", cfg.Exchange),
		zap.String("queue", cfg.Queue),
		zap.String("key", cfg.BindKey),
		zap.Int("workers", cfg.Concurrency),
	)

	if err := cons.Consume(ctx, cfg.Concurrency, h.Handle); err != nil {
		lg.Fatal("consumer stopped", zap.Error(err))
	}
}
