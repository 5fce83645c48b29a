package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"Walcord/internal/config"
	"Walcord/internal/feed"
	"Walcord/internal/handler"
	"Walcord/internal/logger"
	"Walcord/internal/pkg"
	"Walcord/internal/repository/mysql"
	"Walcord/internal/repository/redis"
	"Walcord/internal/router"
	"Walcord/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("load config")
	}
	logger.Init(cfg.LogLevel, cfg.LogFormat)
	if cfg.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	log := logger.For(ctx)

	shutdownTracing, err := initTracing(ctx, cfg)
	if err != nil {
		log.WithError(err).Fatal("init tracing")
	}
	defer func() {
		c, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = shutdownTracing(c)
	}()

	if err := mysql.InitDB(cfg.MySQLDSN); err != nil {
		log.WithError(err).Fatal("connect mysql")
	}
	// 自动建表和 feed 视图
	if err := mysql.Migrate(mysql.DB); err != nil {
		log.WithError(err).Fatal("migrate")
	}

	// 连接redis
	if err := redis.Init(ctx, redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}); err != nil {
		log.WithError(err).Fatal("connect redis")
	}
	defer func() { _ = redis.Close() }()

	producer := pkg.NewKafkaProducer(pkg.KafkaConfig{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic})
	defer func() { _ = producer.Close() }()

	storage, err := pkg.NewStorage(pkg.StorageConfig{
		Endpoint:  cfg.MinIO.Endpoint,
		AccessKey: cfg.MinIO.AccessKey,
		SecretKey: cfg.MinIO.SecretKey,
		Bucket:    cfg.MinIO.Bucket,
		Region:    cfg.MinIO.Region,
		UseSSL:    cfg.MinIO.UseSSL,
		PublicURL: cfg.MinIO.PublicURL,
	})
	if err != nil {
		log.WithError(err).Fatal("init storage")
	}
	if err := storage.EnsureBucket(ctx); err != nil {
		// 上传不可用，但 feed 仍然可以读
		log.WithError(err).Warn("ensure bucket failed")
	}

	db, rdb := mysql.DB, redis.Client
	users := &mysql.UserRepository{DB: db}

	emailSvc := service.NewEmailService(pkg.NewMailer(pkg.SMTPConfig{
		Host:     cfg.SMTP.Host,
		Port:     cfg.SMTP.Port,
		Username: cfg.SMTP.Username,
		Password: cfg.SMTP.Password,
		From:     cfg.SMTP.From,
	}), redis.NewEmailRepository(rdb))
	jwt := pkg.NewJWT(pkg.JWTConfig{
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
	})
	userSvc := service.NewUserService(users, redis.NewTokenRepository(rdb, cfg.JWT.AccessTTL), jwt, emailSvc)
	followSvc := service.NewFollowService(&mysql.FollowRepository{DB: db}, users)
	friendSvc := service.NewFriendshipService(&mysql.FriendshipRepository{DB: db}, users)
	interactionSvc := service.NewInteractionService(&mysql.InteractionRepository{DB: db}, redis.NewCountCache(rdb), redis.NewDistLock(rdb))
	contentSvc := service.NewContentService(&mysql.ContentRepository{DB: db}, storage)
	feedSvc := service.NewFeedService(
		&mysql.GraphRepository{DB: db},
		mysql.NewFeedRepository(db, feed.KindConcert),
		mysql.NewFeedRepository(db, feed.KindMemory),
		service.FeedOptions{
			SessionTTL:           cfg.Feed.SessionTTL,
			PrefetchMargin:       cfg.Feed.PrefetchMargin,
			MaxSessionsPerClient: cfg.Feed.MaxSessionsPerClient,
			Overrides:            cfg.Feed.Surfaces,
			URLResolver:          storage.URL,
		},
	)

	relayer := service.NewOutboxRelayer(&mysql.OutboxRepository{DB: db}, service.KafkaSender(producer), cfg.Kafka.OutboxBatch, cfg.Kafka.OutboxInterval)
	reconciler := service.NewFollowCountReconciler(&mysql.FollowCountReconcilerRepo{DB: db}, cfg.Kafka.ReconcileInterval)

	r := router.InitRouter(router.Handlers{
		User:        handler.NewUserHandler(userSvc),
		Email:       handler.NewEmailHandler(emailSvc),
		Follow:      handler.NewFollowHandler(followSvc),
		Friendship:  handler.NewFriendshipHandler(friendSvc),
		Interaction: handler.NewInteractionHandler(interactionSvc),
		Content:     handler.NewContentHandler(contentSvc),
		Feed:        handler.NewFeedHandler(feedSvc),
		Health: func(ctx context.Context) error {
			if err := mysql.Ping(ctx); err != nil {
				return err
			}
			return redis.Ping(ctx)
		},
	}, userSvc)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           otelhttp.NewHandler(r, "walcord.http"),
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { relayer.Run(gctx); return nil })
	g.Go(func() error { reconciler.Run(gctx); return nil })
	g.Go(func() error { feedSvc.RunEvictor(gctx, time.Minute); return nil })
	g.Go(func() error {
		log.WithField("addr", cfg.HTTPAddr).Info("walcord api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		c, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(c)
	})

	if err := g.Wait(); err != nil {
		log.WithError(err).Error("server exited")
	}
	log.Info("shutdown complete")
}
