package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/F1H444/si-kalori-sub000/config"
	"github.com/F1H444/si-kalori-sub000/controllers"
	"github.com/F1H444/si-kalori-sub000/routes"
	"github.com/F1H444/si-kalori-sub000/services"
	"github.com/F1H444/si-kalori-sub000/utils"

	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

func main() {
	boot := logrus.New()
	cfg, err := config.Load(boot)
	if err != nil {
		boot.WithError(err).Fatal("configuration error")
	}
	log := config.NewLogger(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := config.InitDB(cfg.DSN())
	if err != nil {
		log.WithError(err).Fatal("database unavailable")
	}

	calc, err := config.LoadCalculator(cfg.CalculatorConfig)
	if err != nil {
		log.WithError(err).Fatal("calculator config")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(reg)
	loc := cfg.Location()

	// Redis is optional; quotas fall back to process memory
	var rdb *redis.Client
	if cfg.RedisAddr != "" {
		rdb = config.NewRedisClient(cfg)
		if err := config.PingRedis(ctx, rdb); err != nil {
			log.WithError(err).Warn("Redis unavailable, scan quotas kept in memory")
			rdb = nil
		}
	}

	awsCfg, err := config.LoadAWS(ctx, cfg.AWSRegion)
	if err != nil {
		log.WithError(err).Fatal("aws config")
	}
	mailer := utils.NewSESMailer(awsCfg, cfg.SESEmail)

	var store services.ImageStore
	if cfg.S3Bucket != "" {
		store = utils.NewS3Store(awsCfg, cfg.S3Bucket, cfg.CloudFrontURL)
	}
	var labeler services.ImageLabeler
	if cfg.UseRekognition {
		labeler = services.NewRekognitionService(awsCfg)
	}

	gemini, err := services.NewGeminiService(ctx, cfg.GeminiAPIKey, cfg.GeminiModel, cfg.GCPProject,
		services.NewAICache(10_000, cfg.AICacheTTL), metrics, log.WithField("component", "gemini"))
	if err != nil {
		log.WithError(err).Fatal("gemini client")
	}

	hub := services.NewRealtimeHub(metrics)
	push := services.NewPushService(db, sns.NewFromConfig(awsCfg), cfg.SNSFCMArn, log.WithField("component", "push"))
	bus := services.NewEventBus(db, hub, push, log.WithField("component", "events"))

	authSvc := services.NewAuthService(db, mailer, cfg.JWTSecret, cfg.JWTTTL, cfg.AdminPasswordHash, log.WithField("component", "auth"))
	profileSvc := services.NewProfileService(db, calc, metrics, log.WithField("component", "profile"))
	quota := services.NewQuotaService(rdb, cfg.FreeDailyScans, loc, metrics, log.WithField("component", "quota"))
	scanSvc := services.NewScanService(db, gemini, labeler, store, quota, bus, metrics, log.WithField("component", "scan"))
	historySvc := services.NewHistoryService(db, loc)
	recSvc := services.NewRecService(db, gemini, loc)
	gateway := services.NewMidtransGateway(cfg.MidtransServerKey, cfg.MidtransProduction)
	paymentSvc := services.NewPaymentService(db, gateway, cfg.MidtransServerKey, cfg.PremiumPriceIDR, cfg.PremiumDays, bus, metrics, log.WithField("component", "payment"))
	contactSvc := services.NewContactService(db, mailer, cfg.ContactInbox, log.WithField("component", "contact"))
	adminSvc := services.NewAdminService(db, loc, log.WithField("component", "admin"))

	r := routes.SetupRouter(&routes.Handlers{
		Auth:     controllers.NewAuthController(authSvc),
		User:     controllers.NewUserController(profileSvc),
		Scan:     controllers.NewScanController(scanSvc),
		History:  controllers.NewHistoryController(historySvc, loc),
		Recs:     controllers.NewRecommendationController(recSvc),
		Payment:  controllers.NewPaymentController(paymentSvc, cfg.MidtransClientKey),
		Device:   controllers.NewDeviceController(push, bus),
		Realtime: controllers.NewRealtimeController(hub),
		Contact:  controllers.NewContactController(contactSvc),
		Admin:    controllers.NewAdminController(adminSvc, loc),
	}, []byte(cfg.JWTSecret), reg, log)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("port", cfg.Port).Info("SI KALORI API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Fatal("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("graceful shutdown failed")
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	log.Info("server stopped")
}
