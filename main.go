package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"inua-fund-server/config"
	"inua-fund-server/handlers"
	"inua-fund-server/handlers/auth"
	"inua-fund-server/handlers/campaigns"
	"inua-fund-server/handlers/donations"
	"inua-fund-server/handlers/notifications"
	"inua-fund-server/handlers/payments"
	"inua-fund-server/metrics"
	"inua-fund-server/migrations"
	"inua-fund-server/mpesa"
	"inua-fund-server/seed"
	"inua-fund-server/store"
	"inua-fund-server/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	log := utils.NewLogger("inua-fund-server", cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	if cfg.MpesaConsumerKey == "" || cfg.MpesaConsumerSecret == "" {
		log.Warn("MPESA_CONSUMER_KEY or MPESA_CONSUMER_SECRET is not set; STK pushes will fail to authenticate")
	}

	db, err := utils.ConnectDatabase(cfg.DSN(), log)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := migrations.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Seed Initial Data
	if err := seed.SeedCampaign(context.Background(), db, log); err != nil {
		log.Fatalf("Failed to seed campaign: %v", err)
	}

	intents := newIntentStore(cfg, log)

	var events donations.EventPublisher
	if cfg.NATSURL != "" {
		publisher, err := utils.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.WithError(err).Warn("Donation events disabled")
		} else {
			defer publisher.Close()
			events = publisher
		}
	}

	r := newRouter(cfg, log, db, intents, events, newNotifier(cfg, log), mpesa.NewClient(cfg.MpesaConfig(), log))

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		log.WithFields(logrus.Fields{"port": cfg.Port, "mpesa_base_url": cfg.MpesaBaseURL}).Info("Server starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to run server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
}

func newRouter(
	cfg *config.Config,
	log *logrus.Logger,
	db *gorm.DB,
	intents store.IntentStore,
	events donations.EventPublisher,
	notifier donations.Notifier,
	gateway payments.Gateway,
) *gin.Engine {
	r := gin.New()
	// CheckoutRequestIDs are matched on the escaped path and then unescaped.
	r.UseRawPath = true
	r.UnescapePathValues = true
	r.Use(gin.Recovery(), handlers.RequestID(), handlers.RequestLogger(log), metrics.Middleware())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSAllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", handlers.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", handlers.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", metrics.Handler())

	api := r.Group("/api")
	payments.NewHandler(gateway, intents, log).RegisterRoutes(api)
	donations.NewHandler(donations.Deps{
		Donations: store.NewDonationStore(db),
		Intents:   intents,
		Events:    events,
		Notifier:  notifier,
		Log:       log,
	}).RegisterRoutes(api, auth.AdminMiddleware([]byte(cfg.JWTSecret)))
	campaigns.RegisterCampaignsRoutes(api, store.NewCampaignStore(db), log)

	return r
}

func newIntentStore(cfg *config.Config, log *logrus.Logger) store.IntentStore {
	if cfg.RedisURL == "" {
		return store.NewMemoryIntentStore(store.DefaultIntentTTL)
	}
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		log.Fatalf("Invalid REDIS_URL: %v", err)
	}
	return store.NewRedisIntentStore(redis.NewClient(opts), store.DefaultIntentTTL)
}

// newNotifier leaves a channel nil when its settings are missing.
func newNotifier(cfg *config.Config, log *logrus.Logger) donations.Notifier {
	var email notifications.EmailSender
	if cfg.SMTPHost != "" && cfg.SMTPSender != "" {
		email = utils.NewMailer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.SMTPSender)
	}
	var whatsapp notifications.MessageSender
	if cfg.WatiURL != "" && cfg.WatiAPIKey != "" {
		whatsapp = utils.NewWatiClient(cfg.WatiURL, cfg.WatiAPIKey)
	}
	if email == nil && whatsapp == nil {
		return nil
	}
	return notifications.NewDonorNotifier(email, whatsapp, log)
}
