package main

import (
	"context"
	"net/http"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/lshigami/testcert/config"
	"github.com/lshigami/testcert/database"
	"github.com/lshigami/testcert/internal/cache"
	rediscache "github.com/lshigami/testcert/internal/cache/redis"
	"github.com/lshigami/testcert/internal/controller"
	adminctrl "github.com/lshigami/testcert/internal/controller/admin"
	userctrl "github.com/lshigami/testcert/internal/controller/user"
	"github.com/lshigami/testcert/internal/logger"
	"github.com/lshigami/testcert/internal/model"
	"github.com/lshigami/testcert/internal/repository"
	"github.com/lshigami/testcert/internal/service"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

// @title Assessment & Certification API
// @version 1.0
// @description Timed test sessions, deterministic scoring, proficiency classification and verifiable certificates.
// @contact.name API Support
// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
func main() {
	logger.Init()
	figure.NewFigure("TestCert", "", true).Print()

	app := fx.New(
		fx.Provide(
			config.NewConfig,
			database.NewDatabase,
			NewSessionCache,
			NewGinEngine,
		),

		// Repositories Layer
		fx.Provide(
			repository.NewTestRepository,
			repository.NewQuestionRepository,
			repository.NewTestAttemptRepository,
			repository.NewCertificateRepository,
			repository.NewAuditLogRepository,
		),

		// Services Layer
		fx.Provide(
			service.NewQuestionRandomizer,
			service.NewScoringService,
			service.NewProficiencyClassifier,
			service.NewPdfRenderer,
			service.NewQRCodeGenerator,
			service.NewFileStore,
			service.NewAuditLogService,
			NewNotifier,
			service.NewUserTestService,
			service.NewAdminTestService,
			func(
				testRepo repository.TestRepository,
				questionRepo repository.QuestionRepository,
				attemptRepo repository.TestAttemptRepository,
				sessions cache.SessionCache,
				randomizer service.QuestionRandomizer,
				scorer service.ScoringService,
				cfg *config.Config,
			) service.TestSessionService {
				return service.NewTestSessionService(testRepo, questionRepo, attemptRepo, sessions, randomizer, scorer, cfg)
			},
			func(
				attemptRepo repository.TestAttemptRepository,
				testRepo repository.TestRepository,
				certRepo repository.CertificateRepository,
				classifier service.ProficiencyClassifier,
				renderer service.PdfRenderer,
				qr service.QRCodeGenerator,
				files service.FileStore,
				audit service.AuditLogService,
				notifier service.Notifier,
				cfg *config.Config,
			) service.CertificateService {
				return service.NewCertificateService(attemptRepo, testRepo, certRepo, classifier, renderer, qr, files, audit, notifier, cfg)
			},
			service.NewSessionSweeper,
		),

		// API Controllers Layer
		fx.Provide(
			adminctrl.NewAdminTestController,
			adminctrl.NewAdminCertificateController,
			adminctrl.NewAdminSessionController,
			userctrl.NewUserTestController,
			userctrl.NewSessionController,
			userctrl.NewCertificateController,
		),

		fx.Invoke(logger.Configure),
		fx.Invoke(AutoMigrateDB),
		fx.Invoke(StartSessionSweeper),
		fx.Invoke(RegisterRoutesAndStartServer),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to start application")
	}

	<-app.Done()
	log.Info().Msg("Application shutting down gracefully...")
	stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(stopCtx); err != nil {
		log.Error().Err(err).Msg("Graceful shutdown failed")
	}
}

// NewSessionCache selects the session store from SESSION_STORE.
func NewSessionCache(lc fx.Lifecycle, cfg *config.Config) (cache.SessionCache, error) {
	if cfg.Session.Store == "memory" {
		log.Warn().Msg("Using in-memory session store; sessions are not shared between instances")
		return cache.NewMemorySessionCache(), nil
	}

	rdb := rediscache.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	sessions := rediscache.NewSessionCache(rdb)
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := sessions.Ping(ctx); err != nil {
				log.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("Redis is unreachable")
				return err
			}
			log.Info().Str("addr", cfg.Redis.Addr).Msg("Connected to Redis session store")
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return rdb.Close()
		},
	})
	return sessions, nil
}

func NewNotifier(lc fx.Lifecycle, cfg *config.Config) (service.Notifier, error) {
	notifier, err := service.NewNotifier(cfg)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return notifier.Close()
		},
	})
	return notifier, nil
}

func NewGinEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(controller.RequestID())
	r.Use(gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		log.Info().
			Interface("request_id", param.Keys[controller.RequestIDKey]).
			Str("client_ip", param.ClientIP).
			Str("method", param.Method).
			Str("path", param.Path).
			Int("status_code", param.StatusCode).
			Dur("latency", param.Latency).
			Str("user_agent", param.Request.UserAgent()).
			Str("error_message", param.ErrorMessage).
			Msg("gin_request")
		return ""
	}))
	r.Use(gin.Recovery())

	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", controller.RequestIDHeader},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition", controller.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// URL: http://localhost:PORT/swagger/index.html
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func StartSessionSweeper(lc fx.Lifecycle, sweeper *service.SessionSweeper) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			sweeper.Start()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			sweeper.Stop()
			return nil
		},
	})
}

// RegisterRoutesAndStartServer configures API routes and manages server lifecycle.
func RegisterRoutesAndStartServer(
	lc fx.Lifecycle,
	router *gin.Engine,
	cfg *config.Config,
	adminTestCtrl *adminctrl.AdminTestController,
	adminCertCtrl *adminctrl.AdminCertificateController,
	adminSessionCtrl *adminctrl.AdminSessionController,
	userTestCtrl *userctrl.UserTestController,
	sessionCtrl *userctrl.SessionController,
	certCtrl *userctrl.CertificateController,
) {
	adminAPIGroup := router.Group("/api/v1/admin")
	{
		tests := adminAPIGroup.Group("/tests")
		tests.POST("", adminTestCtrl.CreateTest)
		tests.GET("/:test_id", adminTestCtrl.GetTest)
		tests.POST("/:test_id/publish", adminTestCtrl.PublishTest)

		certificates := adminAPIGroup.Group("/certificates")
		certificates.POST("/:certificate_id/revoke", adminCertCtrl.RevokeCertificate)
		certificates.POST("/:certificate_id/restore", adminCertCtrl.RestoreCertificate)
		certificates.POST("/:certificate_id/regenerate", adminCertCtrl.RegenerateCertificate)
		certificates.POST("/:certificate_id/repair", adminCertCtrl.RepairCertificate)
		certificates.GET("/:certificate_id/audit", adminCertCtrl.GetAuditTrail)

		adminAPIGroup.POST("/sessions/cleanup", adminSessionCtrl.CleanupExpired)
	}

	userAPIGroup := router.Group("/api/v1")
	{
		userAPIGroup.GET("/tests", userTestCtrl.GetAllTests)
		userAPIGroup.GET("/tests/:test_id", userTestCtrl.GetTestDetails)
		userAPIGroup.GET("/tests/:test_id/attempts", userTestCtrl.GetTestAttempts)

		sessions := userAPIGroup.Group("/sessions")
		sessions.POST("", sessionCtrl.StartSession)
		sessions.GET("/:session_id", sessionCtrl.GetSession)
		sessions.GET("/:session_id/current-question", sessionCtrl.GetCurrentQuestion)
		sessions.PUT("/:session_id/answers", sessionCtrl.AnswerQuestion)
		sessions.POST("/:session_id/navigate", sessionCtrl.Navigate)
		sessions.GET("/:session_id/validity", sessionCtrl.GetValidity)
		sessions.GET("/:session_id/progress", sessionCtrl.GetProgress)
		sessions.POST("/:session_id/submit", sessionCtrl.SubmitSession)

		certificates := userAPIGroup.Group("/certificates")
		certificates.POST("", certCtrl.GenerateCertificate)
		certificates.GET("/verify/:code", controller.RateLimit(cfg.RateLimit.VerifyPerSecond, cfg.RateLimit.VerifyBurst), certCtrl.VerifyCertificate)
		certificates.GET("/:certificate_id", certCtrl.GetCertificate)
		certificates.GET("/:certificate_id/download", certCtrl.DownloadCertificate)

		userAPIGroup.GET("/users/:user_id/certificates", certCtrl.ListUserCertificates)
	}

	server := &http.Server{
		Addr:    ":" + cfg.Server.Port,
		Handler: router,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Info().Msgf("Assessment API server starting on port %s", cfg.Server.Port)
			log.Info().Msgf("Swagger UI available at http://localhost:%s/swagger/index.html", cfg.Server.Port)
			go func() {
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					log.Fatal().Err(err).Msg("Server ListenAndServe failed")
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Info().Msg("Server shutting down...")
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	})
}

func AutoMigrateDB(db *gorm.DB) error {
	log.Info().Msg("Running database migrations...")
	err := db.AutoMigrate(
		&model.Test{},
		&model.Question{},
		&model.TestAttempt{},
		&model.Certificate{},
		&model.CertificateAuditLog{},
	)
	if err != nil {
		log.Error().Err(err).Msg("Database migration failed")
		return err
	}
	log.Info().Msg("Database migration completed successfully.")
	return nil
}
