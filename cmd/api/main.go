package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lumen-lms-api/internal/config"
	"github.com/noah-isme/lumen-lms-api/internal/database"
	"github.com/noah-isme/lumen-lms-api/internal/handler"
	"github.com/noah-isme/lumen-lms-api/internal/middleware"
	"github.com/noah-isme/lumen-lms-api/internal/models"
	"github.com/noah-isme/lumen-lms-api/internal/repository"
	"github.com/noah-isme/lumen-lms-api/internal/router"
	"github.com/noah-isme/lumen-lms-api/internal/service"
	"github.com/noah-isme/lumen-lms-api/pkg/ai"
	"github.com/noah-isme/lumen-lms-api/pkg/judge"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	db, err := database.ConnectPostgres(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(
		&models.Student{},
		&models.Assignment{},
		&models.AssignmentQuestion{},
		&models.CodeQuestion{},
		&models.TestCase{},
		&models.Submission{},
		&models.SubmissionGrade{},
		&models.CodeSubmission{},
		&models.CodeSubmissionResult{},
	); err != nil {
		log.Fatalf("failed to migrate database: %v", err)
	}

	redisClient, err := database.ConnectRedis(cfg.RedisURL)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	judgeClient, err := judge.NewClient(judge.Config{
		BaseURL:      cfg.JudgeAPIURL,
		APIKey:       cfg.JudgeAPIKey,
		PollInterval: cfg.JudgePollInterval,
		PollAttempts: cfg.JudgePollAttempts,
		Logger:       logger,
	})
	if err != nil {
		log.Fatalf("failed to create judge client: %v", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())

	assignmentRepo := repository.NewAssignmentRepository(db)
	questionRepo := repository.NewQuestionRepository(db)
	submissionRepo := repository.NewSubmissionRepository(db)

	var events service.GradeEventPublisher
	if cfg.NATSURL != "" {
		natsConn, err := database.ConnectNATS(cfg.NATSURL)
		if err != nil {
			log.Fatalf("failed to connect to nats: %v", err)
		}
		defer natsConn.Drain()
		events = service.NewNATSGradePublisher(natsConn, logger)
	}

	drafter := newDrafter(cfg, logger)

	evaluationService := service.NewEvaluationService(questionRepo, submissionRepo, judgeClient, validate, logger)
	submissionService := service.NewSubmissionService(submissionRepo, assignmentRepo, evaluationService, validate, logger)
	gradingService := service.NewGradingService(submissionRepo, drafter, cfg.AIProvider, events, validate, logger)
	progressService := service.NewProgressService(assignmentRepo, submissionRepo, redisClient, cfg.ProgressCacheTTL, logger)

	submissionHandler := handler.NewSubmissionHandler(submissionService, cfg, logger)
	gradingHandler := handler.NewGradingHandler(gradingService, cfg.GraderWebhookSecret, logger)
	judgeHandler := handler.NewJudgeHandler(evaluationService, cfg, logger)
	progressHandler := handler.NewProgressHandler(progressService, logger)

	app := fiber.New(fiber.Config{
		AppName:      cfg.AppName,
		ServerHeader: cfg.AppName,
	})

	middleware.Register(app, middleware.Config{Logger: &logger})
	router.Register(app, cfg, router.Dependencies{
		SubmissionHandler: submissionHandler,
		GradingHandler:    gradingHandler,
		JudgeHandler:      judgeHandler,
		ProgressHandler:   progressHandler,
		JWTMiddleware:     middleware.JWTProtected(cfg.JWTSecret),
	})

	go func() {
		if err := app.Listen(cfg.HTTPAddress()); err != nil {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	waitForShutdown(app)
}

func newDrafter(cfg config.Config, logger zerolog.Logger) ai.Drafter {
	switch cfg.AIProvider {
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil
		}
		drafter, err := ai.NewOpenAIDrafter(ai.OpenAIConfig{APIKey: cfg.OpenAIAPIKey, Logger: logger})
		if err != nil {
			logger.Warn().Err(err).Msg("openai drafter unavailable")
			return nil
		}
		return drafter
	case "anthropic":
		drafter, err := ai.NewAnthropicDrafter(ai.AnthropicConfig{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			logger.Warn().Err(err).Msg("anthropic drafter unavailable")
			return nil
		}
		return drafter
	default:
		return nil
	}
}

func waitForShutdown(app *fiber.App) {
	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-shutdownCtx.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	log.Println("server stopped")
}
