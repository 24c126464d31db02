package router

import (
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/noah-isme/lumen-lms-api/internal/config"
	"github.com/noah-isme/lumen-lms-api/internal/handler"
	"github.com/noah-isme/lumen-lms-api/internal/middleware"
	"github.com/noah-isme/lumen-lms-api/internal/models"
	"github.com/noah-isme/lumen-lms-api/internal/observability"
)

// Dependencies groups router dependencies for registration.
type Dependencies struct {
	SubmissionHandler *handler.SubmissionHandler
	GradingHandler    *handler.GradingHandler
	JudgeHandler      *handler.JudgeHandler
	ProgressHandler   *handler.ProgressHandler
	JWTMiddleware     fiber.Handler
}

// Register wires the HTTP routes into the fiber application.
func Register(app *fiber.App, cfg config.Config, deps Dependencies) {
	app.Get("/health", handler.HealthCheck(cfg))
	app.Get("/metrics", observability.MetricsHandler())

	api := app.Group("/api/v1", func(c *fiber.Ctx) error {
		c.Set("X-Application", cfg.AppName)
		return c.Next()
	})

	// Grader callbacks authenticate via shared secret, not JWT.
	if deps.GradingHandler != nil {
		grader := api.Group("/grader")
		deps.GradingHandler.RegisterWebhook(grader)
	}

	jwtMiddleware := deps.JWTMiddleware
	if jwtMiddleware == nil {
		jwtMiddleware = func(c *fiber.Ctx) error { return c.Next() }
	}

	requireGrader := middleware.RequireRole(models.RoleTA, models.RoleTeacher, models.RoleAdmin)

	if deps.SubmissionHandler != nil {
		submissions := api.Group("/submissions", jwtMiddleware)
		deps.SubmissionHandler.Register(submissions)

		// Only students submit code; staff review through the grading routes.
		student := api.Group("/submissions", jwtMiddleware, middleware.RequireRole(models.RoleStudent))
		deps.SubmissionHandler.RegisterStudent(student)

		faculty := api.Group("/submissions", jwtMiddleware, requireGrader)
		deps.SubmissionHandler.RegisterFaculty(faculty)
		if deps.GradingHandler != nil {
			deps.GradingHandler.Register(faculty)
		}
	}

	// Ad-hoc runs each occupy a judge worker for up to the polling budget,
	// so they are rate limited per user.
	if deps.JudgeHandler != nil {
		judgeGroup := api.Group("/judge", jwtMiddleware, middleware.RateLimit("judge", 10, time.Minute))
		deps.JudgeHandler.Register(judgeGroup)
	}

	if deps.ProgressHandler != nil {
		students := api.Group("/students", jwtMiddleware)
		deps.ProgressHandler.Register(students)
	}
}
