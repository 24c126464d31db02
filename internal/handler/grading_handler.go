package handler

import (
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lumen-lms-api/internal/dto"
	"github.com/noah-isme/lumen-lms-api/internal/service"
	"github.com/noah-isme/lumen-lms-api/internal/utils"
)

// GradingHandler exposes manual grading, webhook grading and feedback drafting.
type GradingHandler struct {
	service       service.GradingService
	webhookSecret string
	logger        zerolog.Logger
}

// NewGradingHandler builds a grading handler instance.
func NewGradingHandler(service service.GradingService, webhookSecret string, logger zerolog.Logger) *GradingHandler {
	return &GradingHandler{
		service:       service,
		webhookSecret: webhookSecret,
		logger:        logger.With().Str("component", "grading_handler").Logger(),
	}
}

// Register attaches the authenticated grading routes.
func (h *GradingHandler) Register(router fiber.Router) {
	router.Post("/grade", h.grade)
	router.Post("/:id/feedback-draft", h.draftFeedback)
}

// RegisterWebhook attaches the unauthenticated grader callback route.
func (h *GradingHandler) RegisterWebhook(router fiber.Router) {
	router.Post("/webhook", h.webhook)
}

func (h *GradingHandler) grade(c *fiber.Ctx) error {
	var payload dto.GradeRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	graderID := userIDFromContext(c)
	if graderID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	submission, err := h.service.Grade(c.UserContext(), graderID, userRoleFromContext(c), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission graded", submission)
}

func (h *GradingHandler) webhook(c *fiber.Ctx) error {
	if h.webhookSecret != "" {
		provided := strings.TrimSpace(c.Get("X-Grader-Secret"))
		if subtle.ConstantTimeCompare([]byte(provided), []byte(h.webhookSecret)) != 1 {
			return utils.SendError(c, fiber.StatusUnauthorized, "invalid webhook secret")
		}
	}

	var payload dto.GraderWebhookRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if err := h.service.HandleWebhook(c.UserContext(), payload); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "webhook processed", nil)
}

func (h *GradingHandler) draftFeedback(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	draft, err := h.service.DraftFeedback(c.UserContext(), id, userRoleFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "feedback drafted", draft)
}

func (h *GradingHandler) handleError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrScoreExceedsMax):
		return utils.SendError(c, fiber.StatusBadRequest, "score exceeds assignment max score")
	case errors.Is(err, service.ErrGradingForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrDrafterUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "feedback drafting not configured")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
