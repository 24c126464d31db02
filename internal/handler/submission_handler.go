package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/lumen-lms-api/internal/config"
	"github.com/noah-isme/lumen-lms-api/internal/dto"
	"github.com/noah-isme/lumen-lms-api/internal/service"
	"github.com/noah-isme/lumen-lms-api/internal/utils"
	"github.com/noah-isme/lumen-lms-api/pkg/judge"
)

// SubmissionHandler manages code submission endpoints.
type SubmissionHandler struct {
	service service.SubmissionService
	dev     bool
	logger  zerolog.Logger
}

// NewSubmissionHandler builds a submission handler instance.
func NewSubmissionHandler(service service.SubmissionService, cfg config.Config, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		dev:     cfg.IsDevelopment(),
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register attaches the routes shared by owners and graders.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("/:id", h.get)
}

// RegisterStudent attaches the code submission route.
func (h *SubmissionHandler) RegisterStudent(router fiber.Router) {
	router.Post("/code", h.submitCode)
}

// RegisterFaculty attaches the re-evaluation route for graders.
func (h *SubmissionHandler) RegisterFaculty(router fiber.Router) {
	router.Post("/:id/evaluate", h.evaluate)
}

func (h *SubmissionHandler) submitCode(c *fiber.Ctx) error {
	var payload dto.CodeSubmitRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	studentID := userIDFromContext(c)
	if studentID == 0 {
		return utils.SendError(c, fiber.StatusUnauthorized, "authentication required")
	}

	result, err := h.service.SubmitCode(c.UserContext(), studentID, payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "code submitted", result)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Get(c.UserContext(), id, userIDFromContext(c), userRoleFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) evaluate(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	}

	submission, err := h.service.Evaluate(c.UserContext(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission evaluated", submission)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var upstream *judge.UpstreamError
	switch {
	case errors.Is(err, service.ErrAssignmentNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "assignment not found")
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.Is(err, service.ErrSubmissionForbidden):
		return utils.SendError(c, fiber.StatusForbidden, "insufficient permissions")
	case errors.Is(err, service.ErrNotCodeAssignment):
		return utils.SendError(c, fiber.StatusBadRequest, "assignment does not accept code submissions")
	case errors.Is(err, service.ErrQuestionNotInAssignment):
		return utils.SendError(c, fiber.StatusBadRequest, "question does not belong to assignment")
	case errors.Is(err, service.ErrUnsupportedLanguage), errors.Is(err, judge.ErrUnsupportedLanguage):
		return utils.SendError(c, fiber.StatusBadRequest, "unsupported language")
	case errors.Is(err, judge.ErrPollTimeout):
		return utils.SendError(c, fiber.StatusGatewayTimeout, "evaluation timed out")
	case errors.As(err, &upstream):
		requestLogger(h.logger, c).Error().Err(err).Msg("judge backend error")
		if h.dev {
			return utils.SendErrorWithDetails(c, fiber.StatusBadGateway, "judge backend unavailable", upstream.Body)
		}
		return utils.SendError(c, fiber.StatusBadGateway, "judge backend unavailable")
	case isValidationError(err):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	default:
		requestLogger(h.logger, c).Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
