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

// JudgeHandler exposes ad-hoc code execution against the judge backend.
type JudgeHandler struct {
	service service.EvaluationService
	dev     bool
	logger  zerolog.Logger
}

// NewJudgeHandler builds a judge handler instance.
func NewJudgeHandler(service service.EvaluationService, cfg config.Config, logger zerolog.Logger) *JudgeHandler {
	return &JudgeHandler{
		service: service,
		dev:     cfg.IsDevelopment(),
		logger:  logger.With().Str("component", "judge_handler").Logger(),
	}
}

// Register attaches the route to the provided router group.
func (h *JudgeHandler) Register(router fiber.Router) {
	router.Post("", h.run)
}

// run executes source once against provided stdin, or against a question's
// sample cases when question_id is set.
func (h *JudgeHandler) run(c *fiber.Ctx) error {
	var payload dto.JudgeRunRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	if payload.QuestionID != nil {
		runs, err := h.service.RunSamples(c.UserContext(), payload)
		if err != nil {
			return h.handleError(c, err)
		}
		return utils.SendSuccess(c, "sample cases executed", runs)
	}

	result, err := h.service.RunSingle(c.UserContext(), payload)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "code executed", result)
}

func (h *JudgeHandler) handleError(c *fiber.Ctx, err error) error {
	var upstream *judge.UpstreamError
	switch {
	case errors.Is(err, service.ErrQuestionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "question not found")
	case errors.Is(err, judge.ErrUnsupportedLanguage):
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
