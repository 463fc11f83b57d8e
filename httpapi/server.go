package httpapi

import (
	"errors"

	"github.com/gofiber/fiber/v3"
	"github.com/rs/zerolog"

	"github.com/nuvio/autoflow"
	"github.com/nuvio/autoflow/engine"
)

// Server exposes the workflow engine over HTTP
type Server struct {
	engine *engine.Engine
	logger zerolog.Logger
}

// NewServer creates a new HTTP API server around the given engine
func NewServer(eng *engine.Engine, logger zerolog.Logger) *Server {
	return &Server{
		engine: eng,
		logger: logger,
	}
}

// RegisterRoutes registers all HTTP routes on the given app
func (s *Server) RegisterRoutes(app *fiber.App) {
	// Health check endpoint
	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":  "healthy",
			"service": "autoflow",
		})
	})

	v1 := app.Group("/api/v1")

	workflows := v1.Group("/workflows")
	workflows.Post("/", s.handleCreateWorkflow)
	workflows.Get("/", s.handleListWorkflows)
	workflows.Get("/:workflowId", s.handleGetWorkflow)
	workflows.Put("/:workflowId", s.handleUpdateWorkflow)
	workflows.Delete("/:workflowId", s.handleDeleteWorkflow)
	workflows.Post("/:workflowId/activate", s.handleActivateWorkflow)
	workflows.Post("/:workflowId/deactivate", s.handleDeactivateWorkflow)
	workflows.Post("/:workflowId/execute", s.handleExecuteWorkflow)
	workflows.Get("/:workflowId/executions", s.handleListExecutions)

	executions := v1.Group("/executions")
	executions.Get("/:executionId", s.handleGetExecution)
	executions.Post("/:executionId/cancel", s.handleCancelExecution)

	v1.Post("/events", s.handleEvent)
}

// errorResponse maps engine errors to HTTP status codes
func (s *Server) errorResponse(c fiber.Ctx, err error) error {
	var verr *autoflow.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error":  "Workflow validation failed",
			"issues": verr.Issues,
		})
	}
	if autoflow.IsNotFound(err) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": err.Error(),
		})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": err.Error(),
	})
}

func (s *Server) handleCreateWorkflow(c fiber.Ctx) error {
	var def autoflow.WorkflowDefinition
	if err := c.Bind().JSON(&def); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	created, err := s.engine.CreateWorkflow(c.Context(), &def)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to create workflow")
		return s.errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (s *Server) handleListWorkflows(c fiber.Ctx) error {
	filter := autoflow.WorkflowFilter{
		Category: c.Query("category"),
	}
	if status := c.Query("status"); status != "" {
		ws := autoflow.WorkflowStatus(status)
		filter.Status = &ws
	}

	defs, err := s.engine.ListWorkflows(c.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list workflows")
		return s.errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"workflows": defs})
}

func (s *Server) handleGetWorkflow(c fiber.Ctx) error {
	def, err := s.engine.GetWorkflow(c.Context(), c.Params("workflowId"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(def)
}

func (s *Server) handleUpdateWorkflow(c fiber.Ctx) error {
	var def autoflow.WorkflowDefinition
	if err := c.Bind().JSON(&def); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}
	workflowID := c.Params("workflowId")

	updated, err := s.engine.UpdateWorkflow(c.Context(), workflowID, &def)
	if err != nil {
		s.logger.Error().Err(err).Str("workflowId", workflowID).Msg("Failed to update workflow")
		return s.errorResponse(c, err)
	}

	return c.JSON(updated)
}

func (s *Server) handleDeleteWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")
	if err := s.engine.DeleteWorkflow(c.Context(), workflowID); err != nil {
		s.logger.Error().Err(err).Str("workflowId", workflowID).Msg("Failed to delete workflow")
		return s.errorResponse(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) handleActivateWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")
	if err := s.engine.ActivateWorkflow(c.Context(), workflowID); err != nil {
		s.logger.Error().Err(err).Str("workflowId", workflowID).Msg("Failed to activate workflow")
		return s.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"workflowId": workflowID,
		"status":     autoflow.WorkflowStatusActive,
	})
}

func (s *Server) handleDeactivateWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")
	if err := s.engine.DeactivateWorkflow(c.Context(), workflowID); err != nil {
		s.logger.Error().Err(err).Str("workflowId", workflowID).Msg("Failed to deactivate workflow")
		return s.errorResponse(c, err)
	}
	return c.JSON(fiber.Map{
		"workflowId": workflowID,
		"status":     autoflow.WorkflowStatusInactive,
	})
}

func (s *Server) handleExecuteWorkflow(c fiber.Ctx) error {
	workflowID := c.Params("workflowId")

	var payload map[string]any
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&payload); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	executionID, err := s.engine.Execute(c.Context(), workflowID, payload)
	if err != nil {
		s.logger.Error().Err(err).Str("workflowId", workflowID).Msg("Failed to start execution")
		return s.errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"executionId": executionID,
		"status":      autoflow.ExecutionStatusQueued,
	})
}

func (s *Server) handleListExecutions(c fiber.Ctx) error {
	filter := autoflow.ExecutionFilter{
		WorkflowID: c.Params("workflowId"),
	}
	if status := c.Query("status"); status != "" {
		es := autoflow.ExecutionStatus(status)
		filter.Status = &es
	}

	execs, err := s.engine.ListExecutions(c.Context(), filter)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to list executions")
		return s.errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"executions": execs})
}

func (s *Server) handleGetExecution(c fiber.Ctx) error {
	snapshot, err := s.engine.GetExecutionSnapshot(c.Context(), c.Params("executionId"))
	if err != nil {
		return s.errorResponse(c, err)
	}
	return c.JSON(snapshot)
}

func (s *Server) handleCancelExecution(c fiber.Ctx) error {
	executionID := c.Params("executionId")

	if err := s.engine.CancelExecution(c.Context(), executionID); err != nil {
		s.logger.Error().Err(err).Str("executionId", executionID).Msg("Failed to cancel execution")
		return s.errorResponse(c, err)
	}

	return c.JSON(fiber.Map{
		"executionId": executionID,
		"status":      autoflow.ExecutionStatusCancelled,
	})
}

// handleEvent fans an external event out to every matching active workflow
func (s *Server) handleEvent(c fiber.Ctx) error {
	var payload map[string]any
	if err := c.Bind().JSON(&payload); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	executionIDs, err := s.engine.HandleEvent(c.Context(), payload)
	if err != nil {
		s.logger.Error().Err(err).Msg("Failed to handle event")
		return s.errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"executionIds": executionIDs,
	})
}
