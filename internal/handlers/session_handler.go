package handlers

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/scio-practice/session-service/internal/export"
	"github.com/scio-practice/session-service/internal/grading"
	"github.com/scio-practice/session-service/internal/loader"
	"github.com/scio-practice/session-service/internal/models"
	"github.com/scio-practice/session-service/internal/session"
	"github.com/scio-practice/session-service/internal/utils"
	"github.com/scio-practice/session-service/internal/validator"
)

type SessionHandler struct {
	BaseHandler
	manager *session.Manager
}

type StartSessionRequest struct {
	Params    models.RouterParams `json:"params"`
	Questions []models.Question   `json:"questions,omitempty"`
}

type SetAnswerRequest struct {
	Selected []string `json:"selected"`
}

type SubmitRequest struct {
	Expired bool `json:"expired,omitempty"`
}

type ExplainRequest struct {
	Index int `json:"index"`
}

type BookmarkRequest struct {
	Bookmarked bool `json:"bookmarked"`
}

func NewSessionHandler(manager *session.Manager, logger utils.Logger) *SessionHandler {
	return &SessionHandler{
		BaseHandler: NewBaseHandler(logger),
		manager:     manager,
	}
}

// StartSession starts a new test session
// @Summary Start session
// @Description Resolves a question set for the given parameters and starts the countdown
// @Tags sessions
// @Accept json
// @Produce json
// @Param session body StartSessionRequest true "Session parameters"
// @Success 201 {object} session.Snapshot
// @Failure 400 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /sessions [post]
func (h *SessionHandler) StartSession(c *gin.Context) {
	var req StartSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetHeader("X-User-ID")
	userName := c.GetHeader("X-User-Name")
	if userID == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	ctrl, err := h.manager.StartSession(c.Request.Context(), userID, userName, req.Params, req.Questions)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}

	c.JSON(http.StatusCreated, ctrl.Snapshot())
}

// GetSession returns the current session state
// @Summary Get session
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id} [get]
func (h *SessionHandler) GetSession(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// Tick advances the countdown and reports crossed thresholds
// @Summary Tick session clock
// @Tags sessions
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} clock.TickResult
// @Failure 404 {object} ErrorResponse
// @Router /sessions/{id}/tick [post]
func (h *SessionHandler) Tick(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	c.JSON(http.StatusOK, ctrl.Tick(c.Request.Context()))
}

// SetAnswer records an answer for one question
// @Summary Set answer
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param index path int true "Question index"
// @Param answer body SetAnswerRequest true "Selected options or free response"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/answers/{index} [put]
func (h *SessionHandler) SetAnswer(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	index := ParseIndexParam(c, "index")
	if index < 0 {
		return
	}

	var req SetAnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := ctrl.SetAnswer(c.Request.Context(), index, req.Selected); err != nil {
		h.handleSessionError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer recorded", nil)
}

type ToggleOptionRequest struct {
	Option string `json:"option"`
}

// ToggleOption flips one option in the selection for a question
// @Summary Toggle option
// @Tags sessions
// @Accept json
// @Param id path string true "Session ID"
// @Param index path int true "Question index"
// @Param request body ToggleOptionRequest true "Option text"
// @Success 200 {object} SuccessResponse
// @Router /sessions/{id}/answers/{index}/toggle [post]
func (h *SessionHandler) ToggleOption(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	index := ParseIndexParam(c, "index")
	if index < 0 {
		return
	}

	var req ToggleOptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := ctrl.ToggleOption(c.Request.Context(), index, req.Option); err != nil {
		h.handleSessionError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Answer recorded", nil)
}

// Pause pauses the countdown
// @Summary Pause session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Router /sessions/{id}/pause [post]
func (h *SessionHandler) Pause(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	if err := ctrl.Pause(c.Request.Context()); err != nil {
		h.handleSessionError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Session paused", nil)
}

// Resume resumes a paused countdown
// @Summary Resume session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Router /sessions/{id}/resume [post]
func (h *SessionHandler) Resume(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	if err := ctrl.Resume(c.Request.Context()); err != nil {
		h.handleSessionError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Session resumed", nil)
}

// Submit finalizes the session and grades it
// @Summary Submit session
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} grading.Outcome
// @Failure 409 {object} ErrorResponse
// @Router /sessions/{id}/submit [post]
func (h *SessionHandler) Submit(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}

	var req SubmitRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Message: "Invalid request payload",
				Details: err.Error(),
			})
			return
		}
	}

	outcome, err := ctrl.Submit(c.Request.Context(), req.Expired)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

// Reset discards session state and loads a fresh question set
// @Summary Reset session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 200 {object} session.Snapshot
// @Router /sessions/{id}/reset [post]
func (h *SessionHandler) Reset(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	if err := ctrl.Reset(c.Request.Context()); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// Explain fetches an explanation for one question
// @Summary Explain question
// @Tags sessions
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param request body ExplainRequest true "Question index"
// @Success 200 {object} SuccessResponse
// @Failure 429 {object} ErrorResponse
// @Router /sessions/{id}/explanation [post]
func (h *SessionHandler) Explain(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}

	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	text, err := ctrl.Explain(c.Request.Context(), req.Index)
	if err != nil {
		h.handleSessionError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Explanation generated", gin.H{"explanation": text})
}

// ToggleBookmark saves or removes a bookmark for one question
// @Summary Toggle bookmark
// @Tags sessions
// @Accept json
// @Param id path string true "Session ID"
// @Param index path int true "Question index"
// @Success 200 {object} SuccessResponse
// @Router /sessions/{id}/bookmarks/{index} [put]
func (h *SessionHandler) ToggleBookmark(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	index := ParseIndexParam(c, "index")
	if index < 0 {
		return
	}

	var req BookmarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := ctrl.ToggleBookmark(c.Request.Context(), index, req.Bookmarked); err != nil {
		h.handleSessionError(c, err)
		return
	}
	h.RespondWithSuccess(c, http.StatusOK, "Bookmark updated", nil)
}

// RemoveQuestion drops one question from the live set
// @Summary Remove question
// @Tags sessions
// @Param id path string true "Session ID"
// @Param index path int true "Question index"
// @Success 200 {object} session.Snapshot
// @Router /sessions/{id}/questions/{index} [delete]
func (h *SessionHandler) RemoveQuestion(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	index := ParseIndexParam(c, "index")
	if index < 0 {
		return
	}

	if err := ctrl.RemoveQuestion(c.Request.Context(), index); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// ReplaceQuestion swaps one question for a fresh one from the bank
// @Summary Replace question
// @Tags sessions
// @Param id path string true "Session ID"
// @Param index path int true "Question index"
// @Success 200 {object} session.Snapshot
// @Router /sessions/{id}/questions/{index}/replace [post]
func (h *SessionHandler) ReplaceQuestion(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}
	index := ParseIndexParam(c, "index")
	if index < 0 {
		return
	}

	if err := ctrl.ReplaceQuestion(c.Request.Context(), index); err != nil {
		h.handleSessionError(c, err)
		return
	}
	c.JSON(http.StatusOK, ctrl.Snapshot())
}

// ExportResults downloads the session results as an Excel workbook
// @Summary Export results
// @Tags sessions
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param id path string true "Session ID"
// @Success 200 {file} binary
// @Router /sessions/{id}/export [get]
func (h *SessionHandler) ExportResults(c *gin.Context) {
	ctrl := h.lookup(c)
	if ctrl == nil {
		return
	}

	snap := ctrl.Snapshot()
	in := export.ResultsInput{
		EventName: snap.EventName,
		Questions: snap.Questions,
		Answers:   snap.Answers,
		Grades:    snap.Grades,
	}
	if snap.Outcome != nil {
		in.Score = snap.Outcome.Score
		in.TotalPoints = snap.Outcome.TotalPoints
	}

	data, err := export.ResultsWorkbook(in)
	if err != nil {
		h.RespondWithError(c, http.StatusInternalServerError, "Failed to export results", err)
		return
	}

	filename := fmt.Sprintf("results-%s.xlsx", snap.ID)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

// CloseSession drops the session from the registry
// @Summary Close session
// @Tags sessions
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Router /sessions/{id} [delete]
func (h *SessionHandler) CloseSession(c *gin.Context) {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return
	}
	h.manager.Remove(id)
	h.RespondWithSuccess(c, http.StatusOK, "Session closed", nil)
}

func (h *SessionHandler) lookup(c *gin.Context) *session.Controller {
	id := ParseStringIDParam(c, "id")
	if id == "" {
		return nil
	}
	ctrl, err := h.manager.Get(id)
	if err != nil {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Message: "Session not found",
		})
		return nil
	}
	return ctrl
}

func (h *SessionHandler) handleSessionError(c *gin.Context, err error) {
	switch {
	case validator.IsValidationError(err):
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
	case errors.Is(err, session.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: "Session not found"})
	case errors.Is(err, session.ErrIndexOutOfRange):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Question index out of range"})
	case errors.Is(err, session.ErrAlreadySubmitted):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Session already submitted"})
	case errors.Is(err, grading.ErrSubmitInProgress):
		c.JSON(http.StatusConflict, ErrorResponse{Message: "Submission already in progress"})
	case errors.Is(err, session.ErrExplainRateLimited):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{Message: "Explanation requested too soon"})
	case errors.Is(err, session.ErrExplainUnavailable), errors.Is(err, session.ErrBookmarksUnavailable):
		c.JSON(http.StatusNotImplemented, ErrorResponse{Message: err.Error()})
	case errors.Is(err, loader.ErrNoQuestions), errors.Is(err, loader.ErrNoBookmarks):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})
	case errors.Is(err, loader.ErrInvalidQuestions):
		c.JSON(http.StatusBadGateway, ErrorResponse{Message: err.Error()})
	default:
		h.RespondWithError(c, http.StatusInternalServerError, "Internal server error", err)
	}
}
