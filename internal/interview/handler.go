package interview

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/aura-interview/backend/internal/auth"
	"github.com/aura-interview/backend/internal/middleware"
	"github.com/aura-interview/backend/internal/realtime"
	"github.com/aura-interview/backend/pkg/response"
)

// DefaultMaxChunkBytes caps one audio chunk request.
const DefaultMaxChunkBytes = 4 << 20

// Handler serves the interview websocket and HTTP endpoints.
type Handler struct {
	engine        *Engine
	registry      *realtime.Registry
	maxChunkBytes int64
	logger        *zap.Logger
}

// NewHandler creates an interview handler.
func NewHandler(engine *Engine, registry *realtime.Registry, maxChunkBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxChunkBytes <= 0 {
		maxChunkBytes = DefaultMaxChunkBytes
	}
	return &Handler{engine: engine, registry: registry, maxChunkBytes: maxChunkBytes, logger: logger}
}

// Register mounts the routes. jwtService may be nil to disable token checks.
func (h *Handler) Register(router gin.IRouter, jwtService *auth.JWTService) {
	token := middleware.InterviewToken(jwtService)
	reviewer := middleware.RequireRole(auth.RoleReviewer)

	router.GET("/ws/interview/:id", token, h.Connect)

	api := router.Group("/api/interview/:id", token)
	api.POST("/audio", h.Audio)
	api.POST("/code", h.SubmitCode)
	api.GET("/report", reviewer, h.Report)
	api.GET("/replay", reviewer, h.Replay)
	api.POST("/questions/:qid/rescore", reviewer, h.Rescore)
}

// Connect handles GET /ws/interview/:id. The read loop is the only place inbound control
// messages are processed, so they are handled strictly in order.
func (h *Handler) Connect(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	if _, err := h.engine.store.GetSession(c.Request.Context(), sessionID); err != nil {
		h.fail(c, err)
		return
	}

	conn, err := realtime.Upgrade(c.Writer, c.Request)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.String("session_id", sessionID.String()), zap.Error(err))
		return
	}
	client := realtime.NewClient(conn, sessionID, h.logger)
	unregister := h.registry.Register(sessionID, client)
	go client.WritePump()

	// the request context ends with the hijacked handler; use one tied to the socket instead
	ctx, cancel := context.WithCancel(context.Background())
	defer func() {
		cancel()
		unregister()
		h.engine.Release(sessionID)
		_ = client.Close()
	}()

	if err := h.engine.Start(ctx, sessionID); err != nil {
		h.engine.reportError(sessionID, "start", err)
	}
	client.ReadPump(func(msg []byte) {
		h.engine.HandleMessage(ctx, sessionID, msg)
	})
}

// Audio handles POST /api/interview/:id/audio?question_id=N&partial=true|false. The chunk is the
// raw body, or the multipart field "chunk".
func (h *Handler) Audio(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	questionID, err := strconv.ParseInt(c.Query("question_id"), 10, 64)
	if err != nil || questionID <= 0 {
		response.BadRequest(c, "invalid question_id")
		return
	}
	partial := true
	if v := c.Query("partial"); v != "" {
		if partial, err = strconv.ParseBool(v); err != nil {
			response.BadRequest(c, "invalid partial flag")
			return
		}
	}

	chunk, err := h.readChunk(c)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.TooLarge(c, "audio chunk too large")
			return
		}
		response.BadRequest(c, "invalid audio chunk")
		return
	}

	res, err := h.engine.IngestAudio(c.Request.Context(), sessionID, questionID, chunk, partial)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) readChunk(c *gin.Context) ([]byte, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxChunkBytes)
	if c.ContentType() == "multipart/form-data" {
		fh, err := c.FormFile("chunk")
		if err != nil {
			return nil, err
		}
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return io.ReadAll(f)
	}
	return io.ReadAll(c.Request.Body)
}

// SubmitCode handles POST /api/interview/:id/code.
func (h *Handler) SubmitCode(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	var req CodeSubmission
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if err := h.engine.SubmitCode(c.Request.Context(), sessionID, req); err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"question_id": req.QuestionID, "submitted": true})
}

// Report handles GET /api/interview/:id/report.
func (h *Handler) Report(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	summary, err := h.engine.Summarize(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, summary)
}

// Replay handles GET /api/interview/:id/replay.
func (h *Handler) Replay(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	events, err := h.engine.Replay(c.Request.Context(), sessionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"session_id": sessionID, "events": events})
}

// Rescore handles POST /api/interview/:id/questions/:qid/rescore.
func (h *Handler) Rescore(c *gin.Context) {
	sessionID, ok := parseSessionID(c)
	if !ok {
		return
	}
	questionID, err := strconv.ParseInt(c.Param("qid"), 10, 64)
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	taskID, err := h.engine.Rescore(c.Request.Context(), sessionID, questionID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Accepted(c, gin.H{"question_id": questionID, "task_id": taskID})
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrQuestionNotInSession):
		response.NotFound(c, err.Error())
	case errors.Is(err, ErrSessionCompleted):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNotCodeQuestion):
		response.BadRequest(c, err.Error())
	default:
		h.logger.Error("interview request failed", zap.String("path", c.FullPath()), zap.Error(err))
		response.Internal(c, "internal error")
	}
}

func parseSessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid interview id")
		return uuid.Nil, false
	}
	return id, true
}
