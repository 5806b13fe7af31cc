package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/gamecodebase/internal/admin"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/audit"
	"github.com/MarcoPoloResearchLab/gamecodebase/internal/catalog"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var (
	errMissingAdminService = errors.New("admin service dependency required")
	errInvalidIndex        = errors.New("index must be a non-negative integer")
)

// AuditLister reads the audit trail; audit.Service satisfies it.
type AuditLister interface {
	List(ctx context.Context, limit int) ([]audit.Entry, error)
}

type Dependencies struct {
	Admin             *admin.Service
	Audit             AuditLister
	Realtime          *RealtimeDispatcher
	Metrics           http.Handler
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Admin == nil {
		return nil, errMissingAdminService
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeatInterval
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(corsMiddleware())

	handler := &httpHandler{
		admin:     deps.Admin,
		audit:     deps.Audit,
		realtime:  deps.Realtime,
		heartbeat: heartbeat,
		logger:    logger,
	}

	router.GET("/healthz", handler.handleHealth)
	router.GET("/catalog", handler.handleOverview)
	router.GET("/catalog/check", handler.handleCheck)
	router.POST("/games", handler.handleAddGame)
	router.GET("/games/:index", handler.handleGameDetail)
	router.DELETE("/games/:index", handler.handleDeleteGame)
	router.PUT("/games/:index/codes", handler.handleSaveCodes)
	router.GET("/review/pending", handler.handlePending)
	router.POST("/review/:game/:code/approve", handler.handleReview(true))
	router.POST("/review/:game/:code/reject", handler.handleReview(false))
	router.POST("/submissions", handler.handleSubmit)
	router.POST("/sync/pull", handler.handlePull)
	router.POST("/sync/push", handler.handlePush)
	router.GET("/audit", handler.handleAudit)
	router.GET("/events", handler.handleEvents)
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics))
	}

	return router, nil
}

func corsMiddleware() gin.HandlerFunc {
	return cors.New(cors.Config{
		AllowOrigins: []string{"http://localhost:8501", "http://127.0.0.1:8501"},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders: []string{"Content-Type"},
		MaxAge:       12 * time.Hour,
	})
}

type httpHandler struct {
	admin     *admin.Service
	audit     AuditLister
	realtime  *RealtimeDispatcher
	heartbeat time.Duration
	logger    *zap.Logger
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *httpHandler) handleOverview(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.Overview(c.Request.Context()))
}

func (h *httpHandler) handleCheck(c *gin.Context) {
	h.respond(c, h.admin.Check(c.Request.Context()))
}

func (h *httpHandler) handleGameDetail(c *gin.Context) {
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	detail, err := h.admin.GameDetail(c.Request.Context(), index)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
		return
	}
	c.JSON(http.StatusOK, detail)
}

type addGameRequestPayload struct {
	GameName string `json:"game_name"`
}

func (h *httpHandler) handleAddGame(c *gin.Context) {
	var request addGameRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.respond(c, h.admin.Dispatch(c.Request.Context(), admin.AddGame{GameName: request.GameName}))
}

func (h *httpHandler) handleDeleteGame(c *gin.Context) {
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	h.respond(c, h.admin.Dispatch(c.Request.Context(), admin.DeleteGame{GameIndex: index}))
}

func (h *httpHandler) handleSaveCodes(c *gin.Context) {
	index, ok := indexParam(c, "index")
	if !ok {
		return
	}
	var table catalog.Table
	if err := c.ShouldBindJSON(&table); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.respond(c, h.admin.Dispatch(c.Request.Context(), admin.SaveCodes{GameIndex: index, Table: table}))
}

func (h *httpHandler) handlePending(c *gin.Context) {
	c.JSON(http.StatusOK, h.admin.Pending(c.Request.Context()))
}

func (h *httpHandler) handleReview(approve bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		gameIndex, ok := indexParam(c, "game")
		if !ok {
			return
		}
		codeIndex, ok := indexParam(c, "code")
		if !ok {
			return
		}
		var action admin.Action = admin.RejectCode{GameIndex: gameIndex, CodeIndex: codeIndex}
		if approve {
			action = admin.ApproveCode{GameIndex: gameIndex, CodeIndex: codeIndex}
		}
		h.respond(c, h.admin.Dispatch(c.Request.Context(), action))
	}
}

type submitRequestPayload struct {
	GameName       string `json:"game_name"`
	Code           string `json:"code"`
	Reward         string `json:"reward"`
	SourcePlatform string `json:"source_platform"`
	SourceURL      string `json:"source_url"`
	ExpireDate     string `json:"expire_date"`
	CodeType       string `json:"code_type"`
}

func (h *httpHandler) handleSubmit(c *gin.Context) {
	var request submitRequestPayload
	if err := c.ShouldBindJSON(&request); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
		return
	}
	h.respond(c, h.admin.Dispatch(c.Request.Context(), admin.SubmitCode{
		GameName:       request.GameName,
		Code:           request.Code,
		Reward:         request.Reward,
		SourcePlatform: request.SourcePlatform,
		SourceURL:      request.SourceURL,
		ExpireDate:     request.ExpireDate,
		CodeType:       request.CodeType,
	}))
}

type pushRequestPayload struct {
	Message string `json:"message"`
}

func (h *httpHandler) handlePull(c *gin.Context) {
	h.respond(c, h.admin.Pull(c.Request.Context()))
}

func (h *httpHandler) handlePush(c *gin.Context) {
	var request pushRequestPayload
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
			return
		}
	}
	h.respond(c, h.admin.Push(c.Request.Context(), strings.TrimSpace(request.Message)))
}

type auditResponsePayload struct {
	Entries []audit.Entry `json:"entries"`
}

func (h *httpHandler) handleAudit(c *gin.Context) {
	if h.audit == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "audit_disabled"})
		return
	}
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_limit"})
			return
		}
		limit = parsed
	}
	entries, err := h.audit.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list audit entries", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "audit_failed"})
		return
	}
	c.JSON(http.StatusOK, auditResponsePayload{Entries: entries})
}

func (h *httpHandler) respond(c *gin.Context, response admin.Response) {
	if response.Notices == nil {
		response.Notices = []admin.Notice{}
	}
	c.JSON(statusFor(response), response)
}

func statusFor(response admin.Response) int {
	if response.OK {
		return http.StatusOK
	}
	switch response.Failure {
	case admin.FailureValidation:
		return http.StatusUnprocessableEntity
	case admin.FailureNotFound:
		return http.StatusNotFound
	case admin.FailureStale:
		return http.StatusConflict
	case admin.FailureSync:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func indexParam(c *gin.Context, name string) (int, bool) {
	index, err := strconv.Atoi(c.Param(name))
	if err != nil || index < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_index", "detail": errInvalidIndex.Error()})
		return 0, false
	}
	return index, true
}
