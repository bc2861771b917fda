// Package api serves the query functions, ingestion and cascade delete over HTTP.
package api

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"meeting-graph/backend/internal/entity"
	"meeting-graph/backend/internal/ingest"
	"meeting-graph/backend/internal/integrity"
	"meeting-graph/backend/internal/query"
	"meeting-graph/backend/internal/triples"
	apperrors "meeting-graph/backend/pkg/errors"
	"meeting-graph/backend/pkg/logger"
)

// maxIngestBody caps the size of one ingest request
const maxIngestBody = 32 << 20

// Deps are the components the router serves
type Deps struct {
	Guard     *integrity.Guard
	Query     *query.Service
	Ingester  *ingest.Ingester
	Generator *triples.Generator
	Logger    *zap.Logger
}

type handler struct {
	Deps
	log *zap.Logger

	// writeMu runs ingest, delete and consistency repair one request at a time
	writeMu sync.Mutex
}

// NewRouter builds the gin engine with every route registered
func NewRouter(d Deps) *gin.Engine {
	h := &handler{Deps: d, log: logger.OrDefault(d.Logger, "api")}

	router := gin.New()
	router.Use(ginLogger(h.log))
	router.Use(gin.Recovery())
	router.Use(cors())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/workgroups/:id/meetings", h.meetingsByWorkgroup)
		api.GET("/people/:id/meetings", h.meetingsByPerson)
		api.GET("/people/:id/action-items", h.actionItemsByPerson)
		api.GET("/meetings/:id/people", h.peopleByMeeting)
		api.GET("/meetings/:id/documents", h.documentsByMeeting)
		api.GET("/meetings/:id/triples", h.meetingTriples)
		api.GET("/meetings/:id/chunks", h.meetingChunks)
		api.GET("/agenda-items/:id/decisions", h.decisionsByAgendaItem)

		api.POST("/ingest", h.serialized(h.ingest))
		api.POST("/bundle", h.bundle)
		api.POST("/consistency", h.serialized(h.consistency))
		api.DELETE("/:type/:id", h.serialized(h.delete))
	}
	return router
}

func (h *handler) serialized(next gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		h.writeMu.Lock()
		defer h.writeMu.Unlock()
		next(c)
	}
}

func (h *handler) meetingsByWorkgroup(c *gin.Context) {
	ms, err := h.Query.MeetingsByWorkgroup(c.Request.Context(), c.Param("id"))
	h.respond(c, ms, err)
}

func (h *handler) meetingsByPerson(c *gin.Context) {
	ms, err := h.Query.MeetingsByPerson(c.Request.Context(), c.Param("id"))
	h.respond(c, ms, err)
}

func (h *handler) actionItemsByPerson(c *gin.Context) {
	items, err := h.Query.ActionItemsByPerson(c.Request.Context(), c.Param("id"))
	h.respond(c, items, err)
}

func (h *handler) peopleByMeeting(c *gin.Context) {
	people, err := h.Query.PeopleByMeeting(c.Request.Context(), c.Param("id"))
	h.respond(c, people, err)
}

func (h *handler) documentsByMeeting(c *gin.Context) {
	docs, err := h.Query.DocumentsByMeeting(c.Request.Context(), c.Param("id"))
	h.respond(c, docs, err)
}

func (h *handler) decisionsByAgendaItem(c *gin.Context) {
	items, err := h.Query.DecisionItemsByAgendaItem(c.Request.Context(), c.Param("id"), c.Query("effect"))
	h.respond(c, items, err)
}

func (h *handler) meetingTriples(c *gin.Context) {
	ctx := c.Request.Context()
	m, err := h.Guard.Store().Get(ctx, entity.TypeMeeting, c.Param("id"))
	if err != nil {
		h.respond(c, nil, err)
		return
	}
	ts, err := h.Generator.Generate(ctx, m)
	h.respond(c, ts, err)
}

func (h *handler) meetingChunks(c *gin.Context) {
	chunks, err := h.Ingester.Chunks(c.Request.Context(), c.Param("id"))
	h.respond(c, chunks, err)
}

// ingest accepts one meeting record or a JSON array of them
func (h *handler) ingest(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxIngestBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "empty body"})
		return
	}

	raws := [][]byte{body}
	if body[0] == '[' {
		if raws, err = ingest.SplitBatch(body); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	result, err := h.Ingester.IngestBatch(c.Request.Context(), raws)
	h.respond(c, result, err)
}

func (h *handler) bundle(c *gin.Context) {
	var req struct {
		MeetingIDs []string `json:"meeting_ids" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	b, err := h.Ingester.Bundle(c.Request.Context(), req.MeetingIDs)
	h.respond(c, b, err)
}

func (h *handler) consistency(c *gin.Context) {
	report, err := h.Guard.Store().CheckConsistency(c.Request.Context())
	h.respond(c, report, err)
}

func (h *handler) delete(c *gin.Context) {
	t, err := entity.ParseType(c.Param("type"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	plan, err := h.Guard.Delete(c.Request.Context(), t, c.Param("id"))
	h.respond(c, plan, err)
}

// respond writes body, or maps err onto a status code
func (h *handler) respond(c *gin.Context, body interface{}, err error) {
	if err == nil {
		c.JSON(http.StatusOK, body)
		return
	}
	_ = c.Error(err)

	var validation *apperrors.ErrValidation
	switch {
	case apperrors.IsNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &validation):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error(), "violations": validation.Violations})
	case apperrors.IsErrorType(err, apperrors.ErrorTypeSource):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		h.log.Error("Request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

