package api

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"housematch/server/internal/jobs"
	"housematch/server/internal/models"
	"housematch/server/internal/reindex"
	"housematch/server/internal/store"
)

type Handler struct {
	store       store.Store
	reindexer   *reindex.Reindexer
	accumulator *jobs.UsageAccumulator
	logger      *logrus.Logger
	adminSecret string
}

type ActivityRequest struct {
	UserID string `json:"user_id" binding:"required"`
	Action string `json:"action" binding:"required"`
	Detail string `json:"detail"`
}

type SessionRequest struct {
	ID        string     `json:"id" binding:"required"`
	UserID    string     `json:"user_id" binding:"required"`
	Role      string     `json:"role"`
	StartedAt *time.Time `json:"started_at"`
}

type SessionCloseRequest struct {
	EndedAt *time.Time `json:"ended_at"`
}

func NewHandler(s store.Store, r *reindex.Reindexer, acc *jobs.UsageAccumulator, adminSecret string, logger *logrus.Logger) *Handler {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}
	return &Handler{
		store:       s,
		reindexer:   r,
		accumulator: acc,
		logger:      logger,
		adminSecret: adminSecret,
	}
}

// UpsertEntity persists the raw document and feeds the write event to the
// reindexer, before-state included, so snapshots converge in the same
// request.
func (h *Handler) UpsertEntity(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		var doc models.RawDoc
		if err := c.ShouldBindJSON(&doc); err != nil {
			h.logger.WithError(err).Error("Failed to parse entity document")
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid document body"})
			return
		}

		before, err := h.store.GetEntity(c.Request.Context(), kind, id)
		if err != nil {
			h.logger.WithError(err).Error("Failed to read entity")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read entity"})
			return
		}
		if err := h.store.PutEntity(c.Request.Context(), kind, id, doc); err != nil {
			h.logger.WithError(err).Error("Failed to store entity")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store entity"})
			return
		}

		if err := h.reindexer.OnEntityWritten(c.Request.Context(), kind, id, before, doc); err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"kind": kind,
				"id":   id,
			}).Error("Reindex failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reindex entity"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id})
	}
}

// DeleteEntity removes the raw document and deindexes it.
func (h *Handler) DeleteEntity(kind models.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		before, err := h.store.GetEntity(c.Request.Context(), kind, id)
		if err != nil {
			h.logger.WithError(err).Error("Failed to read entity")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read entity"})
			return
		}
		if before == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Entity not found"})
			return
		}
		if err := h.store.DeleteEntity(c.Request.Context(), kind, id); err != nil {
			h.logger.WithError(err).Error("Failed to delete entity")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete entity"})
			return
		}

		if err := h.reindexer.OnEntityWritten(c.Request.Context(), kind, id, before, nil); err != nil {
			h.logger.WithError(err).WithFields(logrus.Fields{
				"kind": kind,
				"id":   id,
			}).Error("Deindex failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to deindex entity"})
			return
		}

		c.JSON(http.StatusOK, gin.H{"status": "ok", "id": id})
	}
}

// GetListingMatches returns the precomputed matched-buyer snapshot.
func (h *Handler) GetListingMatches(c *gin.Context) {
	doc, err := h.store.GetListingMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to read listing snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read listing snapshot"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot for listing"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// GetBuyerMatches returns the precomputed matched-listing snapshot.
func (h *Handler) GetBuyerMatches(c *gin.Context) {
	doc, err := h.store.GetBuyerMatch(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.logger.WithError(err).Error("Failed to read buyer snapshot")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read buyer snapshot"})
		return
	}
	if doc == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "No snapshot for buyer"})
		return
	}
	c.JSON(http.StatusOK, doc)
}

// Rebuild runs the administrative full rebuild. Authorized by a shared
// secret in the X-Admin-Secret header or the secret query parameter.
func (h *Handler) Rebuild(c *gin.Context) {
	secret := c.GetHeader("X-Admin-Secret")
	if secret == "" {
		secret = c.Query("secret")
	}
	if h.adminSecret == "" || secret != h.adminSecret {
		c.JSON(http.StatusUnauthorized, gin.H{"ok": false, "error": "Unauthorized"})
		return
	}

	result, err := h.reindexer.RebuildAll(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Bulk rebuild failed")
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"ok": true, "total": result.Total, "skipped": result.Skipped})
}

// PostActivity appends an activity-log entry.
func (h *Handler) PostActivity(c *gin.Context) {
	var req ActivityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	entry := models.ActivityLog{UserID: req.UserID, Action: req.Action, Detail: req.Detail}
	if err := h.store.AppendActivity(c.Request.Context(), &entry); err != nil {
		h.logger.WithError(err).Error("Failed to append activity")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to append activity"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": entry.ID})
}

// OpenSession appends a session-log entry.
func (h *Handler) OpenSession(c *gin.Context) {
	var req SessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	s := models.SessionLog{ID: req.ID, UserID: req.UserID, Role: req.Role}
	if req.StartedAt != nil {
		s.StartedAt = *req.StartedAt
	}
	if err := h.accumulator.OpenSession(c.Request.Context(), &s); err != nil {
		h.logger.WithError(err).Error("Failed to open session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to open session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "id": s.ID})
}

// CloseSession closes a session and folds it into the usage counters.
func (h *Handler) CloseSession(c *gin.Context) {
	var req SessionCloseRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	endedAt := time.Now()
	if req.EndedAt != nil {
		endedAt = *req.EndedAt
	}
	if err := h.accumulator.CloseSession(c.Request.Context(), c.Param("id"), endedAt); err != nil {
		h.logger.WithError(err).Error("Failed to close session")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to close session"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// GetUsageStats returns the global usage counters.
func (h *Handler) GetUsageStats(c *gin.Context) {
	stats, err := h.store.GetUsageStats(c.Request.Context())
	if err != nil {
		h.logger.WithError(err).Error("Failed to read usage stats")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read usage stats"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
