package handler

import (
	"database/sql"

	"github.com/gin-gonic/gin"

	"github.com/askbase/askbase/internal/pkg/response"
	"github.com/askbase/askbase/internal/vectorstore"
)

type HealthHandler struct {
	db    *sql.DB
	store vectorstore.Store
}

func NewHealthHandler(db *sql.DB, store vectorstore.Store) *HealthHandler {
	return &HealthHandler{db: db, store: store}
}

func (h *HealthHandler) Healthz(c *gin.Context) {
	status := gin.H{"status": "ok"}
	if h.db != nil {
		if err := h.db.PingContext(c.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["database"] = err.Error()
		}
	}
	if h.store != nil {
		if err := h.store.Ping(c.Request.Context()); err != nil {
			status["status"] = "degraded"
			status["vector_store"] = err.Error()
		}
	}
	response.Success(c, status)
}
