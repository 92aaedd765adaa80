package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/askbase/askbase/internal/pkg/errcode"
	"github.com/askbase/askbase/internal/pkg/response"
	"github.com/askbase/askbase/internal/service"
)

type AskHandler struct {
	rag *service.RagService
}

func NewAskHandler(rag *service.RagService) *AskHandler {
	return &AskHandler{rag: rag}
}

type askRequest struct {
	Question       string `json:"question" binding:"required"`
	ConversationID string `json:"conversation_id"`
}

func (h *AskHandler) Ask(c *gin.Context) {
	var req askRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	res, err := h.rag.Answer(c.Request.Context(), getUserID(c), req.Question, req.ConversationID)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}
