package handler

import (
	"bytes"
	"io"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/askbase/askbase/internal/extract"
	"github.com/askbase/askbase/internal/filestore"
	"github.com/askbase/askbase/internal/model"
	"github.com/askbase/askbase/internal/pkg/errcode"
	"github.com/askbase/askbase/internal/pkg/response"
	"github.com/askbase/askbase/internal/service"
)

const maxUploadBytes = 10 << 20

type TrainHandler struct {
	rag   *service.RagService
	files filestore.Store
}

func NewTrainHandler(rag *service.RagService, files filestore.Store) *TrainHandler {
	return &TrainHandler{rag: rag, files: files}
}

type trainTextRequest struct {
	Text   string `json:"text" binding:"required"`
	Source string `json:"source"`
}

func (h *TrainHandler) TrainText(c *gin.Context) {
	var req trainTextRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	source := strings.TrimSpace(req.Source)
	if source == "" {
		source = "inline text"
	}
	res, err := h.rag.Ingest(c.Request.Context(), getUserID(c), req.Text, source, model.FileTypeText)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *TrainHandler) TrainFile(c *gin.Context) {
	header, err := c.FormFile("file")
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "file is required")
		return
	}
	if header.Size > maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, "file too large")
		return
	}
	if !extract.SupportedExt(header.Filename) {
		response.Error(c, errcode.ErrInvalidFile, "unsupported file type, use txt, md or pdf")
		return
	}
	file, err := header.Open()
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read upload")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(io.LimitReader(file, maxUploadBytes+1))
	if err != nil {
		response.Error(c, errcode.ErrUploadFailed, "failed to read upload")
		return
	}
	if len(data) > maxUploadBytes {
		response.Error(c, errcode.ErrInvalidFile, "file too large")
		return
	}

	text, err := extract.Text(header.Filename, data)
	if err != nil {
		handleError(c, err)
		return
	}
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(header.Filename)), ".")
	res, err := h.rag.Ingest(c.Request.Context(), getUserID(c), text, header.Filename, fileType)
	if err != nil {
		handleError(c, err)
		return
	}

	// Keep the raw upload around for later inspection. Indexing already
	// succeeded, so a storage failure only costs the original file.
	if h.files != nil {
		key := res.DocumentID + "." + fileType
		if err := h.files.Save(c.Request.Context(), key, bytes.NewReader(data), int64(len(data))); err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("failed to store uploaded file",
				zap.String("document_id", res.DocumentID), zap.Error(err))
		}
	}
	response.Success(c, res)
}
