package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/askbase/askbase/internal/ai"
	"github.com/askbase/askbase/internal/middleware"
	"github.com/askbase/askbase/internal/pkg/errcode"
	appErr "github.com/askbase/askbase/internal/pkg/errors"
	"github.com/askbase/askbase/internal/pkg/response"
	"github.com/askbase/askbase/internal/vectorstore"
)

func getUserID(c *gin.Context) string {
	value, _ := c.Get(middleware.ContextUserIDKey)
	userID, _ := value.(string)
	return userID
}

func handleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	logutil.GetLogger(c.Request.Context()).Error("request failed",
		zap.String("method", c.Request.Method),
		zap.String("path", c.Request.URL.Path),
		zap.String("user_id", getUserID(c)),
		zap.Error(err),
	)
	var partial *vectorstore.PartialUpsertError
	switch {
	case errors.Is(err, appErr.ErrUnauthorized):
		response.Error(c, errcode.ErrUnauthorized, "unauthorized")
	case errors.Is(err, appErr.ErrForbidden):
		response.Error(c, errcode.ErrForbidden, "forbidden")
	case errors.Is(err, appErr.ErrNotFound):
		response.Error(c, errcode.ErrNotFound, "not found")
	case errors.Is(err, appErr.ErrEmptyInput):
		response.Error(c, errcode.ErrEmptyInput, "empty input")
	case errors.Is(err, appErr.ErrUnsupportedFile):
		response.Error(c, errcode.ErrInvalidFile, "unsupported file type")
	case errors.Is(err, appErr.ErrInvalid):
		response.Error(c, errcode.ErrInvalid, "invalid request")
	case errors.Is(err, appErr.ErrConflict):
		response.Error(c, errcode.ErrConflict, "conflict")
	case errors.Is(err, appErr.ErrTooMany):
		response.Error(c, errcode.ErrTooMany, "too many requests")
	case errors.As(err, &partial):
		response.Error(c, errcode.ErrPartialUpsert, "document indexed partially, retry ingestion")
	case errors.Is(err, ai.ErrRateLimited), errors.Is(err, vectorstore.ErrRateLimited):
		response.Error(c, errcode.ErrProviderRateLimited, "provider rate limited")
	case errors.Is(err, ai.ErrUnavailable), errors.Is(err, vectorstore.ErrUnavailable):
		response.Error(c, errcode.ErrProviderUnavailable, "provider unavailable")
	default:
		response.Error(c, errcode.ErrInternal, "internal error")
	}
}
