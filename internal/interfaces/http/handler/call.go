package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/invoicing/backend/internal/domain/shared"
	"github.com/invoicing/backend/internal/infrastructure/auth"
	"github.com/invoicing/backend/internal/infrastructure/logger"
	"github.com/invoicing/backend/internal/interfaces/http/dto"
	"github.com/invoicing/backend/internal/interfaces/http/middleware"
	"go.uber.org/zap"
)

// call is one API request made on behalf of a verified actor. Every method
// that returns false has already written the response.
type call struct {
	c     *gin.Context
	actor auth.Actor
}

// begin starts a call, answering 401 when no actor was verified
func begin(c *gin.Context) (*call, bool) {
	actor, ok := middleware.GetActor(c)
	if !ok {
		fail(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, "Authentication required")
		return nil, false
	}
	return &call{c: c, actor: actor}, true
}

func (r *call) ctx() context.Context { return r.c.Request.Context() }

func (r *call) tenant() uuid.UUID { return r.actor.TenantID }

// id parses the :id path parameter naming a what
func (r *call) id(what string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.c.Param("id"))
	if err != nil {
		fail(r.c, http.StatusBadRequest, dto.ErrCodeBadRequest, "Invalid "+what+" ID format")
		return uuid.Nil, false
	}
	return id, true
}

func (r *call) bindJSON(req any) bool {
	if err := r.c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(r.c, err)
		return false
	}
	return true
}

func (r *call) bindQuery(req any) bool {
	if err := r.c.ShouldBindQuery(req); err != nil {
		middleware.HandleValidationError(r.c, err)
		return false
	}
	return true
}

// reply writes data with status, or the error if the service failed
func (r *call) reply(status int, data any, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	r.c.JSON(status, dto.OK(data))
}

func (r *call) replyPage(data any, total int64, page, pageSize int, err error) {
	if err != nil {
		r.fail(err)
		return
	}
	r.c.JSON(http.StatusOK, dto.Paged(data, total, page, pageSize))
}

// fail maps a service error onto its status. Domain errors keep their code
// and message; anything else is reported as internal with its text withheld.
func (r *call) fail(err error) {
	_ = r.c.Error(err)
	log := logger.L(r.ctx())

	var domainErr *shared.DomainError
	if !errors.As(err, &domainErr) {
		log.Error("Unexpected error", zap.Error(err))
		fail(r.c, http.StatusInternalServerError, dto.ErrCodeInternal, "An unexpected error occurred")
		return
	}
	if dto.IsServerError(domainErr.Code) {
		log.Error("Request failed", zap.String("code", domainErr.Code), zap.Error(err))
	}
	fail(r.c, dto.GetHTTPStatus(domainErr.Code), domainErr.Code, domainErr.Message)
}

func fail(c *gin.Context, status int, code, message string) {
	c.JSON(status, dto.Failure(code, message, requestID(c)))
}

// requestID prefers the ID stored by the RequestID middleware over the raw header
func requestID(c *gin.Context) string {
	if id := logger.GetRequestID(c.Request.Context()); id != "" {
		return id
	}
	return c.GetHeader(logger.RequestIDHeader)
}
