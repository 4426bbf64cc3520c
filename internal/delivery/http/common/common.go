package http_common

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_catalog "github.com/humanbelnik/kinomatch/internal/usecase/catalog"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	"go.uber.org/zap"
)

const (
	UserTokenHeader = "X-user-token"
	UserIDKey       = "user_id"
)

// Codes let clients classify a failure without parsing the message.
const (
	CodeValidation      = "VALIDATION"
	CodeNotFound        = "NOT_FOUND"
	CodeNotHost         = "NOT_HOST"
	CodeSessionInactive = "SESSION_INACTIVE"
	CodeNotMember       = "NOT_MEMBER"
	CodeFetchFailed     = "FETCH_FAILED"
	CodeUnavailable     = "UNAVAILABLE"
	CodeInternal        = "INTERNAL"
)

type ErrorResponse struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// UserID returns the identity placed on the context by the identity middleware.
func UserID(ctx *gin.Context) model.UserID {
	return ctx.GetString(UserIDKey)
}

// Classify maps usecase error classes onto an HTTP status and a code.
func Classify(err error) (int, string) {
	switch {
	case errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest, CodeValidation
	case errors.Is(err, model.ErrSessionNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, usecase_session.ErrNotHost):
		return http.StatusForbidden, CodeNotHost
	case errors.Is(err, usecase_session.ErrSessionInactive):
		return http.StatusForbidden, CodeSessionInactive
	case errors.Is(err, usecase_consensus.ErrNotMember):
		return http.StatusForbidden, CodeNotMember
	case errors.Is(err, usecase_catalog.ErrFetchFailed):
		return http.StatusServiceUnavailable, CodeFetchFailed
	case errors.Is(err, model.ErrTransientStore),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, CodeUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// Abort logs err and writes the mapped status. Internal details are not
// echoed for 5xx responses.
func Abort(ctx *gin.Context, logger *zap.Logger, msg string, err error) {
	status, code := Classify(err)
	logger.Error(msg,
		zap.String("path", ctx.FullPath()),
		zap.Int("status", status),
		zap.Error(err),
	)

	message := err.Error()
	switch status {
	case http.StatusInternalServerError:
		message = "internal error"
	case http.StatusServiceUnavailable:
		message = "unavailable"
	}
	ctx.AbortWithStatusJSON(status, ErrorResponse{Message: message, Code: code})
}

// FiltersDTO is the wire form of model.Filters. An absent certification
// means the default one.
type FiltersDTO struct {
	ProviderIDs      []string `json:"provider_ids"`
	GenreIDs         []string `json:"genre_ids"`
	MaxCertification string   `json:"max_certification,omitempty"`
}

func (d FiltersDTO) ToModel() (model.Filters, error) {
	cert := model.DefaultCertification
	if d.MaxCertification != "" {
		var err error
		if cert, err = model.ParseCertification(d.MaxCertification); err != nil {
			return model.Filters{}, err
		}
	}
	return model.Filters{
		ProviderIDs:      d.ProviderIDs,
		GenreIDs:         d.GenreIDs,
		MaxCertification: cert,
	}.Normalize(), nil
}

func FiltersFromModel(f model.Filters) FiltersDTO {
	return FiltersDTO{
		ProviderIDs:      f.ProviderIDs,
		GenreIDs:         f.GenreIDs,
		MaxCertification: f.MaxCertification.String(),
	}
}
