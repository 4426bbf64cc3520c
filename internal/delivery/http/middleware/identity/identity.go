package http_identity_middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	http_common "github.com/humanbelnik/kinomatch/internal/delivery/http/common"
	"go.uber.org/zap"
)

const maxTokenLength = 128

type Middleware struct {
	logger *zap.Logger
}

func New(logger *zap.Logger) *Middleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Middleware{
		logger: logger.Named("identity"),
	}
}

// IdentityRequired reads the pseudo identity a client generated for its
// device. There is no authentication: the token is the user id.
func (m *Middleware) IdentityRequired() gin.HandlerFunc {
	const header = http_common.UserTokenHeader
	return func(ctx *gin.Context) {
		t := strings.TrimSpace(ctx.GetHeader(header))
		if t == "" {
			m.logger.Debug("missing identity header", zap.String("path", ctx.FullPath()))
			ctx.AbortWithStatusJSON(http.StatusUnauthorized, http_common.ErrorResponse{
				Message: fmt.Sprintf("no %s header", header),
			})
			return
		}
		if len(t) > maxTokenLength {
			ctx.AbortWithStatusJSON(http.StatusBadRequest, http_common.ErrorResponse{
				Message: fmt.Sprintf("%s header is too long", header),
			})
			return
		}

		ctx.Set(http_common.UserIDKey, t)
		ctx.Next()
	}
}
