package http_session

import (
	"net/http"

	"github.com/gin-gonic/gin"
	http_common "github.com/humanbelnik/kinomatch/internal/delivery/http/common"
	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	"go.uber.org/zap"
)

type Controller struct {
	usecase   *usecase_session.Usecase
	identity  gin.HandlerFunc
	publicURL string
	logger    *zap.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithPublicURL sets the base of the share links returned to hosts.
func WithPublicURL(url string) ControllerOption {
	return func(c *Controller) {
		c.publicURL = url
	}
}

func New(usecase *usecase_session.Usecase, identity gin.HandlerFunc, opts ...ControllerOption) *Controller {
	c := &Controller{
		usecase:  usecase,
		identity: identity,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("http_session")
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	sessions := router.Group("/sessions", c.identity)
	{
		sessions.POST("", c.create)
		sessions.GET("/:session_id", c.get)
		sessions.GET("/:session_id/members/me", c.isMember)
		sessions.POST("/:session_id/members", c.join)
		sessions.GET("/:session_id/members", c.memberSwipeCounts)
		sessions.PUT("/:session_id/filters", c.updateFilters)
	}
}

type CreateRequestDTO struct {
	Filters       http_common.FiltersDTO `json:"filters"`
	RequiredVotes int                    `json:"required_votes"`
}

type CreateResponseDTO struct {
	Session   model.Session `json:"session"`
	ShareLink string        `json:"share_link"`
}

// create opens a session hosted by the caller.
func (c *Controller) create(ctx *gin.Context) {
	var req CreateRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request body",
			Code:    http_common.CodeValidation,
		})
		return
	}
	filters, err := req.Filters.ToModel()
	if err != nil {
		http_common.Abort(ctx, c.logger, "invalid filters", err)
		return
	}

	session, err := c.usecase.Create(ctx, http_common.UserID(ctx), filters, req.RequiredVotes)
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to create session", err)
		return
	}

	ctx.JSON(http.StatusCreated, CreateResponseDTO{
		Session:   session,
		ShareLink: model.ShareLink(c.publicURL, session.ID),
	})
}

func (c *Controller) get(ctx *gin.Context) {
	session, err := c.usecase.Get(ctx, ctx.Param("session_id"))
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to get session", err)
		return
	}
	ctx.JSON(http.StatusOK, session)
}

type IsMemberResponseDTO struct {
	IsMember bool `json:"is_member"`
}

func (c *Controller) isMember(ctx *gin.Context) {
	ok, err := c.usecase.IsMember(ctx, ctx.Param("session_id"), http_common.UserID(ctx))
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to check membership", err)
		return
	}
	ctx.JSON(http.StatusOK, IsMemberResponseDTO{IsMember: ok})
}

type JoinRequestDTO struct {
	Name string `json:"name"`
}

// join adds the caller to the session. Joining twice returns the existing member.
func (c *Controller) join(ctx *gin.Context) {
	var req JoinRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request body",
			Code:    http_common.CodeValidation,
		})
		return
	}

	member, err := c.usecase.Join(ctx, ctx.Param("session_id"), http_common.UserID(ctx), req.Name)
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to join session", err)
		return
	}
	ctx.JSON(http.StatusCreated, member)
}

func (c *Controller) memberSwipeCounts(ctx *gin.Context) {
	counts, err := c.usecase.MemberSwipeCounts(ctx, ctx.Param("session_id"))
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to list members", err)
		return
	}
	ctx.JSON(http.StatusOK, counts)
}

type UpdateFiltersRequestDTO struct {
	Filters http_common.FiltersDTO `json:"filters"`
}

// updateFilters is allowed to the host only.
func (c *Controller) updateFilters(ctx *gin.Context) {
	var req UpdateFiltersRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request body",
			Code:    http_common.CodeValidation,
		})
		return
	}
	filters, err := req.Filters.ToModel()
	if err != nil {
		http_common.Abort(ctx, c.logger, "invalid filters", err)
		return
	}

	if err := c.usecase.UpdateFilters(ctx, ctx.Param("session_id"), http_common.UserID(ctx), filters); err != nil {
		http_common.Abort(ctx, c.logger, "failed to update filters", err)
		return
	}
	ctx.Status(http.StatusNoContent)
}
