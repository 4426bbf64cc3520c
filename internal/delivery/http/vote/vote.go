package http_vote

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	http_common "github.com/humanbelnik/kinomatch/internal/delivery/http/common"
	"github.com/humanbelnik/kinomatch/internal/model"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
	"go.uber.org/zap"
)

type Controller struct {
	engine   *usecase_consensus.Engine
	identity gin.HandlerFunc
	logger   *zap.Logger
}

type ControllerOption func(*Controller)

func WithLogger(logger *zap.Logger) ControllerOption {
	return func(c *Controller) {
		c.logger = logger
	}
}

func New(engine *usecase_consensus.Engine, identity gin.HandlerFunc, opts ...ControllerOption) *Controller {
	c := &Controller{
		engine:   engine,
		identity: identity,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.Named("http_vote")
	return c
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	session := router.Group("/sessions/:session_id", c.identity)
	session.POST("/votes", c.vote)
	session.DELETE("/votes/last", c.undo)
	session.GET("/matches", c.matches)
	session.GET("/partial-matches", c.partialMatches)
}

type VoteRequestDTO struct {
	MovieID   int64              `json:"movie_id"`
	Direction string             `json:"direction"`
	Movie     model.MovieSummary `json:"movie"`
}

// vote records a swipe of the caller. A like may complete a match.
func (c *Controller) vote(ctx *gin.Context) {
	var req VoteRequestDTO
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
			Message: "invalid request body",
			Code:    http_common.CodeValidation,
		})
		return
	}
	direction, err := model.ParseDirection(req.Direction)
	if err != nil {
		http_common.Abort(ctx, c.logger, "invalid direction", err)
		return
	}

	outcome, err := c.engine.RecordVote(ctx, model.Vote{
		SessionID: ctx.Param("session_id"),
		UserID:    http_common.UserID(ctx),
		MovieID:   req.MovieID,
		Direction: direction,
		Movie:     req.Movie,
	})
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to record vote", err)
		return
	}
	ctx.JSON(http.StatusOK, outcome)
}

func (c *Controller) undo(ctx *gin.Context) {
	result, err := c.engine.UndoLastVote(ctx, ctx.Param("session_id"), http_common.UserID(ctx))
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to undo vote", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (c *Controller) matches(ctx *gin.Context) {
	matches, err := c.engine.Matches(ctx, ctx.Param("session_id"))
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to list matches", err)
		return
	}
	ctx.JSON(http.StatusOK, matches)
}

func (c *Controller) partialMatches(ctx *gin.Context) {
	minVotes := 1
	if raw := ctx.Query("min_votes"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
				Message: "min_votes must be a number",
				Code:    http_common.CodeValidation,
			})
			return
		}
		minVotes = v
	}

	partials, err := c.engine.PartialMatches(ctx, ctx.Param("session_id"), minVotes)
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to list partial matches", err)
		return
	}
	ctx.JSON(http.StatusOK, partials)
}
