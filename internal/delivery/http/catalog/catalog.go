package http_catalog

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	http_common "github.com/humanbelnik/kinomatch/internal/delivery/http/common"
	usecase_catalog "github.com/humanbelnik/kinomatch/internal/usecase/catalog"
	"go.uber.org/zap"
)

type Controller struct {
	client *usecase_catalog.Client
	logger *zap.Logger
}

func New(client *usecase_catalog.Client, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		client: client,
		logger: logger.Named("http_catalog"),
	}
}

func (c *Controller) RegisterRoutes(router *gin.RouterGroup) {
	router.GET("/catalog", c.page)
}

// page serves one discovery page for a filter set.
// Query: providers=8,337&genres=28,35&certification=12&page=2
func (c *Controller) page(ctx *gin.Context) {
	dto := http_common.FiltersDTO{
		ProviderIDs:      splitIDs(ctx.Query("providers")),
		GenreIDs:         splitIDs(ctx.Query("genres")),
		MaxCertification: ctx.Query("certification"),
	}
	filters, err := dto.ToModel()
	if err != nil {
		http_common.Abort(ctx, c.logger, "invalid filters", err)
		return
	}
	if err := filters.Validate(); err != nil {
		http_common.Abort(ctx, c.logger, "invalid filters", err)
		return
	}

	page := 1
	if raw := ctx.Query("page"); raw != "" {
		if page, err = strconv.Atoi(raw); err != nil || page < 1 {
			ctx.JSON(http.StatusBadRequest, http_common.ErrorResponse{
				Message: "page must be a positive number",
				Code:    http_common.CodeValidation,
			})
			return
		}
	}

	result, err := c.client.Fetch(ctx, filters, page)
	if err != nil {
		http_common.Abort(ctx, c.logger, "failed to fetch catalog page", err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func splitIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}
