package http_init

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	http_access_middleware "github.com/humanbelnik/kinomatch/internal/delivery/http/middleware/access"
	"go.uber.org/zap"
)

const apiPrefix = "/api/v1"

type Controller interface {
	RegisterRoutes(router *gin.RouterGroup)
}

type ControllerPool struct {
	pool   []Controller
	rg     *gin.RouterGroup
	engine *gin.Engine
	server *http.Server
	logger *zap.Logger
}

func NewControllerPool(mode string, logger *zap.Logger) *ControllerPool {
	if logger == nil {
		logger = zap.NewNop()
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(logger))
	rg := engine.Group(apiPrefix)
	rg.Use(http_access_middleware.ReadOnlyBadGatewayMiddleware(mode))
	return &ControllerPool{
		pool:   make([]Controller, 0, 10),
		rg:     rg,
		engine: engine,
		logger: logger.Named("http"),
	}
}

func (pool *ControllerPool) Register() {
	for _, c := range pool.pool {
		c.RegisterRoutes(pool.rg)
	}
}

// Handler exposes the router, mostly for httptest.
func (pool *ControllerPool) Handler() http.Handler {
	return pool.engine
}

// RunAll serves until Shutdown is called.
func (pool *ControllerPool) RunAll(host, port string) error {
	pool.server = &http.Server{
		Addr:              net.JoinHostPort(host, port),
		Handler:           pool.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	pool.logger.Info("listening", zap.String("addr", pool.server.Addr))
	if err := pool.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (pool *ControllerPool) Shutdown(ctx context.Context) error {
	if pool.server == nil {
		return nil
	}
	return pool.server.Shutdown(ctx)
}

func (pool *ControllerPool) Add(c Controller) {
	pool.pool = append(pool.pool, c)
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("access")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
