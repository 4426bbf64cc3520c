package app

import (
	"context"
	"errors"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/humanbelnik/kinomatch/internal/config"
	http_catalog "github.com/humanbelnik/kinomatch/internal/delivery/http/catalog"
	http_init "github.com/humanbelnik/kinomatch/internal/delivery/http/init"
	http_identity_middleware "github.com/humanbelnik/kinomatch/internal/delivery/http/middleware/identity"
	http_session "github.com/humanbelnik/kinomatch/internal/delivery/http/session"
	http_vote "github.com/humanbelnik/kinomatch/internal/delivery/http/vote"
	ws_session "github.com/humanbelnik/kinomatch/internal/delivery/ws/session"
	"github.com/humanbelnik/kinomatch/internal/infra/logger"
	infra_memory "github.com/humanbelnik/kinomatch/internal/infra/memory"
	infra_pg_init "github.com/humanbelnik/kinomatch/internal/infra/postgres/init"
	infra_postgres_notify "github.com/humanbelnik/kinomatch/internal/infra/postgres/notify"
	infra_postgres_session "github.com/humanbelnik/kinomatch/internal/infra/postgres/session"
	infra_postgres_swipe "github.com/humanbelnik/kinomatch/internal/infra/postgres/swipe"
	infra_redis_init "github.com/humanbelnik/kinomatch/internal/infra/redis/init"
	infra_catalog_cache "github.com/humanbelnik/kinomatch/internal/infra/redis/pagecache"
	infra_tmdb "github.com/humanbelnik/kinomatch/internal/infra/tmdb"
	service_fanout "github.com/humanbelnik/kinomatch/internal/service/fanout"
	usecase_catalog "github.com/humanbelnik/kinomatch/internal/usecase/catalog"
	usecase_consensus "github.com/humanbelnik/kinomatch/internal/usecase/consensus"
	usecase_session "github.com/humanbelnik/kinomatch/internal/usecase/session"
	"go.uber.org/zap"
)

const (
	pageCacheKey    = "catalog_page"
	shutdownTimeout = 10 * time.Second
)

// stores are the two repositories the usecases need, from one backend.
type stores struct {
	sessions usecase_session.SessionRepository
	swipes   usecase_consensus.SwipeRepository
	close    func()
}

func Go(cfg *config.Config) {
	lg, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("[app] %v", err)
	}
	defer func() { _ = lg.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	hub := service_fanout.New(lg, service_fanout.DefaultBuffer)
	defer hub.Close()

	st := mustOpenStores(ctx, cfg, hub, lg)
	defer st.close()

	var shared usecase_catalog.SharedCache
	if cfg.Redis.Enabled {
		redisConn := infra_redis_init.MustEstablishConn(cfg.Redis)
		defer redisConn.Close()
		shared = infra_catalog_cache.New(redisConn, pageCacheKey, cfg.Redis.PageTTL)
	}

	sessionUC := usecase_session.New(st.sessions, lg)
	engine := usecase_consensus.New(st.swipes, lg, cfg.Consensus.VoteRetries, cfg.Consensus.RetryDelay)
	catalog := usecase_catalog.New(infra_tmdb.New(cfg.TMDB), shared, lg)
	identity := http_identity_middleware.New(lg).IdentityRequired()

	controllerPool := http_init.NewControllerPool(cfg.HTTP.Mode, lg)
	controllerPool.Add(http_session.New(sessionUC, identity,
		http_session.WithLogger(lg),
		http_session.WithPublicURL(cfg.HTTP.PublicURL),
	))
	controllerPool.Add(http_vote.New(engine, identity, http_vote.WithLogger(lg)))
	controllerPool.Add(http_catalog.New(catalog, lg))
	controllerPool.Add(ws_session.New(hub, sessionUC, lg))
	controllerPool.Register()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := controllerPool.Shutdown(shutdownCtx); err != nil {
			lg.Error("http shutdown", zap.Error(err))
		}
	}()

	if err := controllerPool.RunAll(cfg.HTTP.Host, cfg.HTTP.Port); err != nil {
		lg.Fatal("failed to run HTTP server", zap.Error(err))
	}
	catalog.Wait()
	lg.Info("stopped")
}

func mustOpenStores(ctx context.Context, cfg *config.Config, hub *service_fanout.Hub, lg *zap.Logger) stores {
	if cfg.Store.Driver == config.StoreDriverMemory {
		lg.Warn("using the in-memory store, sessions are lost on restart")
		store := infra_memory.New(hub)
		return stores{sessions: store, swipes: store, close: func() {}}
	}

	pgConn := infra_pg_init.MustEstablishConn(cfg.Postgres)
	sessionDriver := infra_postgres_session.New(pgConn)
	swipeDriver := infra_postgres_swipe.New(pgConn)

	source, err := infra_postgres_notify.Connect(cfg.Postgres.DSN(), infra_pg_init.FeedChannel, lg)
	if err != nil {
		lg.Fatal("failed to listen for session changes", zap.Error(err))
	}
	listener := infra_postgres_notify.New(source, swipeDriver, sessionDriver, hub, lg)
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := listener.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			lg.Error("session feed stopped", zap.Error(err))
		}
	}()

	return stores{
		sessions: sessionDriver,
		swipes:   swipeDriver,
		close: func() {
			_ = listener.Close()
			<-done
			_ = pgConn.Close()
		},
	}
}
