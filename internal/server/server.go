// Package server wires infrastructure, services and the HTTP surface
// together and owns their lifecycle.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/sync/errgroup"

	"github.com/bananagame/banago/internal/api"
	"github.com/bananagame/banago/internal/event"
	"github.com/bananagame/banago/internal/identity"
	"github.com/bananagame/banago/internal/leaderboard"
	"github.com/bananagame/banago/internal/score"
	"github.com/bananagame/banago/internal/telemetry"
)

const (
	// Store backends selectable through config.
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Auth struct {
		Secret string
		TTL    time.Duration
		Users  map[string]string
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	Store struct {
		Backend string

		Postgres struct {
			Addr string
			User string
			Pass string
			Name string
		}

		Mongo struct {
			URI  string
			Name string
		}
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
		mongo    *mongo.Client
	}

	store score.Store

	service struct {
		identity    *identity.Service
		score       *score.Service
		leaderboard *leaderboard.Service
	}

	metrics *telemetry.Metrics
	http    *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()
	s.metrics = telemetry.NewMetrics(prometheus.DefaultRegisterer)

	if err := s.initInfra(); err != nil {
		return nil, fmt.Errorf("server: init infra: %w", err)
	}

	s.initService()
	s.initAPI()
	return s, nil
}

func (s *Server) initInfra() error {
	if err := s.initRedis(); err != nil {
		return fmt.Errorf("redis: %w", err)
	}

	if err := s.initStore(); err != nil {
		return fmt.Errorf("store: %w", err)
	}

	return nil
}

func (s *Server) initRedis() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	r := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    s.c.Redis.Addrs,
		Password: s.c.Redis.Pass,
	})

	if err := telemetry.MonitorRedis(r); err != nil {
		return err
	}

	if err := r.Ping(ctx).Err(); err != nil {
		return err
	}

	s.infra.redis = r
	return nil
}

func (s *Server) initStore() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch s.c.Store.Backend {
	case BackendPostgres:
		pc := s.c.Store.Postgres
		cc, err := pgxpool.ParseConfig(fmt.Sprintf("postgres://%s:%s@%s/%s", pc.User, pc.Pass, pc.Addr, pc.Name))
		if err != nil {
			return err
		}

		db, err := pgxpool.NewWithConfig(ctx, cc)
		if err != nil {
			return err
		}
		if err := db.Ping(ctx); err != nil {
			return err
		}

		st := score.NewPostgresStore(db)
		if err := st.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}

		s.infra.postgres = db
		s.store = st

	case BackendMongo:
		mc := s.c.Store.Mongo
		cl, err := mongo.Connect(ctx, options.Client().ApplyURI(mc.URI))
		if err != nil {
			return err
		}
		if err := cl.Ping(ctx, nil); err != nil {
			return err
		}

		st := score.NewMongoStore(cl.Database(mc.Name))
		if err := st.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure indexes: %w", err)
		}

		s.infra.mongo = cl
		s.store = st

	case BackendMemory:
		s.store = score.NewMemoryStore()

	default:
		return fmt.Errorf("unknown backend %q", s.c.Store.Backend)
	}

	return nil
}

func (s *Server) initService() {
	s.service.identity = identity.NewService(identity.Config{
		Secret: s.c.Auth.Secret,
		TTL:    s.c.Auth.TTL,
		Users:  s.c.Auth.Users,
	})

	s.service.score = score.NewService(score.Config{
		Store:    s.store,
		EventBus: s.eb,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Store:    s.store,
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.Use(gin.Recovery(), s.metrics.GinMiddleware())

	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	pprof.Register(e, "/debug/pprof")

	api.New(api.Config{
		Engine:      e,
		Identity:    s.service.identity,
		Score:       s.service.score,
		Leaderboard: s.service.leaderboard,
		Metrics:     s.metrics,
	})

	s.http = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.c.HTTP.Port),
		Handler:           e,
		ReadHeaderTimeout: 60 * time.Second,
	}
}

func (s *Server) Start() {
	ctx := context.TODO()

	var eg errgroup.Group
	eg.Go(func() error {
		// Warm the ranking projection so a restart with an empty Redis
		// still serves the stored scores.
		wctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.service.leaderboard.Rebuild(wctx); err != nil {
			slog.ErrorContext(wctx, "server: leaderboard rebuild failed", "error", err)
		}
		return nil
	})

	eg.Go(func() error {
		slog.InfoContext(ctx, fmt.Sprintf("server: HTTP listening on port %d", s.c.HTTP.Port))
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	if err := eg.Wait(); err != nil {
		slog.ErrorContext(ctx, "server: shutdown with error", "error", err)
	}
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.http.Shutdown(ctx); err != nil {
		slog.ErrorContext(ctx, "server: shutdown HTTP failed", "error", err)
	}

	s.eb.Stop()

	if s.infra.postgres != nil {
		s.infra.postgres.Close()
	}
	if s.infra.mongo != nil {
		if err := s.infra.mongo.Disconnect(ctx); err != nil {
			slog.ErrorContext(ctx, "server: disconnect mongo failed", "error", err)
		}
	}
	if err := s.infra.redis.Close(); err != nil {
		slog.ErrorContext(ctx, "server: close redis failed", "error", err)
	}

	slog.InfoContext(ctx, "server: shutdown completed")
}
