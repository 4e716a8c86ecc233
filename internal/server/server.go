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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/finivesta/quizd/internal/api"
	"github.com/finivesta/quizd/internal/bank"
	"github.com/finivesta/quizd/internal/domain"
	"github.com/finivesta/quizd/internal/event"
	"github.com/finivesta/quizd/internal/leaderboard"
	"github.com/finivesta/quizd/internal/session"
	"github.com/finivesta/quizd/internal/store/memory"
	"github.com/finivesta/quizd/internal/store/postgres"
	"github.com/finivesta/quizd/internal/telemetry"
)

const (
	defaultQuestionCount = 8
	defaultDurationMs    = 240000
)

type Config struct {
	HTTP struct {
		Port int32
	}

	Redis struct {
		Addrs  []string
		Pass   string
		Prefix string
	}

	// Postgres is optional; without it the quiz runs on in-memory stores.
	Postgres struct {
		URL string
	}

	Quiz struct {
		QuestionCount    int
		DurationMs       int64
		LatePolicy       string
		LeaderboardLimit int
	}
}

type Server struct {
	c Config

	eb *event.Bus

	infra struct {
		redis    redis.UniversalClient
		postgres *pgxpool.Pool
	}

	service struct {
		bank        *bank.Service
		session     *session.Service
		leaderboard *leaderboard.Service
	}

	http *http.Server
}

func Init(c Config) (*Server, error) {
	s := &Server{c: c}

	s.eb = event.NewBus()

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

	if err := s.initPostgres(); err != nil {
		return fmt.Errorf("postgres: %w", err)
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

func (s *Server) initPostgres() error {
	if s.c.Postgres.URL == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cc, err := pgxpool.ParseConfig(s.c.Postgres.URL)
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

	if err := postgres.EnsureSchema(ctx, db); err != nil {
		return err
	}

	s.infra.postgres = db
	return nil
}

func (s *Server) initService() {
	var (
		questions bank.Store
		sessions  session.Store
	)
	if s.infra.postgres != nil {
		questions = postgres.NewQuestionStore(s.infra.postgres)
		sessions = postgres.NewSessionStore(s.infra.postgres)
	} else {
		slog.Warn("server: postgres not configured, using in-memory stores")
		questions = memory.NewQuestionStore()
		sessions = memory.NewSessionStore()
	}

	quiz := domain.QuizConfig{
		QuestionCount: s.c.Quiz.QuestionCount,
		DurationMs:    s.c.Quiz.DurationMs,
	}
	if quiz.QuestionCount <= 0 {
		quiz.QuestionCount = defaultQuestionCount
	}
	if quiz.DurationMs <= 0 {
		quiz.DurationMs = defaultDurationMs
	}

	s.service.bank = bank.NewService(bank.Config{
		Store: questions,
		Quiz:  quiz,
	})

	s.service.leaderboard = leaderboard.NewService(leaderboard.Config{
		EventBus: s.eb,
		Redis:    s.infra.redis,
		Prefix:   s.c.Redis.Prefix,
		Limit:    s.c.Quiz.LeaderboardLimit,
	})

	s.service.session = session.NewService(session.Config{
		Bank:        s.service.bank,
		Store:       sessions,
		Leaderboard: s.service.leaderboard,
		LatePolicy:  session.LatePolicy(s.c.Quiz.LatePolicy),
	})
}

func (s *Server) initAPI() {
	e := gin.New()
	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	pprof.Register(e, "/debug/pprof")
	e.Use(gin.Recovery())

	e.GET("/healthz", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	api.New(api.Config{
		Router:       e,
		EventBus:     s.eb,
		Session:      s.service.session,
		Bank:         s.service.bank,
		Leaderboard:  s.service.leaderboard,
		Redis:        s.infra.redis,
		PubsubPrefix: s.c.Redis.Prefix,
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

	slog.InfoContext(ctx, "server: shutdown completed")
}
