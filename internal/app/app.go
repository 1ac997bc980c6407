package app

import (
	"context"
	"errors"
	"log/slog"

	"github.com/geocoder89/taskhub/internal/accounts"
	"github.com/geocoder89/taskhub/internal/auth"
	"github.com/geocoder89/taskhub/internal/cache"
	"github.com/geocoder89/taskhub/internal/config"
	"github.com/geocoder89/taskhub/internal/domain/task"
	apphttp "github.com/geocoder89/taskhub/internal/http"
	"github.com/geocoder89/taskhub/internal/http/handlers"
	"github.com/geocoder89/taskhub/internal/observability"
	"github.com/geocoder89/taskhub/internal/security"
	"github.com/geocoder89/taskhub/internal/tasks"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// UserStore is everything the service needs from the credential store.
type UserStore interface {
	accounts.UserStore
	OwnerSummaries(ctx context.Context, ids []string) (map[string]task.OwnerSummary, error)
}

type Options struct {
	Config config.Config
	Log    *slog.Logger

	Users      UserStore
	Tasks      tasks.Store
	Identities cache.Store // nil reads the credential store on every request

	Prom      *observability.Prom
	Gatherer  prometheus.Gatherer
	Readiness map[string]handlers.Pinger
}

type App struct {
	Router   *gin.Engine
	Accounts *accounts.Service
	Tasks    *tasks.Manager
	Tokens   *auth.Manager
	Gate     *auth.Gate
}

// New assembles the services and the HTTP router over the given stores.
func New(opts Options) (*App, error) {
	if opts.Users == nil || opts.Tasks == nil {
		return nil, errors.New("app: users and tasks stores are required")
	}
	if opts.Log == nil {
		opts.Log = slog.Default()
	}

	cfg := opts.Config

	conveyance, err := auth.ParseConveyance(cfg.TokenConveyance)
	if err != nil {
		return nil, err
	}

	tokens := auth.NewManager(cfg.JWTSecret, cfg.JWTTTL)
	gate := auth.NewGate(tokens, opts.Users, opts.Identities, conveyance)

	accountSvc := accounts.NewService(opts.Users, security.NewHasher(cfg.BcryptCost), tokens, gate, opts.Log)
	taskMgr := tasks.NewManager(opts.Tasks, opts.Users, opts.Log)

	router := apphttp.NewRouter(apphttp.Deps{
		Log:        opts.Log,
		Config:     cfg,
		Prom:       opts.Prom,
		Gatherer:   opts.Gatherer,
		Gate:       gate,
		Conveyance: conveyance,
		Accounts:   accountSvc,
		Tasks:      taskMgr,
		Readiness:  opts.Readiness,
	})

	return &App{
		Router:   router,
		Accounts: accountSvc,
		Tasks:    taskMgr,
		Tokens:   tokens,
		Gate:     gate,
	}, nil
}
