package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/juju/clock"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/health"

	"github.com/and161185/inkwell/internal/auth"
	"github.com/and161185/inkwell/internal/config"
	"github.com/and161185/inkwell/internal/crypto"
	"github.com/and161185/inkwell/internal/limiter"
	"github.com/and161185/inkwell/internal/migrate"
	"github.com/and161185/inkwell/internal/repository"
	"github.com/and161185/inkwell/internal/repository/memory"
	"github.com/and161185/inkwell/internal/repository/postgres"
	grpcserver "github.com/and161185/inkwell/internal/server/grpc"
	httpserver "github.com/and161185/inkwell/internal/server/http"
	"github.com/and161185/inkwell/internal/service"
	"github.com/and161185/inkwell/internal/token"
)

const shutdownTimeout = 5 * time.Second

// app holds the wired components of one server process.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	handler http.Handler
	grpc    *grpc.Server
	health  *health.Server
	ready   func(context.Context) error
	closers []func()
}

// build wires storage, limiter, services and transports from cfg.
func build(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}
	ok := false
	defer func() {
		if !ok {
			a.close()
		}
	}()

	hasher, err := crypto.NewHasher(cfg.PasswordAlgo, cfg.BcryptCost)
	if err != nil {
		return nil, err
	}
	creds := crypto.NewCredentials(hasher, cfg.HashConcurrency)

	tokens, err := token.New([]byte(cfg.JWTSecret), cfg.TTL(), clock.WallClock)
	if err != nil {
		return nil, err
	}

	var (
		users    repository.UserRepository
		articles repository.ArticleRepository
		db       *postgres.DB
	)
	if cfg.InMemory() {
		log.Warn("using in-memory storage; data is lost on exit")
		users, articles = memory.NewUserRepo(), memory.NewArticleRepo()
	} else {
		ver, err := migrate.Up(ctx, cfg.DatabaseDSN, log)
		if err != nil {
			return nil, err
		}
		log.Info("schema ready", zap.Int64("version", ver))
		if db, err = postgres.New(ctx, cfg.DatabaseDSN); err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.ready = db.Ping
		users, articles = postgres.NewUserRepo(db), postgres.NewArticleRepo(db)
	}

	lim, err := a.newLimiter(ctx, db)
	if err != nil {
		return nil, err
	}

	ops, err := auth.ParseOperations(cfg.AdminOverride)
	if err != nil {
		return nil, err
	}
	authn := auth.NewAuthenticator(tokens, users, log.Named("auth"))

	if !cfg.Dev {
		gin.SetMode(gin.ReleaseMode)
	}
	a.handler = httpserver.NewRouter(httpserver.Deps{
		Accounts:      service.NewAccountService(users, creds, tokens, lim, log.Named("account")),
		Articles:      service.NewArticleService(articles, auth.NewGuard(ops...), clock.WallClock, log.Named("article")),
		Authenticator: authn,
		Log:           log.Named("http"),
		Ready:         a.ready,
	})

	if cfg.GRPCAddr != "" {
		var opts []grpc.ServerOption
		if cfg.TLSCert != "" {
			tc, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
			if err != nil {
				return nil, fmt.Errorf("load TLS cert/key: %w", err)
			}
			opts = append(opts, grpc.Creds(tc))
		}
		a.grpc, a.health = grpcserver.New(grpcserver.Options{
			Log:           log.Named("grpc"),
			Reflection:    cfg.Dev,
			ServerOptions: opts,
		})
	}

	ok = true
	return a, nil
}

func (a *app) newLimiter(ctx context.Context, db *postgres.DB) (limiter.Limiter, error) {
	switch a.cfg.LimiterBackend {
	case limiter.BackendNone:
		return limiter.Noop{}, nil
	case limiter.BackendPostgres:
		if db == nil {
			return nil, errors.New("postgres limiter requires postgres storage")
		}
		return limiter.NewPG(db.Pool, a.cfg.Policy(), clock.WallClock), nil
	case limiter.BackendRedis:
		opts, err := redis.ParseURL(a.cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis url: %w", err)
		}
		rdb := redis.NewClient(opts)
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("redis ping: %w", err)
		}
		return limiter.NewRedis(rdb, a.cfg.Policy()), nil
	default:
		return nil, fmt.Errorf("unknown limiter backend %q", a.cfg.LimiterBackend)
	}
}

// run serves HTTP and gRPC until ctx is done or one of them fails. Both
// listeners are bound before either server starts.
func (a *app) run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	httpLis, err := net.Listen("tcp", a.cfg.HTTPAddr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	var grpcLis net.Listener
	if a.grpc != nil {
		if grpcLis, err = net.Listen("tcp", a.cfg.GRPCAddr); err != nil {
			_ = httpLis.Close()
			return fmt.Errorf("grpc listen: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.log.Info("http listening", zap.String("addr", httpLis.Addr().String()), zap.Bool("tls", a.cfg.TLSCert != ""))
		var err error
		if a.cfg.TLSCert != "" {
			err = srv.ServeTLS(httpLis, a.cfg.TLSCert, a.cfg.TLSKey)
		} else {
			err = srv.Serve(httpLis)
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	if grpcLis != nil {
		g.Go(func() error {
			a.log.Info("grpc listening", zap.String("addr", grpcLis.Addr().String()))
			if err := a.grpc.Serve(grpcLis); !errors.Is(err, grpc.ErrServerStopped) {
				return err
			}
			return nil
		})
		if a.ready != nil {
			g.Go(func() error {
				grpcserver.WatchDependency(gctx, a.health, a.log.Named("health"), 10*time.Second, a.ready)
				return nil
			})
		}
	}

	g.Go(func() error {
		<-gctx.Done()
		a.shutdown(srv)
		return nil
	})
	return g.Wait()
}

// shutdown stops both servers, forcing them after shutdownTimeout.
func (a *app) shutdown(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.log.Warn("http shutdown", zap.Error(err))
	}
	if a.grpc == nil {
		return
	}
	a.health.Shutdown()
	done := make(chan struct{})
	go func() {
		a.grpc.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.grpc.Stop()
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
