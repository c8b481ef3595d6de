package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"mathify/internal/apiclient"
	"mathify/internal/auth"
	"mathify/internal/config"
	"mathify/internal/dashboard"
	"mathify/internal/httpapi"
	"mathify/internal/httpmiddleware"
	"mathify/internal/logger"
	"mathify/internal/notify"
	"mathify/internal/session"
	"mathify/internal/store"
)

func main() {
	cfg := config.Load()
	logger.Configure(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})

	if config.IsProduction(cfg.Env) {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg); err != nil {
		log.Fatal().Err(err).Msg("http server failed")
	}
}

func runHTTP(cfg config.App) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	checks := map[string]func(context.Context) bool{}

	var redisClient *store.Redis
	if cfg.SessionBackend == "redis" || cfg.NotifyBackend == "redis" {
		r, err := store.NewRedis(ctx, cfg.RedisAddr)
		if err != nil {
			return err
		}
		defer r.Close()
		redisClient = r
		checks["redis"] = r.Healthy
	}

	var sessions session.Store
	var sweep func(context.Context)
	switch cfg.SessionBackend {
	case "redis":
		sessions = session.NewRedisStore(redisClient, cfg.SessionTTL)
	case "postgres":
		db, err := store.NewDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		checks["db"] = db.Healthy
		pg := session.NewPostgresStore(db, cfg.SessionTTL)
		sessions = pg
		sweep = func(ctx context.Context) {
			if n, err := pg.Sweep(ctx); err != nil {
				log.Warn().Err(err).Msg("sweep session rows")
			} else if n > 0 {
				log.Debug().Int64("rows", n).Msg("expired session rows removed")
			}
		}
	default:
		mem := session.NewMemoryStore(cfg.SessionTTL)
		sessions = mem
		sweep = func(context.Context) { mem.Sweep() }
	}
	log.Info().Str("backend", cfg.SessionBackend).Msg("session store ready")

	var feed notify.Feed
	var sweepNotices func(time.Duration) int
	if cfg.NotifyBackend == "redis" {
		feed = notify.NewRedis(redisClient, 20, cfg.SessionTTL)
	} else {
		mem := notify.NewInMemory(20)
		feed = mem
		sweepNotices = mem.Sweep
	}

	client := apiclient.New(cfg.APIBaseURL, cfg.BackendTimeout)
	checks["backend"] = func(ctx context.Context) bool { return client.Health(ctx) == nil }
	if err := client.Health(ctx); err != nil {
		log.Warn().Err(err).Str("api", cfg.APIBaseURL).Msg("backend not reachable yet")
	}

	views := dashboard.NewViews(func(s *session.Session) dashboard.Backend { return client.For(s) }, feed)
	cookie := auth.Cookie{
		Name:       cfg.SessionCookie,
		SigningKey: cfg.SessionSigningKey,
		Issuer:     cfg.SessionIssuer,
		TTL:        cfg.SessionTTL,
		Secure:     config.IsProduction(cfg.Env),
		Store:      sessions,
	}
	limiter := httpmiddleware.NewTokenBucket(cfg.RateLimitPerMin, cfg.RateLimitPerMin, cookie.RateKey)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpmiddleware.RequestLog("/healthz", "/metrics"))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.AppBaseURL},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept"},
		ExposeHeaders:    []string{"Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           24 * time.Hour,
	}))
	r.Use(httpmiddleware.SecurityHeaders())
	r.Use(limiter.GinMiddleware())

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	httpapi.New(httpapi.Options{
		LoginURL:   cfg.LoginURL(),
		AppBaseURL: cfg.AppBaseURL,
		Store:      sessions,
		Cookie:     cookie,
		Views:      views,
		Feed:       feed,
		Checks:     checks,
	}).Register(r)

	go janitor(ctx, cfg.SweepInterval, cfg.SessionTTL, sweep, sweepNotices, views, limiter)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.BackendTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.HTTPPort).Str("api", cfg.APIBaseURL).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	log.Info().Msg("shutting down server")

	// give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced shutdown")
	}
	log.Info().Msg("server exited")
	return nil
}

// janitor periodically drops expired sessions along with their dashboards,
// notices and rate-limit buckets. Redis-backed notices expire on their own.
func janitor(ctx context.Context, every, idle time.Duration, sweep func(context.Context), sweepNotices func(time.Duration) int, views *dashboard.Views, limiter *httpmiddleware.TokenBucket) {
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if sweep != nil {
				sweep(ctx)
			}
			dropped := views.Sweep(idle)
			buckets := limiter.Sweep(time.Hour)
			notices := 0
			if sweepNotices != nil {
				notices = sweepNotices(idle)
			}
			log.Debug().Int("views", dropped).Int("buckets", buckets).Int("notices", notices).Msg("janitor pass")
		}
	}
}
