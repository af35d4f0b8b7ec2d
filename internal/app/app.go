package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/auth"
	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/config"
	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/httpapi"
	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/relay"
	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/store"
)

// App wires the relay, the persistence API and their backing services into
// one HTTP server.
type App struct {
	cfg config.Config
	log *slog.Logger

	db  *pgxpool.Pool
	rdb *redis.Client

	srv *http.Server
}

func New(ctx context.Context, cfg config.Config, log *slog.Logger) (*App, error) {
	if log == nil {
		log = slog.Default()
	}

	dbpool, err := pgxpool.New(ctx, cfg.Postgres.URL)
	if err != nil {
		return nil, fmt.Errorf("pgxpool: %w", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr,
		DB:   cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := dbpool.Ping(pingCtx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		dbpool.Close()
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping (%s db=%d): %w", cfg.Redis.Addr, cfg.Redis.DB, err)
	}

	authSvc := auth.NewService([]byte(cfg.Auth.Secret))

	users := store.NewUserStore(dbpool)
	profiles := store.NewProfileStore(dbpool)
	matches := store.NewMatchStore(dbpool)
	friends := store.NewFriendStore(dbpool)

	authH := &httpapi.AuthHandler{
		Users:    users,
		Profiles: profiles,
		Auth:     authSvc,
		TokenTTL: cfg.Auth.TokenTTL,
	}
	profileH := &httpapi.ProfileHandler{Profiles: profiles, Matches: matches}
	matchH := &httpapi.MatchHandler{Matches: matches, Profiles: profiles, Log: log}
	friendH := &httpapi.FriendHandler{Friends: friends, Users: users}

	rooms := relay.NewRedisRoomStore(rdb, cfg.Redis.RoomTTL)
	relaySrv := relay.NewServer(relay.Config{PublicURL: cfg.Relay.PublicURL}, rooms, log)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	relaySrv.RegisterRoutes(mux)

	requireAuth := httpapi.AuthMiddleware(authSvc)

	mux.HandleFunc("/api/auth/register", authH.Register)
	mux.HandleFunc("/api/auth/login", authH.Login)
	mux.Handle("/api/me", requireAuth(http.HandlerFunc(authH.Me)))
	mux.HandleFunc("/api/leaderboard", profileH.Leaderboard)
	mux.Handle("/api/matches/history", requireAuth(http.HandlerFunc(profileH.History)))
	mux.HandleFunc("/api/matches", matchH.Report)
	mux.Handle("/api/friends", requireAuth(http.HandlerFunc(friendH.Handle)))

	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           mux,
		ReadHeaderTimeout: cfg.HTTP.ReadHeaderTimeout,
		ReadTimeout:       cfg.HTTP.ReadTimeout,
		WriteTimeout:      cfg.HTTP.WriteTimeout,
		IdleTimeout:       cfg.HTTP.IdleTimeout,
	}

	return &App{cfg: cfg, log: log, db: dbpool, rdb: rdb, srv: srv}, nil
}

func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	a.log.Info("http server starting", "addr", a.cfg.HTTP.Addr)

	g.Go(func() error {
		err := a.srv.ListenAndServe()
		if err == nil || errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.HTTP.ShutdownTimeout)
		defer cancel()
		a.log.Info("http server shutting down")
		_ = a.srv.Shutdown(shutdownCtx)
		return nil
	})

	err := g.Wait()
	a.Close()
	return err
}

func (a *App) Close() {
	if a.db != nil {
		a.db.Close()
	}
	if a.rdb != nil {
		_ = a.rdb.Close()
	}
}
