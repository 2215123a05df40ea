package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dontaskus/backend/internal/audit"
	internalauth "github.com/dontaskus/backend/internal/auth"
	"github.com/dontaskus/backend/internal/config"
	"github.com/dontaskus/backend/internal/db"
	adminapi "github.com/dontaskus/backend/internal/http/api/admin"
	"github.com/dontaskus/backend/internal/http/api/front"
	"github.com/dontaskus/backend/internal/notify"
	"github.com/dontaskus/backend/internal/question"
	"github.com/dontaskus/backend/internal/ratelimit"
	"github.com/dontaskus/backend/internal/scheduler"
	"github.com/dontaskus/backend/internal/security"
	"github.com/dontaskus/backend/internal/session"
	"github.com/dontaskus/backend/internal/streak"
	"github.com/dontaskus/backend/internal/vote"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	return db.Migrate(conn)
}

// RunServer boots the API server with database-backed components.
func RunServer(ctx context.Context, cfg config.AppConfig, defaultPort int) error {
	configPath := config.ResolveConfigPath(cfg.ConfigPath)
	dsn, err := config.LoadDatabaseDSN(configPath)
	if err != nil {
		return err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	initialized, errInit := HasAdminInitialized(conn)
	if errInit != nil {
		return errInit
	}
	var initState atomic.Bool
	initState.Store(initialized)

	jwtConfig, _ := config.LoadJWTConfig(configPath)
	if strings.TrimSpace(jwtConfig.Secret) == "" {
		return fmt.Errorf("missing jwt secret (set `jwt.secret` in config file or JWT_SECRET)")
	}
	sessionConfig, _ := config.LoadSessionConfig(configPath)
	schedulerConfig, _ := config.LoadSchedulerConfig(configPath)

	jwtManager, errJWT := security.NewJWTManager(jwtConfig.Secret, jwtConfig.Expiry)
	if errJWT != nil {
		return errJWT
	}

	sessions := session.NewStore(conn, sessionConfig.TokenExpiry())
	audits := audit.NewRecorder(conn)
	authManager := internalauth.NewManager(conn, jwtManager, audits)
	limits := ratelimit.NewManager(nil, nil, nil)
	selector := question.NewSelector(conn)
	streaks := streak.NewTracker(conn)
	votes := vote.NewRecorder(conn, streaks)
	devices := notify.NewRegistry(conn)

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	front.RegisterRoutes(engine, front.Deps{
		DB:       conn,
		Sessions: sessions,
		Selector: selector,
		Votes:    votes,
		Streaks:  streaks,
		Devices:  devices,
		Limits:   limits,
	})
	adminapi.RegisterAdminRoutes(engine, adminapi.Deps{
		DB:       conn,
		JWT:      jwtManager,
		Manager:  authManager,
		Sessions: sessions,
		Selector: selector,
		Audits:   audits,
		Limits:   limits,
	})
	registerInitRoutes(engine, conn, dsn, &initState)

	sched := scheduler.New(conn, selector, notify.LogEmitter{}, schedulerConfig.Interval)
	schedCtx, stopScheduler := context.WithCancel(ctx)
	defer stopScheduler()
	sched.Start(schedCtx)

	serverConfig, _ := config.LoadServerConfig(configPath)
	port := serverConfig.Port
	if port <= 0 {
		port = defaultPort
	}
	if port <= 0 {
		port = 8318
	}
	addr := fmt.Sprintf("%s:%d", serverConfig.Host, port)
	srv := &http.Server{
		Addr:    addr,
		Handler: engine,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if errShutdown := srv.Shutdown(shutdownCtx); errShutdown != nil {
			log.Errorf("server shutdown error: %v", errShutdown)
		}
	}()

	log.Infof("starting server on %s with config=%s", addr, configPath)
	if errListen := srv.ListenAndServe(); errListen != nil && !errors.Is(errListen, http.ErrServerClosed) {
		return errListen
	}
	return nil
}
