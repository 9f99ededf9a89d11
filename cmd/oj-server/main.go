package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"nanoj/internal/auth"
	authctl "nanoj/internal/auth/controller"
	"nanoj/internal/common/cache"
	"nanoj/internal/common/db"
	"nanoj/internal/common/storage"
	judgectl "nanoj/internal/judge/controller"
	"nanoj/internal/judge/repository"
	"nanoj/internal/judge/sandbox"
	"nanoj/internal/judge/sandbox/docker"
	"nanoj/internal/judge/sandbox/local"
	"nanoj/internal/judge/service"
	"nanoj/internal/judge/spj"
	"nanoj/internal/server"
	"nanoj/pkg/utils/logger"
)

const defaultConfigPath = "configs/oj_server.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()
	ctx := context.Background()

	store, err := repository.NewJSONStore(appCfg.Data.Dir)
	if err != nil {
		logger.Error(ctx, "init data store failed", zap.Error(err))
		return
	}
	logs, err := repository.NewFileLogStore(filepath.Join(appCfg.Data.Dir, "logs"))
	if err != nil {
		logger.Error(ctx, "init log store failed", zap.Error(err))
		return
	}

	var submissions repository.SubmissionRepository = store
	if appCfg.Database.DSN != "" {
		mysqlDB, err := db.NewMySQLWithConfig(&appCfg.Database)
		if err != nil {
			logger.Error(ctx, "init mysql failed", zap.Error(err))
			return
		}
		defer func() {
			_ = mysqlDB.Close()
		}()
		submissions = repository.NewMySQLSubmissionRepository(mysqlDB)
		logger.Info(ctx, "submission store: mysql")
	}
	if appCfg.Redis.Addr != "" {
		redisCache, err := cache.NewRedisCacheWithConfig(&appCfg.Redis)
		if err != nil {
			logger.Error(ctx, "init redis failed", zap.Error(err))
			return
		}
		defer func() {
			_ = redisCache.Close()
		}()
		submissions = repository.NewCachedSubmissionRepository(submissions, redisCache)
		logger.Info(ctx, "submission reads cached through redis")
	}

	repo := repository.Repository{
		Submissions: submissions,
		Problems:    store,
		Languages:   store,
		Visibility:  store,
		Logs:        logs,
	}

	blob, err := buildBlobStorage(appCfg)
	if err != nil {
		logger.Error(ctx, "init blob storage failed", zap.Error(err))
		return
	}
	checkerStore := spj.NewStore(blob, appCfg.Storage.Bucket)
	checkerRunner := spj.NewRunner(checkerStore, appCfg.Checker)

	executors := []sandbox.Executor{
		docker.NewExecutor(ctx, appCfg.Sandbox),
		local.NewExecutor(),
	}
	judgeSvc, err := service.NewJudgeService(repo, executors, checkerRunner, appCfg.Judge.toServiceConfig())
	if err != nil {
		logger.Error(ctx, "init judge service failed", zap.Error(err))
		return
	}

	synchronous := os.Getenv("TESTING") != ""
	if synchronous {
		logger.Warn(ctx, "TESTING set, judging runs synchronously")
	}
	pool := service.NewPool(judgeSvc, appCfg.Judge.Workers, synchronous)

	authSvc, err := buildAuthService(ctx, appCfg)
	if err != nil {
		logger.Error(ctx, "init auth failed", zap.Error(err))
		return
	}

	gin.SetMode(gin.ReleaseMode)
	router := server.NewRouter(server.Deps{
		Auth:        authSvc,
		AuthCtl:     authctl.NewAuthController(authSvc),
		Submissions: judgectl.NewSubmissionController(repo, pool),
		SPJ:         judgectl.NewSPJController(checkerStore, checkerRunner, repo.Visibility),
	})
	httpServer := &http.Server{
		Addr:         appCfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  appCfg.Server.ReadTimeout,
		WriteTimeout: appCfg.Server.WriteTimeout,
		IdleTimeout:  appCfg.Server.IdleTimeout,
	}

	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(ctx, "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(ctx, "oj server started", zap.String("addr", appCfg.Server.Addr))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(ctx, "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(ctx, "shutdown signal received")
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error(ctx, "http server shutdown failed", zap.Error(err))
	}
	// Let in-flight judging passes finish before the process exits.
	pool.Wait()
}

func buildBlobStorage(cfg *AppConfig) (storage.BlobStorage, error) {
	if cfg.Storage.MinIO.Endpoint != "" {
		return storage.NewMinIOStorage(cfg.Storage.MinIO)
	}
	dir := cfg.Storage.LocalDir
	if dir == "" {
		dir = filepath.Join(cfg.Data.Dir, "blobs")
	}
	return storage.NewLocalStorage(dir)
}

func buildAuthService(ctx context.Context, cfg *AppConfig) (*auth.Service, error) {
	users, err := auth.NewFileStore(cfg.Data.Dir)
	if err != nil {
		return nil, err
	}

	secret := cfg.Auth.JWTSecret
	if secret == "" {
		generated, err := randomHex(32)
		if err != nil {
			return nil, err
		}
		secret = generated
		logger.Warn(ctx, "jwt secret not configured, generated an ephemeral one; sessions will not survive a restart")
	}
	tokens, err := auth.NewTokenIssuer([]byte(secret), cfg.Auth.JWTIssuer, cfg.Auth.SessionTTL)
	if err != nil {
		return nil, err
	}
	svc, err := auth.NewService(users, tokens)
	if err != nil {
		return nil, err
	}

	password := cfg.Auth.AdminPassword
	if password == "" {
		generated, err := randomHex(8)
		if err != nil {
			return nil, err
		}
		password = generated
		logger.Warn(ctx, "admin password not configured, generated one",
			zap.String("username", cfg.Auth.AdminUsername),
			zap.String("password", password))
	}
	if err := users.EnsureAdmin(ctx, cfg.Auth.AdminUsername, password); err != nil {
		return nil, err
	}
	return svc, nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random secret failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
