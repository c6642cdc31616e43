package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sourcegraph/conc"

	server "github.com/kazz187/buildingdesk/internal"
	"github.com/kazz187/buildingdesk/internal/assignmentlog"
	assignmentlogrepo "github.com/kazz187/buildingdesk/internal/assignmentlog/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/auth"
	"github.com/kazz187/buildingdesk/internal/building"
	buildingrepo "github.com/kazz187/buildingdesk/internal/building/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/cache"
	"github.com/kazz187/buildingdesk/internal/config"
	"github.com/kazz187/buildingdesk/internal/database"
	"github.com/kazz187/buildingdesk/internal/eventbus"
	"github.com/kazz187/buildingdesk/internal/pushnotification"
	pushsubrepo "github.com/kazz187/buildingdesk/internal/pushsubscription/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/responsibility"
	responsibilityrepo "github.com/kazz187/buildingdesk/internal/responsibility/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/task"
	taskrepo "github.com/kazz187/buildingdesk/internal/task/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/tasktemplate"
	templaterepo "github.com/kazz187/buildingdesk/internal/tasktemplate/repositoryimpl"
	"github.com/kazz187/buildingdesk/internal/user"
	userrepo "github.com/kazz187/buildingdesk/internal/user/repositoryimpl"
	"github.com/kazz187/buildingdesk/pkg/clog"
	"github.com/kazz187/buildingdesk/pkg/panicerr"
	"github.com/kazz187/buildingdesk/pkg/storage"
)

func main() {
	env, err := config.LoadEnv()
	if err != nil {
		slog.Error("failed to load env", "error", err)
		os.Exit(1)
	}

	// Setup logger
	out, closer := clog.NewOutput(clog.FileConfig{
		Path:       env.LogFile,
		MaxSizeMB:  env.LogFileMaxSizeMB,
		MaxBackups: env.LogFileMaxBackups,
		MaxAgeDays: env.LogFileMaxAgeDays,
		Compress:   env.LogFileCompress,
	})
	defer closer.Close()
	level := env.SlogLevel()
	var handler slog.Handler
	if env.IsLocal() {
		handler = clog.NewHTTPTextHandler(out, clog.WithLevel(level))
	} else {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	}
	slog.SetDefault(slog.New(clog.NewAttributesHandler(handler)))

	if err := run(env); err != nil {
		slog.Error("server stopped with error", "error", err)
		closer.Close()
		os.Exit(1)
	}
}

func run(env *config.Env) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// Setup database
	pool, err := database.Connect(ctx, &env.DatabaseEnv)
	if err != nil {
		return err
	}
	defer pool.Close()
	if env.DatabaseMigrate {
		if err := database.Migrate(ctx, pool); err != nil {
			return err
		}
		slog.Info("database schema applied")
	}

	// Setup cache
	statsCache, err := cache.Connect(ctx, &env.CacheEnv)
	if err != nil {
		return err
	}
	defer statsCache.Close()

	// Setup storage
	store, err := newStorage(ctx, config.StorageEnvFromEnv(env))
	if err != nil {
		return err
	}

	// Setup event bus
	bus := eventbus.New()

	// Setup repositories
	userRepo := userrepo.NewPostgresRepository(pool)
	buildingRepo := buildingrepo.NewPostgresRepository(pool)
	templateRepo := templaterepo.NewPostgresRepository(pool)
	taskRepo := taskrepo.NewPostgresRepository(pool)
	assignmentLogRepo := assignmentlogrepo.NewYAMLRepository(store)
	pushSubRepo := pushsubrepo.NewYAMLRepository(store)

	// Setup responsibility engine
	engine := responsibility.NewEngine(userRepo, buildingRepo, responsibilityrepo.NewPostgresUnitOfWork(pool), bus)

	// Setup push notification
	vapidEnv := config.VAPIDEnvFromEnv(env)
	pushSender := pushnotification.NewSender(vapidEnv, pushSubRepo)

	// Setup servers
	tokens := auth.NewJWTManager(&env.AuthEnv)
	checker := server.NewDependencyChecker(map[string]server.Pinger{
		"database": pool,
		"cache":    statsCache,
		"storage":  store,
	})
	srv := server.NewServer(
		config.BaseEnvFromEnv(env),
		tokens,
		checker,
		auth.NewServer(userRepo, auth.NewPasswordHasher(env.BcryptCost), tokens),
		user.NewServer(userRepo),
		building.NewServer(buildingRepo, bus),
		responsibility.NewServer(engine, buildingRepo),
		tasktemplate.NewServer(templateRepo, statsCache, bus),
		task.NewServer(taskRepo, buildingRepo, templateRepo, bus),
		assignmentlog.NewServer(assignmentLogRepo),
		pushnotification.NewServer(vapidEnv, pushSubRepo, pushSender),
	)

	// Setup background workers
	statsKeys := []string{tasktemplate.StatsCacheKey}
	invalidator := cache.NewInvalidator(statsCache, bus, map[eventbus.EventType][]string{
		eventbus.EventTaskCreated:         statsKeys,
		eventbus.EventTaskUpdated:         statsKeys,
		eventbus.EventTaskDeleted:         statsKeys,
		eventbus.EventTaskCompleted:       statsKeys,
		eventbus.EventTaskTemplateChanged: statsKeys,
		eventbus.EventBuildingDeleted:     statsKeys,
	})
	recorder := assignmentlog.NewRecorder(bus, assignmentLogRepo)
	dispatcher := pushnotification.NewDispatcher(bus, buildingRepo, pushSender)

	var wg conc.WaitGroup
	panicerr.Go(ctx, &wg, "cache invalidator", invalidator.Start)
	panicerr.Go(ctx, &wg, "assignment log recorder", recorder.Start)
	panicerr.Go(ctx, &wg, "push dispatcher", dispatcher.Start)

	serveErr := make(chan error, 1)
	go func() {
		err := panicerr.SafeContext(srv.ListenAndServe)(ctx)
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			cancel()
			wg.Wait()
			return err
		}
	}
	slog.Info("shutting down server")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	wg.Wait()
	return nil
}

func newStorage(ctx context.Context, env *config.StorageEnv) (storage.Storage, error) {
	switch env.Type {
	case "s3":
		return storage.NewS3Storage(ctx, env.S3Bucket, env.S3Prefix, env.S3Region)
	default:
		return storage.NewLocalStorage(env.BaseDir)
	}
}
