// Package bootstrap wires the server together: configuration, logging,
// storage, the attachment pipeline, and the two transports, started in
// dependency order and stopped on the first signal.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/swaggo/swag"
	"golang.org/x/sync/errgroup"

	domainattach "inkwell-server-go/internal/domain/attach"
	"inkwell-server-go/internal/domain/attach/dedupe"
	"inkwell-server-go/internal/domain/attach/store"
	domainauth "inkwell-server-go/internal/domain/auth"
	"inkwell-server-go/internal/domain/eventbus"
	eventinfra "inkwell-server-go/internal/domain/eventbus/infrastructure"
	domainimage "inkwell-server-go/internal/domain/image"
	"inkwell-server-go/internal/domain/upload"
	platformconfig "inkwell-server-go/internal/platform/config"
	platformerrors "inkwell-server-go/internal/platform/errors"
	platformlogging "inkwell-server-go/internal/platform/logging"
	platformobservability "inkwell-server-go/internal/platform/observability"
	platformstorage "inkwell-server-go/internal/platform/storage"
	httptransport "inkwell-server-go/internal/transport/http"
	httpattach "inkwell-server-go/internal/transport/http/attach"
	httpstatus "inkwell-server-go/internal/transport/http/status"
	"inkwell-server-go/internal/transport/ws"
)

const scalarHTML = `<!DOCTYPE html>
<html lang="en">
	<head>
		<meta charset="utf-8" />
		<title>Inkwell API Reference</title>
		<meta name="viewport" content="width=device-width, initial-scale=1" />
	</head>
	<body>
		<script
			id="api-reference"
			data-url="/openapi.json"
			data-layout="modern"
			src="https://cdn.jsdelivr.net/npm/@scalar/api-reference"
		></script>
	</body>
</html>`

type stepFn func(context.Context, *appState) error

type initStep struct {
	ID        string
	Title     string
	DependsOn []string
	Kind      platformerrors.Kind
	Execute   stepFn
}

type appState struct {
	config                *platformconfig.Config
	configPath            string
	logger                *platformlogging.Logger
	slogger               *slog.Logger
	observabilityShutdown platformobservability.ShutdownFunc
	blobs                 store.BlobStore
	index                 dedupe.Index
	pipeline              *domainimage.Pipeline
	attachments           *domainattach.AttachmentService
}

// Run starts the whole server lifecycle: init steps, both transports,
// and graceful shutdown on SIGINT/SIGTERM.
func Run(ctx context.Context) error {
	state := &appState{}

	steps := InitGraph()
	if err := executeInitSteps(ctx, steps, state); err != nil {
		return err
	}

	config := state.config
	logger := state.logger
	if config == nil || logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"config/logger not initialised",
		)
	}
	if state.attachments == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"bootstrap state validation",
			"attachment service not initialised",
		)
	}

	logBootstrapGraph(steps, logger)

	if shutdown := state.observabilityShutdown; shutdown != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(shutdownCtx); err != nil {
				logger.WarnTag("Bootstrap", "observability did not shut down cleanly: %v", err)
			}
		}()
	}

	defer func() {
		if state.index != nil {
			if err := state.index.Close(context.Background()); err != nil {
				logger.WarnTag("Bootstrap", "dedupe index did not close cleanly: %v", err)
			}
		}
		eventbus.Shutdown()
	}()

	rootCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	signalCtx, stop := signal.NotifyContext(rootCtx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	group, groupCtx := errgroup.WithContext(rootCtx)

	if err := startServices(state, group, groupCtx); err != nil {
		cancel()
		return err
	}

	if err := waitForShutdown(signalCtx, cancel, logger, group); err != nil {
		return err
	}

	logger.InfoTag("Bootstrap", "server stopped cleanly")
	logger.Close()
	return nil
}

func logBootstrapGraph(steps []initStep, logger *platformlogging.Logger) {
	if logger == nil {
		return
	}
	logger.InfoTag("Bootstrap", "init sequence completed:")
	for _, step := range steps {
		logger.InfoTag("Bootstrap", "  %s (%s)", step.ID, step.Title)
	}
	logger.InfoTag("Bootstrap", "starting services")
}

func executeInitSteps(ctx context.Context, steps []initStep, state *appState) error {
	if state == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"execute init steps",
			"nil bootstrap state",
		)
	}

	completed := make(map[string]struct{}, len(steps))
	for _, step := range steps {
		for _, dep := range step.DependsOn {
			if _, ok := completed[dep]; !ok {
				return platformerrors.New(
					platformerrors.KindBootstrap,
					step.ID,
					fmt.Sprintf("dependency %s not satisfied", dep),
				)
			}
		}
		if step.Execute == nil {
			return platformerrors.New(
				platformerrors.KindBootstrap,
				step.ID,
				"missing execute function",
			)
		}
		if err := step.Execute(ctx, state); err != nil {
			var typed *platformerrors.Error
			if errors.As(err, &typed) {
				return err
			}

			kind := step.Kind
			if kind == "" {
				kind = platformerrors.KindBootstrap
			}
			return platformerrors.Wrap(kind, step.ID, "bootstrap step failed", err)
		}
		completed[step.ID] = struct{}{}
	}
	return nil
}

// InitGraph declares the init steps in dependency order.
func InitGraph() []initStep {
	return []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
		{
			ID:        "storage:init-database",
			Title:     "Initialise database",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindStorage,
			Execute:   initDatabaseStep,
		},
		{
			ID:        "eventbus:setup-handlers",
			Title:     "Install event handlers",
			DependsOn: []string{"logging:init-provider", "storage:init-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupEventHandlersStep,
		},
		{
			ID:        "observability:setup-hooks",
			Title:     "Setup observability hooks",
			DependsOn: []string{"logging:init-provider"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   setupObservabilityStep,
		},
		{
			ID:        "attach:init-components",
			Title:     "Initialise attachment pipeline",
			DependsOn: []string{"logging:init-provider", "storage:init-database"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initAttachComponentsStep,
		},
	}
}

func loadConfigStep(_ context.Context, state *appState) error {
	result, err := platformconfig.NewLoader().Load()
	if err != nil {
		return err
	}
	state.config = result.Config
	state.configPath = result.Path
	return nil
}

func initLoggingStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"logging:init-provider",
			"config not loaded",
		)
	}

	logger, err := platformlogging.New(platformlogging.Config{
		Level:    state.config.Log.Level,
		Dir:      state.config.Log.Dir,
		Filename: state.config.Log.File,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "logging:init-provider", "failed to initialize logging provider", err)
	}

	state.logger = logger
	state.slogger = logger.Slog()
	platformlogging.DefaultLogger = logger

	logger.InfoTag(
		"Bootstrap",
		"logging ready [%s] config from %s",
		state.config.Log.Level,
		state.configPath,
	)
	return nil
}

func initDatabaseStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"storage:init-database",
			"config not loaded",
		)
	}
	if err := platformstorage.InitDatabase(state.config.Database.Path); err != nil {
		return platformerrors.Wrap(platformerrors.KindStorage, "storage:init-database", "failed to initialize database", err)
	}
	return nil
}

func setupEventHandlersStep(_ context.Context, state *appState) error {
	if state == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"eventbus:setup-handlers",
			"logger not initialised",
		)
	}

	journal := eventinfra.NewEventRepository(platformstorage.GetDB())
	eventbus.SetupEventHandlers(state.logger, journal)
	return nil
}

func setupObservabilityStep(ctx context.Context, state *appState) error {
	if state == nil || state.logger == nil || state.config == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"observability:setup-hooks",
			"config/logger not initialised",
		)
	}

	slogger := state.slogger
	if slogger == nil {
		slogger = state.logger.Slog()
	}

	cfg := platformobservability.Config{
		Enabled: strings.EqualFold(state.config.Log.Level, "debug"),
	}

	shutdown, err := platformobservability.Setup(ctx, cfg, slogger)
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "observability:setup-hooks", "failed to setup observability hooks", err)
	}
	state.observabilityShutdown = shutdown

	return nil
}

func initAttachComponentsStep(_ context.Context, state *appState) error {
	if state == nil || state.config == nil || state.logger == nil {
		return platformerrors.New(
			platformerrors.KindBootstrap,
			"attach:init-components",
			"missing config/logger",
		)
	}
	config := state.config
	logger := state.logger

	blobs, err := store.New(blobStoreConfig(config, logger))
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "attach:init-components", "failed to create blob store", err)
	}
	state.blobs = blobs

	index, err := dedupe.New(dedupeConfig(config, logger))
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "attach:init-components", "failed to create dedupe index", err)
	}
	state.index = index

	pipeline, err := domainimage.NewPipeline(domainimage.Options{
		Security: &config.Security,
		Logger:   logger,
	})
	if err != nil {
		return platformerrors.Wrap(platformerrors.KindBootstrap, "attach:init-components", "failed to create image pipeline", err)
	}
	state.pipeline = pipeline

	repo := platformstorage.NewAttachmentRepository(platformstorage.GetDB())
	state.attachments = domainattach.NewAttachmentService(blobs, index, repo, pipeline, logger)

	logger.InfoTag("Bootstrap", "attachment pipeline ready: store=%s dedupe=%s",
		config.Attach.Store.Driver, config.Attach.Dedupe.Driver)
	return nil
}

// blobStoreConfig maps the app config onto the blob store driver
// config. Unknown drivers fall back to disk with a warning.
func blobStoreConfig(config *platformconfig.Config, logger *platformlogging.Logger) store.Config {
	driver := strings.ToLower(strings.TrimSpace(config.Attach.Store.Driver))
	cfg := store.Config{
		Driver:     driver,
		Dir:        config.Attach.Store.Dir,
		PublicBase: config.Web.PublicURL,
	}

	switch driver {
	case "", store.DriverDisk:
		cfg.Driver = store.DriverDisk
	case store.DriverMinio:
		cfg.Minio = &store.MinioConfig{
			Endpoint:  config.Attach.Store.Minio.Endpoint,
			AccessKey: config.Attach.Store.Minio.AccessKey,
			SecretKey: config.Attach.Store.Minio.SecretKey,
			Bucket:    config.Attach.Store.Minio.Bucket,
			UseSSL:    config.Attach.Store.Minio.UseSSL,
		}
	default:
		logger.WarnTag("Bootstrap", "unknown blob store driver %q, falling back to disk", driver)
		cfg.Driver = store.DriverDisk
	}
	return cfg
}

// dedupeConfig maps the app config onto the dedupe driver config.
// Unknown drivers fall back to memory with a warning.
func dedupeConfig(config *platformconfig.Config, logger *platformlogging.Logger) dedupe.Config {
	driver := strings.ToLower(strings.TrimSpace(config.Attach.Dedupe.Driver))
	cfg := dedupe.Config{
		Driver: driver,
		TTL:    config.Attach.Dedupe.TTL,
	}

	switch driver {
	case "", dedupe.DriverMemory:
		cfg.Driver = dedupe.DriverMemory
		cfg.Memory = &dedupe.MemoryConfig{
			GCInterval: config.Attach.Dedupe.Memory.Cleanup,
		}
	case dedupe.DriverRedis:
		cfg.Redis = &dedupe.RedisConfig{
			Addr:     config.Attach.Dedupe.Redis.Addr,
			Username: config.Attach.Dedupe.Redis.Username,
			Password: config.Attach.Dedupe.Redis.Password,
			DB:       config.Attach.Dedupe.Redis.DB,
			Prefix:   config.Attach.Dedupe.Redis.Prefix,
		}
	default:
		logger.WarnTag("Bootstrap", "unknown dedupe driver %q, falling back to memory", driver)
		cfg.Driver = dedupe.DriverMemory
		cfg.Memory = &dedupe.MemoryConfig{
			GCInterval: config.Attach.Dedupe.Memory.Cleanup,
		}
	}
	return cfg
}

// buildUploadConfig turns the app upload section into the orchestrator
// template handed to every editor session.
func buildUploadConfig(config *platformconfig.Config) upload.Config {
	template := upload.Config{
		URL:             config.Upload.URL,
		Method:          config.Upload.Method,
		FieldName:       config.Upload.FieldName,
		WithCredentials: config.Upload.WithCredentials,
		Headers:         config.Upload.Headers,
		PastePolicy:     upload.PastePolicy(config.Upload.PastePolicy),
	}
	if config.Upload.CSRFToken != "" {
		template.CSRF = &upload.CSRF{
			Token: config.Upload.CSRFToken,
			Hash:  config.Upload.CSRFHash,
		}
	}
	return template
}

func startServices(state *appState, g *errgroup.Group, groupCtx context.Context) error {
	if _, err := startRelayServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("failed to start editor relay: %w", err)
	}

	if _, err := startHTTPServer(state, g, groupCtx); err != nil {
		return fmt.Errorf("failed to start http server: %w", err)
	}

	return nil
}

func startRelayServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*ws.Server, error) {
	config := state.config
	logger := state.logger

	hub := ws.NewHub(logger)
	router := ws.NewRouter(hub, logger, ws.RouterOptions{})
	relayServer := ws.NewServer(ws.ServerConfig{
		Addr: fmt.Sprintf("%s:%d", config.Server.IP, config.Server.Port),
		Path: config.Server.Path,
	}, router, hub, logger)

	template := buildUploadConfig(config)
	relayServer.SetHandlerBuilder(func(conn *ws.Connection, req *http.Request) (ws.SessionHandler, error) {
		return ws.NewEditorSession(conn, ws.EditorSessionOptions{
			Logger: logger,
			Upload: template,
		})
	})

	g.Go(func() error {
		go func() {
			<-groupCtx.Done()
			logger.InfoTag("Relay", "shutdown signal received, stopping editor relay")
			if err := relayServer.Stop(); err != nil {
				logger.ErrorTag("Relay", "editor relay shutdown failed: %v", err)
			} else {
				logger.InfoTag("Relay", "editor relay stopped")
			}
		}()

		if err := relayServer.Start(groupCtx); err != nil {
			if groupCtx.Err() != nil {
				return nil
			}
			logger.ErrorTag("Relay", "editor relay failed: %v", err)
			return err
		}
		return nil
	})

	logger.InfoTag("Relay", "editor relay listening on ws://%s:%d%s",
		config.Server.IP, config.Server.Port, config.Server.Path)
	return relayServer, nil
}

func startHTTPServer(state *appState, g *errgroup.Group, groupCtx context.Context) (*http.Server, error) {
	config := state.config
	logger := state.logger

	if !config.Web.Enabled {
		logger.InfoTag("HTTP", "web surface disabled by config")
		return nil, nil
	}

	var authMiddleware gin.HandlerFunc
	if config.Web.AuthSecret != "" {
		tokens := domainauth.NewSessionToken(config.Web.AuthSecret)
		authMiddleware = httptransport.BearerAuth(tokens, logger)
	} else {
		logger.WarnTag("HTTP", "no auth secret configured, mutating routes are open")
	}

	attachmentsDir := ""
	if strings.EqualFold(config.Attach.Store.Driver, store.DriverDisk) || config.Attach.Store.Driver == "" {
		attachmentsDir = config.Attach.Store.Dir
	}

	httpRouter, err := httptransport.Build(httptransport.Options{
		Config:         config,
		Logger:         logger,
		AuthMiddleware: authMiddleware,
		StaticRoot:     config.Web.StaticDir,
		AttachmentsDir: attachmentsDir,
	})
	if err != nil {
		return nil, err
	}
	router := httpRouter.Engine

	router.NoRoute(func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/api") {
			c.JSON(http.StatusNotFound, httptransport.APIResponse{
				Success: false,
				Data:    gin.H{},
				Message: "api not found",
				Code:    http.StatusNotFound,
			})
			return
		}
		c.File(config.Web.StaticDir + "/index.html")
	})

	attachService, err := httpattach.NewService(config, logger, state.attachments)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "attach:new-service", "failed to create attach service", err)
	}
	statusService, err := httpstatus.NewService(config, logger, state.attachments)
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindTransport, "status:new-service", "failed to create status service", err)
	}

	if err := attachService.Register(groupCtx, httpRouter.API, httpRouter.Secured); err != nil {
		return nil, err
	}
	if err := statusService.Register(groupCtx, httpRouter.API); err != nil {
		return nil, err
	}

	router.GET("/openapi.json", func(c *gin.Context) {
		doc, err := swag.ReadDoc()
		if err != nil {
			logger.ErrorTag("HTTP", "failed to produce the OpenAPI document: %v", err)
			c.JSON(http.StatusInternalServerError, httptransport.APIResponse{
				Success: false,
				Data:    gin.H{"error": err.Error()},
				Message: "failed to generate openapi spec",
				Code:    http.StatusInternalServerError,
			})
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(doc))
	})

	router.GET("/docs", func(c *gin.Context) {
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(scalarHTML))
	})

	httpServer := &http.Server{
		Addr:    ":" + strconv.Itoa(config.Web.Port),
		Handler: router,
	}

	g.Go(func() error {
		logger.InfoTag("HTTP", "web surface listening on http://localhost:%d", config.Web.Port)
		logger.InfoTag("HTTP", "attachment sink: http://localhost:%d/api/attach", config.Web.Port)
		logger.InfoTag("HTTP", "api reference: http://localhost:%d/docs", config.Web.Port)

		go func() {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.ErrorTag("HTTP", "http shutdown failed: %v", err)
			} else {
				logger.InfoTag("HTTP", "http server stopped")
			}
		}()

		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.ErrorTag("HTTP", "http server failed: %v", err)
			return err
		}
		return nil
	})

	return httpServer, nil
}

func waitForShutdown(
	ctx context.Context,
	cancel context.CancelFunc,
	logger *platformlogging.Logger,
	g *errgroup.Group,
) error {
	<-ctx.Done()
	logger.InfoTag("Bootstrap", "signal received (%v), cleaning up", context.Cause(ctx))

	cancel()

	done := make(chan error, 1)
	go func() {
		done <- g.Wait()
	}()

	select {
	case err := <-done:
		if err != nil {
			logger.ErrorTag("Bootstrap", "error during shutdown: %v", err)
			return err
		}
		logger.InfoTag("Bootstrap", "all services stopped")
	case <-time.After(15 * time.Second):
		timeoutErr := errors.New("service shutdown timed out")
		logger.ErrorTag("Bootstrap", "shutdown timed out, forcing exit")
		return timeoutErr
	}
	return nil
}

// loadConfigAndLogger runs the config and logging steps only, for tests.
func loadConfigAndLogger() (*platformconfig.Config, *platformlogging.Logger, error) {
	state := &appState{}

	steps := []initStep{
		{
			ID:      "config:load",
			Title:   "Load configuration",
			Kind:    platformerrors.KindConfig,
			Execute: loadConfigStep,
		},
		{
			ID:        "logging:init-provider",
			Title:     "Initialise logging provider",
			DependsOn: []string{"config:load"},
			Kind:      platformerrors.KindBootstrap,
			Execute:   initLoggingStep,
		},
	}

	if err := executeInitSteps(context.Background(), steps, state); err != nil {
		return nil, nil, err
	}

	return state.config, state.logger, nil
}
