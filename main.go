package main

import (
	"context"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"obesityrisk/assessment"
	"obesityrisk/config"
	qhttp "obesityrisk/http"
	"obesityrisk/logging"
	"obesityrisk/ml"
	"obesityrisk/monitoring"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config.yaml")
	flag.Parse()

	// 1. Load config
	cfg, err := config.Load(*configPath)
	if os.IsNotExist(err) {
		cfg, err = config.Default(), nil
	}
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		os.Stderr.WriteString("failed to build logger: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer logger.Sync()

	// 2. Load the trained pipeline; serving without one is pointless
	pipeline, err := ml.LoadPipeline(cfg.Model.Path)
	if err != nil {
		logger.Fatal("failed to load model artifact", zap.Error(err))
	}
	info := pipeline.Info()
	logger.Info("model loaded",
		zap.String("path", cfg.Model.Path),
		zap.Time("trained_at", info.TrainedAt),
		zap.Int("trees", pipeline.NumTrees()),
		zap.Float64("accuracy", info.Accuracy),
	)

	metrics := monitoring.NewPredictionMetrics()
	service, err := assessment.NewService(pipeline, cfg.Model.CacheSize, metrics, logger)
	if err != nil {
		logger.Fatal("failed to build assessment service", zap.Error(err))
	}

	var watcher *monitoring.ArtifactWatcher
	deps := qhttp.Deps{Service: service, Model: pipeline, Logger: logger}
	if cfg.Model.Watch {
		watcher, err = monitoring.NewArtifactWatcher(cfg.Model.Path, logger)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			deps.Watcher = watcher
		}
	}

	// 3. Start HTTP server
	serverConfig := qhttp.DefaultServerConfig()
	serverConfig.Port = cfg.Http.Port
	serverConfig.ReadTimeout = cfg.Http.ReadTimeout
	serverConfig.WriteTimeout = cfg.Http.WriteTimeout
	server, err := qhttp.NewServer(serverConfig, deps)
	if err != nil {
		logger.Fatal("failed to build http server", zap.Error(err))
	}
	go func() {
		logger.Info("http server listening", zap.String("addr", server.Addr()))
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("http server failed", zap.Error(err))
		}
	}()

	// 4. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
	defer cancel()
	err = server.Stop(ctx)
	if watcher != nil {
		err = multierr.Append(err, watcher.Close())
	}
	if err != nil {
		logger.Error("shutdown incomplete", zap.Error(err))
	}
	logger.Info("exiting")
}
