// Package main provides the story server binary: a WebSocket endpoint
// for cooperative story rooms plus the REST surface for single-player
// adventures and streaming chat.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/storyloom/backend/internal/config"
	"github.com/storyloom/backend/internal/game/narration"
	"github.com/storyloom/backend/internal/game/room"
	"github.com/storyloom/backend/internal/game/story"
	"github.com/storyloom/backend/internal/game/turn"
	"github.com/storyloom/backend/internal/gameserver"
	"github.com/storyloom/backend/internal/hub"
	"github.com/storyloom/backend/internal/observability"
	"github.com/storyloom/backend/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	ctx := context.Background()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting story server",
		zap.String("addr", cfg.Server.Addr()),
		zap.String("model", cfg.Narration.Model),
	)

	bridge := narration.NewBridge(cfg.Narration, logger)
	rooms := room.NewStore(cfg.Game.RoomCapacity, logger)
	engine := turn.NewEngine(rooms, bridge, logger)
	registry := hub.NewRegistry(cfg.Game.SendBuffer, logger)
	dispatcher := gameserver.NewDispatcher(registry, rooms, engine, logger)
	stories := story.NewService(bridge, logger)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	gameserver.RegisterRoutes(e, dispatcher,
		gameserver.NewStoryHandler(stories, logger),
		gameserver.NewChatHandler(bridge, logger),
		logger,
	)

	lc := server.NewLifecycle(logger)
	lc.Add("http", &httpService{
		echo:            e,
		addr:            cfg.Server.Addr(),
		shutdownTimeout: cfg.Server.ShutdownTimeout,
		logger:          logger,
	})

	logger.Info("server initialized", zap.Duration("elapsed", time.Since(start)))

	if err := lc.Run(ctx); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

// httpService adapts the echo server to the lifecycle Service contract.
type httpService struct {
	echo            *echo.Echo
	addr            string
	shutdownTimeout time.Duration
	logger          *zap.Logger
}

func (s *httpService) Start() error {
	if err := s.echo.Start(s.addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *httpService) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.echo.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}
