// Package web serves the settings JSON API with fiber.
package web

import (
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/settingsd/settingsd/internal/config"
	"github.com/settingsd/settingsd/internal/engine"
	fiberlogger "github.com/settingsd/settingsd/internal/logger/adapter/fiber"
	"github.com/settingsd/settingsd/internal/web/handler"
	"github.com/settingsd/settingsd/internal/web/handler/settings"
	"github.com/settingsd/settingsd/internal/web/handler/transfer"
)

// CheckAlivePath is the liveness probe endpoint.
const CheckAlivePath = "/checkalive"

// Service represents the web service.
type Service struct {
	App          *fiber.App
	cfg          *config.Config
	fastShutDown bool
	alive        atomic.Bool
	engine       *engine.Engine
}

// Start starts the web service on the given address.
func (s *Service) Start(addr string) error {
	var doneFiber = make(chan bool)

	go func() {
		if err := s.App.Listen(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Msgf("fiber listen error: %v", err)
		}

		doneFiber <- true
	}()

	<-doneFiber // wait for fiber to stop

	return nil
}

// WaitShutdown waits for graceful shutdown of the web service.
func (s *Service) WaitShutdown() {
	irqSig := make(chan os.Signal, 1)
	signal.Notify(irqSig, syscall.SIGINT, syscall.SIGTERM)

	// Wait interrupt or shutdown request through /shutdown
	sig := <-irqSig
	log.Info().Msgf("shutdown request (signal: %v)", sig)

	// Graceful shutdown for reverse proxies: set status to fail, so checkalive returns fail.
	if !s.fastShutDown {
		log.Info().Msgf(
			"graceful shutdown: return 503 while %d seconds to let LB to remove this pod from active targets",
			s.cfg.Webserver.ShutDownTime,
		)

		s.alive.Store(false)
		time.Sleep(time.Duration(s.cfg.Webserver.ShutDownTime) * time.Second)
	}

	// stop fiber http server
	serverShutdown := make(chan struct{})

	go func() {
		log.Info().Msg("stopping http server ...")

		err := s.App.Shutdown()
		if err != nil {
			log.Error().Err(err).Msg("")
		}

		serverShutdown <- struct{}{}
	}()

	<-serverShutdown
	log.Info().Msg("http server was stopped ... good bye...")
}

// New creates a new web service with the given configuration.
func New(cfg *config.Config, eng *engine.Engine) *Service {
	if cfg == nil {
		panic("config cannot be nil")
	}

	if eng == nil {
		panic("engine cannot be nil")
	}

	// create fiber app
	app := fiber.New(
		fiber.Config{
			ReadBufferSize: 8192,
			AppName:        cfg.Title,
			CaseSensitive:  true,
			Prefork:        false,
			Immutable:      true,
		},
	)

	if !cfg.Webserver.DisableRecover {
		app.Use(recover.New())
	}

	// access logging with the zerolog adapter
	app.Use(fiberlogger.New(fiberlogger.Config{
		Config:        cfg.Log,
		CheckAliveURI: CheckAlivePath,
	}))

	// init web service
	service := &Service{
		cfg:    cfg,
		App:    app,
		engine: eng,
	}
	service.alive.Store(true)

	// liveness endpoint for load balancers
	app.Get(CheckAlivePath, func(c *fiber.Ctx) error {
		if !service.alive.Load() {
			return c.Status(fiber.StatusServiceUnavailable).SendString("shutting down")
		}

		return c.SendString("ok")
	})

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// init handlers (they register their own routes)
	if err := settings.Handler.Init(app, cfg, eng); err != nil {
		log.Fatal().Err(err).Msg(handler.ErrNilACEFatalLogMsg)
	}

	if err := transfer.Handler.Init(app, cfg, eng); err != nil {
		log.Fatal().Err(err).Msg(handler.ErrNilACEFatalLogMsg)
	}

	return service
}
