package handler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/settingsd/settingsd/internal/config"
	"github.com/settingsd/settingsd/internal/engine"
)

// Service is the interface for a web handler service.
type Service interface {
	Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error
}
