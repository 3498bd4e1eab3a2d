// Package transfer exposes settings export and import over HTTP.
package transfer

import (
	"bytes"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/settingsd/settingsd/internal/config"
	"github.com/settingsd/settingsd/internal/engine"
	"github.com/settingsd/settingsd/internal/export"
	"github.com/settingsd/settingsd/internal/scope"
	"github.com/settingsd/settingsd/internal/validation"
	"github.com/settingsd/settingsd/internal/web/handler"
)

// Service is the export/import handler service.
type Service struct {
	handler.Service
	cfg    *config.Config
	engine *engine.Engine
}

// Handler is the export/import handler.
var Handler = Service{}

var contentTypes = map[export.Format]string{
	export.FormatJSON: fiber.MIMEApplicationJSON,
	export.FormatYAML: "application/yaml",
	export.FormatCSV:  "text/csv",
}

// Init initializes the export/import handler and registers its routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error {
	if app == nil || cfg == nil || eng == nil {
		return errors.New(handler.ErrNilACEFatalLogMsg)
	}

	s.cfg = cfg
	s.engine = eng

	app.Get(handler.APIPrefix+"/export", s.Export)
	app.Post(handler.APIPrefix+"/import", s.Import)

	return nil
}

// Export streams all settings, optionally restricted to one scope, in the
// requested format.
func (s *Service) Export(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format", "json"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	compress := c.QueryBool("gzip")

	settings, err := s.engine.All(queryScope(c))
	if err != nil {
		return s.fail(c, err, "export")
	}

	records, err := export.FromSettings(settings)
	if err != nil {
		return s.fail(c, err, "export")
	}

	var buf bytes.Buffer
	if err = export.Encode(&buf, records, format, compress); err != nil {
		return s.fail(c, err, "export")
	}

	if compress {
		c.Set(fiber.HeaderContentType, "application/gzip")
	} else {
		c.Set(fiber.HeaderContentType, contentTypes[format])
	}

	return c.Send(buf.Bytes())
}

// Import applies an uploaded settings dump to the store.
func (s *Service) Import(c *fiber.Ctx) error {
	format, err := export.ParseFormat(c.Query("format", "json"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	records, err := export.Decode(bytes.NewReader(c.Body()), format, c.QueryBool("gzip"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}

	if err = export.Apply(s.engine, records); err != nil {
		return s.fail(c, err, "import")
	}

	return c.JSON(fiber.Map{"imported": len(records)})
}

func (s *Service) fail(c *fiber.Ctx, err error, op string) error {
	var agg *validation.Aggregate

	switch {
	case errors.As(err, &agg):
		failures := make(map[string][]string, len(agg.Failures))
		for key, errs := range agg.Failures {
			for _, entry := range errs {
				failures[key] = append(failures[key], entry.Error())
			}
		}

		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": agg.Error(), "failures": failures})
	case errors.Is(err, validation.ErrInvalidKey), errors.Is(err, validation.ErrInvalidValue):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	case errors.Is(err, engine.ErrCancelled):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": err.Error()})
	}

	log.Error().Err(err).Str("op", op).Msg("transfer request failed")

	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "internal error"})
}

func queryScope(c *fiber.Ctx) *scope.Scope {
	ownerType := c.Query("type")
	if ownerType == "" {
		return nil
	}

	sc := scope.Owned(ownerType, c.Query("id"))

	return &sc
}
