// Package settings exposes the settings engine as a JSON API.
package settings

import (
	"encoding/json"
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"

	"github.com/settingsd/settingsd/internal/config"
	"github.com/settingsd/settingsd/internal/db/controller/setting"
	"github.com/settingsd/settingsd/internal/engine"
	"github.com/settingsd/settingsd/internal/scope"
	"github.com/settingsd/settingsd/internal/validation"
	"github.com/settingsd/settingsd/internal/web/handler"
)

// Path is the base path of the settings API routes.
const Path = handler.APIPrefix + "/settings"

// Service is the settings API handler service.
type Service struct {
	handler.Service
	cfg    *config.Config
	engine *engine.Engine
}

// Handler is the settings API handler.
var Handler = Service{}

// Init initializes the settings API handler and registers its routes.
func (s *Service) Init(app *fiber.App, cfg *config.Config, eng *engine.Engine) error {
	if app == nil || cfg == nil || eng == nil {
		return errors.New(handler.ErrNilACEFatalLogMsg)
	}

	s.cfg = cfg
	s.engine = eng

	app.Route(Path, func(router fiber.Router) {
		router.Get("/", s.List)
		router.Get("/search", s.Search)
		router.Get("/stats", s.Stats)

		router.Get("/global/:key", s.Get)
		router.Put("/global/:key", s.Put)
		router.Delete("/global/:key", s.Delete)
		router.Post("/global", s.PutMany)
		router.Delete("/global", s.Clear)

		router.Get("/model/:type/:id/:key", s.Get)
		router.Put("/model/:type/:id/:key", s.Put)
		router.Delete("/model/:type/:id/:key", s.Delete)
		router.Post("/model/:type/:id", s.PutMany)
		router.Delete("/model/:type/:id", s.Clear)
	})

	return nil
}

// Get returns a single setting value, nested paths included.
func (s *Service) Get(c *fiber.Ctx) error {
	sc := requestScope(c)
	key := c.Params("key")

	found, err := s.engine.Has(sc, key)
	if err != nil {
		return s.fail(c, err, "has")
	}

	if !found {
		return c.Status(fiber.StatusNotFound).JSON(errorBody{Error: "setting not found"})
	}

	value, err := s.engine.Get(sc, key, nil)
	if err != nil {
		return s.fail(c, err, "get")
	}

	return c.JSON(valueBody{Key: key, Value: value})
}

// Put stores a single setting value, optionally with metadata.
func (s *Service) Put(c *fiber.Ctx) error {
	sc := requestScope(c)
	key := c.Params("key")

	var req putRequest
	if err := json.Unmarshal(c.Body(), &req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "invalid JSON body"})
	}

	var value any
	if len(req.Value) > 0 {
		if err := json.Unmarshal(req.Value, &value); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "invalid value"})
		}
	}

	if err := s.engine.SetWithMeta(sc, key, value, req.Name, req.Description); err != nil {
		return s.fail(c, err, "set")
	}

	return c.JSON(valueBody{Key: key, Value: value})
}

// PutMany stores a batch of settings atomically.
func (s *Service) PutMany(c *fiber.Ctx) error {
	sc := requestScope(c)

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(c.Body(), &raw); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "invalid JSON body"})
	}

	batch := make(map[string]any, len(raw))

	for key, msg := range raw {
		var value any
		if err := json.Unmarshal(msg, &value); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "invalid value for key " + key})
		}

		batch[key] = value
	}

	if err := s.engine.SetMany(sc, batch); err != nil {
		return s.fail(c, err, "set_many")
	}

	return c.JSON(countBody{Count: len(batch)})
}

// Delete removes a setting or a nested field of one.
func (s *Service) Delete(c *fiber.Ctx) error {
	sc := requestScope(c)
	key := c.Params("key")

	removed, err := s.engine.Forget(sc, key)
	if err != nil {
		return s.fail(c, err, "forget")
	}

	if !removed {
		return c.Status(fiber.StatusNotFound).JSON(errorBody{Error: "setting not found"})
	}

	return c.JSON(removedBody{Key: key, Removed: true})
}

// Clear removes every setting in the addressed scope.
func (s *Service) Clear(c *fiber.Ctx) error {
	sc := requestScope(c)

	count, err := s.engine.Clear(sc)
	if err != nil {
		return s.fail(c, err, "clear")
	}

	return c.JSON(countBody{Count: int(count)})
}

// List returns all settings, optionally filtered to one scope via the
// type and id query parameters.
func (s *Service) List(c *fiber.Ctx) error {
	settings, err := s.engine.All(queryScope(c))
	if err != nil {
		return s.fail(c, err, "list")
	}

	return c.JSON(toEntries(settings))
}

// Search returns the settings whose keys match a glob pattern.
func (s *Service) Search(c *fiber.Ctx) error {
	pattern := c.Query("pattern")
	if pattern == "" {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: "pattern query parameter is required"})
	}

	settings, err := s.engine.Search(pattern, queryScope(c))
	if err != nil {
		return s.fail(c, err, "search")
	}

	return c.JSON(toEntries(settings))
}

// Stats returns setting counts per scope.
func (s *Service) Stats(c *fiber.Ctx) error {
	stats, err := s.engine.Stats()
	if err != nil {
		return s.fail(c, err, "stats")
	}

	return c.JSON(stats)
}

// fail translates engine errors into HTTP statuses.
func (s *Service) fail(c *fiber.Ctx, err error, op string) error {
	var agg *validation.Aggregate

	switch {
	case errors.As(err, &agg):
		return c.Status(fiber.StatusBadRequest).JSON(aggregateBody(agg))
	case errors.Is(err, validation.ErrInvalidKey), errors.Is(err, validation.ErrInvalidValue):
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: err.Error()})
	case errors.Is(err, engine.ErrCancelled):
		return c.Status(fiber.StatusConflict).JSON(errorBody{Error: err.Error()})
	case errors.Is(err, engine.ErrConcurrentModification):
		return c.Status(fiber.StatusConflict).JSON(errorBody{Error: err.Error()})
	case errors.Is(err, setting.ErrInvalidScope):
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{Error: err.Error()})
	}

	log.Error().Err(err).Str("op", op).Msg("settings API request failed")

	return c.Status(fiber.StatusInternalServerError).JSON(errorBody{Error: "internal error"})
}

// requestScope derives the addressed scope from the route parameters. Routes
// without owner parameters address the global scope.
func requestScope(c *fiber.Ctx) scope.Scope {
	ownerType := c.Params("type")
	if ownerType == "" {
		return scope.Global()
	}

	return scope.Owned(ownerType, c.Params("id"))
}

// queryScope derives an optional scope filter from query parameters.
func queryScope(c *fiber.Ctx) *scope.Scope {
	ownerType := c.Query("type")
	if ownerType == "" {
		return nil
	}

	sc := scope.Owned(ownerType, c.Query("id"))

	return &sc
}
