package settings

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/settingsd/settingsd/internal/cache"
	"github.com/settingsd/settingsd/internal/config"
	"github.com/settingsd/settingsd/internal/db/models"
	"github.com/settingsd/settingsd/internal/engine"
	"github.com/settingsd/settingsd/internal/events"
	"github.com/settingsd/settingsd/internal/scope"
	"github.com/settingsd/settingsd/internal/validation"
)

// setupTestApp wires a fiber app with the settings handler over an in-memory
// database.
func setupTestApp(t *testing.T) (*fiber.App, *engine.Engine) {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	require.NoError(t, err, "failed to create test database")
	require.NoError(t, db.AutoMigrate(&models.Setting{}), "failed to migrate test database")

	store := cache.NewMemoryStore(time.Minute)
	t.Cleanup(func() { _ = store.Close() })

	eng := engine.New(
		db,
		cache.New(cache.Config{Enabled: true, DefaultTTL: time.Minute, UseTags: true}, store),
		events.NewBus(events.EnabledConfig()),
		validation.NewKeyValidator(0, "", validation.DefaultReservedPatterns),
		validation.NewValueValidator(0, nil),
		engine.Config{},
	)

	app := fiber.New()

	service := &Service{}
	require.NoError(t, service.Init(app, &config.Config{}, eng))

	return app, eng
}

func doJSON(t *testing.T, app *fiber.App, method, target, body string) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	payload, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	return resp, payload
}

func TestService_PutGetRoundTrip(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/global/site.name",
		`{"value": "My Site"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodGet, "/api/v1/settings/global/site.name", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body struct {
		Key   string `json:"key"`
		Value any    `json:"value"`
	}
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, "site.name", body.Key)
	assert.Equal(t, "My Site", body.Value)
}

func TestService_GetMissing(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/settings/global/unknown", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestService_PutInvalidKey(t *testing.T) {
	app, _ := setupTestApp(t)

	// reserved prefix is rejected by key validation
	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/global/__internal",
		`{"value": 1}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestService_PutInvalidBody(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/global/theme", `{not json`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestService_ModelScopeIsolation(t *testing.T) {
	app, eng := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/model/user/42/theme",
		`{"value": "dark"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// global scope stays empty
	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/settings/global/theme", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	value, err := eng.Get(scope.Owned("user", "42"), "theme", nil)
	require.NoError(t, err)
	assert.Equal(t, "dark", value)
}

func TestService_PutNestedAndDeleteNested(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/global/mail.host",
		`{"value": "smtp.example.com"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/settings/global/mail.port",
		`{"value": 25}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	// deleting one nested field keeps the sibling
	resp, _ = doJSON(t, app, http.MethodDelete, "/api/v1/settings/global/mail.port", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/settings/global/mail.host", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodGet, "/api/v1/settings/global/mail.port", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestService_DeleteMissing(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodDelete, "/api/v1/settings/global/unknown", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestService_PutManyAtomic(t *testing.T) {
	app, eng := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/settings/global",
		`{"a": 1, "b": 2}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	// one invalid key fails the whole batch
	resp, payload := doJSON(t, app, http.MethodPost, "/api/v1/settings/global",
		`{"c": 3, "__bad": 4}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	// the response names every offending entry
	var body batchErrorBody
	require.NoError(t, json.Unmarshal(payload, &body))
	require.Contains(t, body.Failures, "__bad")
	assert.NotContains(t, body.Failures, "c")

	found, err := eng.Has(scope.Global(), "c")
	require.NoError(t, err)
	assert.False(t, found, "rejected batch must not write any key")
}

func TestService_ListAndSearch(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/settings/global",
		`{"mail.host": "a", "site.name": "b"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodGet, "/api/v1/settings/", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var entries []entry
	require.NoError(t, json.Unmarshal(payload, &entries))
	assert.Len(t, entries, 2)

	resp, payload = doJSON(t, app, http.MethodGet, "/api/v1/settings/search?pattern=mail*", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	entries = nil
	require.NoError(t, json.Unmarshal(payload, &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "mail", entries[0].Key)
}

func TestService_SearchMissingPattern(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodGet, "/api/v1/settings/search", "")
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestService_Stats(t *testing.T) {
	app, _ := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/global/theme", `{"value": "x"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, app, http.MethodPut, "/api/v1/settings/model/user/1/theme", `{"value": "y"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodGet, "/api/v1/settings/stats", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var stats struct {
		Total  int64 `json:"total"`
		Global int64 `json:"global"`
	}
	require.NoError(t, json.Unmarshal(payload, &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(1), stats.Global)
}

func TestService_Clear(t *testing.T) {
	app, eng := setupTestApp(t)

	resp, _ := doJSON(t, app, http.MethodPost, "/api/v1/settings/model/team/7",
		`{"a": 1, "b": 2}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, payload := doJSON(t, app, http.MethodDelete, "/api/v1/settings/model/team/7", "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var body countBody
	require.NoError(t, json.Unmarshal(payload, &body))
	assert.Equal(t, 2, body.Count)

	found, err := eng.Has(scope.Owned("team", "7"), "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestService_ChangeCancellation(t *testing.T) {
	app, eng := setupTestApp(t)

	eng.Bus().OnChanging(func(ev *events.Changing) {
		ev.Cancel("locked")
	})

	resp, _ := doJSON(t, app, http.MethodPut, "/api/v1/settings/global/theme", `{"value": "x"}`)
	assert.Equal(t, fiber.StatusConflict, resp.StatusCode)
}
