package handler

const (
	// RootPath is the root path of a route group.
	RootPath = "/"

	// APIPrefix is the common prefix of all JSON API routes.
	APIPrefix = "/api/v1"

	// ErrNilACEFatalLogMsg is used if app, cfg or engine var pointer is nil.
	ErrNilACEFatalLogMsg = "app, cfg or engine is nil"
)
