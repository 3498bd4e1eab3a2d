package logger

// Console implements a console based logger.
type Console struct {
	Enabled          bool `toml:"enabled"`
	UseConsoleWriter bool
}

// LogFile implements a file based logger.
type LogFile struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`

	ErrorLog        string `toml:"error"`
	ErrorMaxSize    int    `toml:"errorMaxSize"`
	ErrorMaxBackups int    `toml:"errorMaxBackups"`
	ErrorMaxAge     int    `toml:"errorMaxAge"`

	InfoLog        string `toml:"info"`
	InfoMaxSize    int    `toml:"infoMaxSize"`
	InfoMaxBackups int    `toml:"infoMaxBackups"`
	InfoMaxAge     int    `toml:"infoMaxAge"`

	TraceLog        string `toml:"trace"`
	TraceMaxSize    int    `toml:"traceMaxSize"`
	TraceMaxBackups int    `toml:"traceMaxBackups"`
	TraceMaxAge     int    `toml:"traceMaxAge"`

	WarnLog        string `toml:"warn"`
	WarnMaxSize    int    `toml:"warnMaxSize"`
	WarnMaxBackups int    `toml:"warnMaxBackups"`
	WarnMaxAge     int    `toml:"warnMaxAge"`

	AccessLog        string `toml:"access"`
	AccessMaxSize    int    `toml:"accessMaxSize"`
	AccessMaxBackups int    `toml:"accessMaxBackups"`
	AccessMaxAge     int    `toml:"accessMaxAge"`
}

// Log implements the logger config.
type Log struct {
	LogLevel string // info, warn, error.

	ReportCaller bool

	AppName     string
	ServiceName string

	// EnableAccessLogToConsole mirrors the http access log to the console.
	EnableAccessLogToConsole bool

	// DisableCheckAlive drops /checkalive calls from the access log.
	DisableCheckAlive bool

	// Console used mainly for docker and dev.
	Console Console

	// File logging for non docker environments.
	File LogFile `toml:"file"`
}
