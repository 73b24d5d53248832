package core

// AdapterConfig is the connection configuration of a target store.
// File-backed stores read Path; network stores read Host, Port, Database
// and the credentials.
type AdapterConfig struct {
	// Type names the registered target type ("duckdb", "postgres").
	Type string
	// Path is the database file, or ":memory:".
	Path string

	Host     string
	Port     int
	Database string
	Username string
	Password string

	// Schema holds the star tables. Postgres creates it if missing.
	Schema string
	// Options holds driver connection options such as sslmode.
	Options map[string]string
	// Params are adapter-specific settings, decoded by the adapter.
	Params map[string]any
}
