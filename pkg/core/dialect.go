package core

// DialectConfig is the pure data description of a SQL dialect: how
// identifiers are quoted, how parameters are written, what the store's
// column types are called and which DDL it accepts.
type DialectConfig struct {
	Name string

	Identifiers IdentifierConfig

	// DefaultSchema is the default schema name ("main" for DuckDB, "public" for Postgres)
	DefaultSchema string

	// Placeholder defines how query parameters are formatted
	Placeholder PlaceholderStyle

	// Types maps each DataType to the store's column type.
	Types map[DataType]string

	// SupportsAddForeignKey is true when ALTER TABLE ... ADD CONSTRAINT ... FOREIGN KEY works.
	SupportsAddForeignKey bool
	// SupportsAddPrimaryKey is true when ALTER TABLE ... ADD CONSTRAINT ... PRIMARY KEY works.
	// Dialects without it enforce key uniqueness with a unique index.
	SupportsAddPrimaryKey bool
	// IdentitySequence is true when identity columns are emulated with a
	// named sequence and a nextval default instead of GENERATED ... AS IDENTITY.
	IdentitySequence bool
}

// NormalizationStrategy defines how unquoted identifiers are normalized.
type NormalizationStrategy int

const (
	// NormLowercase normalizes unquoted identifiers to lowercase (default SQL behavior).
	NormLowercase NormalizationStrategy = iota
	// NormUppercase normalizes unquoted identifiers to uppercase (Snowflake, Oracle).
	NormUppercase
	// NormCaseSensitive preserves identifier case exactly.
	NormCaseSensitive
	// NormCaseInsensitive normalizes to lowercase for comparison (DuckDB).
	NormCaseInsensitive
)

// PlaceholderStyle defines how query parameters are formatted.
type PlaceholderStyle int

const (
	// PlaceholderQuestion uses ? for all parameters (DuckDB, SQLite).
	PlaceholderQuestion PlaceholderStyle = iota
	// PlaceholderDollar uses $1, $2, etc. for parameters (PostgreSQL).
	PlaceholderDollar
)

// IdentifierConfig defines how identifiers are quoted and normalized.
type IdentifierConfig struct {
	Quote         string                // Quote character: ", `, [
	QuoteEnd      string                // End quote character (usually same as Quote, ] for [)
	Escape        string                // Escape sequence: "", ``, ]]
	Normalization NormalizationStrategy // How to normalize unquoted identifiers
}
