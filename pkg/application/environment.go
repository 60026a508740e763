package application

import (
	"fmt"
	"strings"
)

// Environment variable names forming the external configuration contract.
const (
	// EnvInfrastructureFactory selects the recorder implementation by
	// topic string ("memory" or "sqlite").
	EnvInfrastructureFactory = "INFRASTRUCTURE_FACTORY"

	// EnvIsSnapshottingEnabled enables snapshot store construction.
	EnvIsSnapshottingEnabled = "IS_SNAPSHOTTING_ENABLED"

	// EnvCipherTopic selects the cipher ("aesgcm" or "chacha20poly1305").
	EnvCipherTopic = "CIPHER_TOPIC"

	// EnvCipherKey carries the base64-encoded cipher key.
	EnvCipherKey = "CIPHER_KEY"

	// EnvCompressorTopic selects the compressor ("zstd" or "gzip").
	EnvCompressorTopic = "COMPRESSOR_TOPIC"

	// EnvSQLiteDBName is the SQLite data source name.
	EnvSQLiteDBName = "SQLITE_DBNAME"

	// EnvCreateTable controls whether the sqlite factory runs migrations.
	EnvCreateTable = "CREATE_TABLE"
)

// Environment is the configuration map handed to New. Using a plain map
// instead of os.Getenv keeps construction testable; New never reads the
// process environment itself, so callers fill the map from whatever
// source they use.
type Environment map[string]string

// Get returns the value for key, or fallback when unset or empty.
func (e Environment) Get(key, fallback string) string {
	if v, ok := e[key]; ok && v != "" {
		return v
	}
	return fallback
}

var (
	truthy = map[string]bool{"y": true, "yes": true, "t": true, "true": true, "on": true, "1": true}
	falsy  = map[string]bool{"n": true, "no": true, "f": true, "false": true, "off": true, "0": true}
)

// ParseTruthy parses the accepted boolean tokens, case-insensitively.
// Truthy: y, yes, t, true, on, 1. Falsy: n, no, f, false, off, 0. Any
// other value is rejected.
func ParseTruthy(value string) (bool, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if truthy[v] {
		return true, nil
	}
	if falsy[v] {
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean value %q", value)
}
