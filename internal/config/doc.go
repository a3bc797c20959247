// Package config provides configuration loading, merging, and path
// management for ctxhub.
//
// # Configuration Loading
//
// The Load function searches for and merges configuration from several
// sources in priority order:
//
//  1. Global config (~/.config/ctxhub/)
//  2. Workspace config (ctxhub.json, ctxhub.jsonc, ctxhub.yaml,
//     ctxhub.yml, and the same names under .ctxhub/)
//  3. CTXHUB_CONFIG file
//  4. CTXHUB_CONFIG_CONTENT inline JSON
//  5. Workspace .env file (loaded into the environment, never
//     clobbering variables already set)
//  6. Environment variables
//
// Later sources override earlier ones; environment variables have the
// highest precedence.
//
// # Supported Formats
//
// JSON, JSONC (comments stripped with tidwall/jsonc), and YAML. JSON
// and JSONC files additionally support placeholder interpolation:
//
//   - {env:VAR_NAME} expands to an environment variable
//   - {file:path} expands to file contents, escaped for JSON; paths
//     may be absolute, relative to the config file, or ~/ prefixed
//
// # Environment Variable Overrides
//
//   - CTXHUB_HOST, CTXHUB_PORT - listen address
//   - CTXHUB_WORKSPACE - workspace root for file sources
//   - CTXHUB_DATA_DIR - directory for persisted source state
//   - CTXHUB_LOG_LEVEL - minimum log level
//   - CTXHUB_PING_INTERVAL - liveness probe interval (e.g. "30s")
//   - CTXHUB_ALLOWED_ORIGINS - comma-separated Origin allowlist
//   - CTXHUB_PERSIST - enable or disable persistence
//   - CTXHUB_CONFIG, CTXHUB_CONFIG_CONTENT, CTXHUB_CONFIG_DIR -
//     loader controls
//
// # Path Management
//
// The Paths type resolves XDG Base Directory locations (Data, Config,
// Cache, State) with APPDATA fallbacks on Windows.
package config
