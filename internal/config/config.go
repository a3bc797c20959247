package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/ctxhub-ai/ctxhub/pkg/types"
)

// Load assembles configuration from multiple sources (priority order):
//  1. Global config (~/.config/ctxhub/)
//  2. Workspace config (ctxhub.json[c], ctxhub.yaml, .ctxhub/ctxhub.json[c])
//  3. CTXHUB_CONFIG file
//  4. CTXHUB_CONFIG_CONTENT inline JSON
//  5. Workspace .env file
//  6. Environment variables
func Load(workspace string) (*types.Config, error) {
	config := &types.Config{}

	// Track loaded files so overlapping search paths load once
	loaded := make(map[string]bool)

	loadOnce := func(path string, baseDir string) {
		absPath, err := filepath.Abs(path)
		if err != nil {
			return
		}
		if loaded[absPath] {
			return
		}
		if loadConfigFile(path, config, baseDir) == nil {
			loaded[absPath] = true
		}
	}

	// 1. Global config
	globalPath := GetConfigDir()
	for _, name := range configFileNames() {
		loadOnce(filepath.Join(globalPath, name), globalPath)
	}

	// 2. Workspace config
	if workspace != "" {
		for _, name := range configFileNames() {
			loadOnce(filepath.Join(workspace, name), workspace)
		}
		nested := filepath.Join(workspace, ".ctxhub")
		for _, name := range configFileNames() {
			loadOnce(filepath.Join(nested, name), nested)
		}
	}

	// 3. CTXHUB_CONFIG file override
	if configPath := os.Getenv("CTXHUB_CONFIG"); configPath != "" {
		loadOnce(configPath, filepath.Dir(configPath))
	}

	// 4. CTXHUB_CONFIG_CONTENT inline JSON
	if content := os.Getenv("CTXHUB_CONFIG_CONTENT"); content != "" {
		var inline types.Config
		if err := json.Unmarshal(jsonc.ToJSON([]byte(content)), &inline); err == nil {
			mergeConfig(config, &inline)
		}
	}

	// 5. Workspace .env overlay. godotenv never clobbers variables
	// already present in the environment.
	if workspace != "" {
		envFile := filepath.Join(workspace, ".env")
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		}
	}

	// 6. Environment variables (highest priority)
	applyEnvOverrides(config)

	return config, nil
}

func configFileNames() []string {
	return []string{"ctxhub.json", "ctxhub.jsonc", "ctxhub.yaml", "ctxhub.yml"}
}

// loadConfigFile loads a single config file. JSON and JSONC files get
// placeholder interpolation; YAML files are parsed as-is.
func loadConfigFile(path string, config *types.Config, baseDir string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var fileConfig types.Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	default:
		data = jsonc.ToJSON(data)
		data = interpolate(data, baseDir)
		if err := json.Unmarshal(data, &fileConfig); err != nil {
			return err
		}
	}

	mergeConfig(config, &fileConfig)
	return nil
}

var (
	envPattern  = regexp.MustCompile(`\{env:([^}]+)\}`)
	filePattern = regexp.MustCompile(`\{file:([^}]+)\}`)
)

// interpolate processes {env:VAR} and {file:path} placeholders.
func interpolate(data []byte, baseDir string) []byte {
	str := string(data)

	str = envPattern.ReplaceAllStringFunc(str, func(match string) string {
		varName := envPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})

	str = filePattern.ReplaceAllStringFunc(str, func(match string) string {
		filePath := filePattern.FindStringSubmatch(match)[1]

		if strings.HasPrefix(filePath, "~/") {
			filePath = filepath.Join(os.Getenv("HOME"), filePath[2:])
		} else if !filepath.IsAbs(filePath) {
			filePath = filepath.Join(baseDir, filePath)
		}

		content, err := os.ReadFile(filePath)
		if err != nil {
			return match // keep the placeholder if the file is missing
		}

		escaped := strings.ReplaceAll(string(content), "\\", "\\\\")
		escaped = strings.ReplaceAll(escaped, "\"", "\\\"")
		escaped = strings.ReplaceAll(escaped, "\n", "\\n")
		escaped = strings.ReplaceAll(escaped, "\r", "\\r")
		escaped = strings.ReplaceAll(escaped, "\t", "\\t")

		return escaped
	})

	return []byte(str)
}

// mergeConfig merges source into target. Scalars overwrite when set,
// slices replace wholesale, nested blocks merge field-wise.
func mergeConfig(target, source *types.Config) {
	if source.Schema != "" {
		target.Schema = source.Schema
	}
	if source.Host != "" {
		target.Host = source.Host
	}
	if source.Port != 0 {
		target.Port = source.Port
	}
	if source.Workspace != "" {
		target.Workspace = source.Workspace
	}
	if source.DataDir != "" {
		target.DataDir = source.DataDir
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
	}
	if source.PingInterval != "" {
		target.PingInterval = source.PingInterval
	}
	if source.AllowedOrigins != nil {
		target.AllowedOrigins = source.AllowedOrigins
	}
	if source.Persist != nil {
		target.Persist = source.Persist
	}
	if source.Watcher != nil {
		if target.Watcher == nil {
			target.Watcher = &types.WatcherConfig{}
		}
		if source.Watcher.Enabled != nil {
			target.Watcher.Enabled = source.Watcher.Enabled
		}
		if source.Watcher.Debounce != "" {
			target.Watcher.Debounce = source.Watcher.Debounce
		}
		if source.Watcher.Ignore != nil {
			target.Watcher.Ignore = source.Watcher.Ignore
		}
	}
}

// applyEnvOverrides applies CTXHUB_* environment variables.
func applyEnvOverrides(config *types.Config) {
	if host := os.Getenv("CTXHUB_HOST"); host != "" {
		config.Host = host
	}
	if port := os.Getenv("CTXHUB_PORT"); port != "" {
		if n, err := strconv.Atoi(port); err == nil && n > 0 {
			config.Port = n
		}
	}
	if ws := os.Getenv("CTXHUB_WORKSPACE"); ws != "" {
		config.Workspace = ws
	}
	if dir := os.Getenv("CTXHUB_DATA_DIR"); dir != "" {
		config.DataDir = dir
	}
	if level := os.Getenv("CTXHUB_LOG_LEVEL"); level != "" {
		config.LogLevel = level
	}
	if interval := os.Getenv("CTXHUB_PING_INTERVAL"); interval != "" {
		config.PingInterval = interval
	}
	if origins := os.Getenv("CTXHUB_ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		config.AllowedOrigins = config.AllowedOrigins[:0]
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				config.AllowedOrigins = append(config.AllowedOrigins, p)
			}
		}
	}
	if persist := os.Getenv("CTXHUB_PERSIST"); persist != "" {
		if b, err := strconv.ParseBool(persist); err == nil {
			config.Persist = &b
		}
	}
}

// GetConfigDir returns the directory searched for global config.
// CTXHUB_CONFIG_DIR wins over the XDG location.
func GetConfigDir() string {
	if dir := os.Getenv("CTXHUB_CONFIG_DIR"); dir != "" {
		return dir
	}
	return GetPaths().Config
}
