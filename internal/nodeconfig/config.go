// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// Package nodeconfig loads this node's startup configuration from
// environment variables via koanf's env provider. There is no file
// layer; the environment is the only configuration source.
package nodeconfig

import (
	"strconv"
	"strings"

	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
	"stagrdb.node/internal/nodeerrors"
)

// DatabaseConfig holds the connection parameters for the shared
// Postgres/TimescaleDB store.
type DatabaseConfig struct {
	Host     string `koanf:"host"`
	Port     uint16 `koanf:"port"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
	Database string `koanf:"database"`
}

// NetworkConfig selects which network interface this node captures on.
type NetworkConfig struct {
	DockerMode          bool   `koanf:"docker_mode"`
	DockerInterfaceName string `koanf:"docker_interface_name"`
}

// LoggerConfig controls the dual-sink loggers' file destinations and
// path styles.
type LoggerConfig struct {
	NormalLoggerFile string `koanf:"normal_logger_file"`
	IdpsLoggerFile   string `koanf:"idps_logger_file"`
	IdpsLogMode      string `koanf:"idps_log_mode"`
	NormalPathStyle  string `koanf:"normal_path_style"`
	IdpsPathStyle    string `koanf:"idps_path_style"`
}

// Config is the complete startup configuration for a node.
type Config struct {
	NodeID   int16          `koanf:"node_id"`
	Database DatabaseConfig `koanf:"database"`
	Network  NetworkConfig  `koanf:"network"`
	Logger   LoggerConfig   `koanf:"logger"`
}

// envKeyMapper maps bare env var names (no prefix, this node uses none)
// onto koanf dot paths, e.g. TIMESCALE_DB_HOST -> database.host.
func envKeyMapper(s string) string {
	switch s {
	case "NODE_ID":
		return "node_id"
	case "TIMESCALE_DB_HOST":
		return "database.host"
	case "TIMESCALE_DB_PORT":
		return "database.port"
	case "TIMESCALE_DB_USER":
		return "database.user"
	case "TIMESCALE_DB_PASSWORD":
		return "database.password"
	case "TIMESCALE_DB_DATABASE":
		return "database.database"
	case "DOCKER_MODE":
		return "network.docker_mode"
	case "DOCKER_INTERFACE_NAME":
		return "network.docker_interface_name"
	case "NORMAL_LOGGER_FILE":
		return "logger.normal_logger_file"
	case "IDPS_LOGGER_FILE":
		return "logger.idps_logger_file"
	case "IDPS_LOG_MODE":
		return "logger.idps_log_mode"
	case "NORMAL_PATH_STYLE":
		return "logger.normal_path_style"
	case "IDPS_PATH_STYLE":
		return "logger.idps_path_style"
	default:
		return strings.ToLower(s)
	}
}

// Load reads Config entirely from environment variables. NODE_ID is
// parsed as an unsigned 16-bit value first and then range-checked into a
// signed int16, so a NODE_ID of, say, 40000 fails with a clear message
// instead of silently wrapping negative. DOCKER_MODE is parsed leniently:
// any value other than a case-insensitive "true" is treated as false,
// and an absent DOCKER_MODE also defaults to false.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", envKeyMapper), nil); err != nil {
		return nil, nodeerrors.Wrap(err, nodeerrors.KindStartupConfig, "load environment variables")
	}

	nodeIDStr := k.String("node_id")
	if nodeIDStr == "" {
		return nil, nodeerrors.New(nodeerrors.KindStartupConfig, "NODE_ID is required")
	}
	raw, err := strconv.ParseUint(nodeIDStr, 10, 16)
	if err != nil {
		return nil, nodeerrors.Wrapf(err, nodeerrors.KindStartupConfig, "NODE_ID: invalid unsigned integer %q", nodeIDStr)
	}
	if raw > 32767 {
		return nil, nodeerrors.Errorf(nodeerrors.KindStartupConfig, "NODE_ID: value %d exceeds int16 max", raw)
	}

	cfg := &Config{NodeID: int16(raw)}
	if err := k.Unmarshal("database", &cfg.Database); err != nil {
		return nil, nodeerrors.Wrap(err, nodeerrors.KindStartupConfig, "unmarshal database config")
	}
	if err := k.Unmarshal("logger", &cfg.Logger); err != nil {
		return nil, nodeerrors.Wrap(err, nodeerrors.KindStartupConfig, "unmarshal logger config")
	}

	cfg.Network.DockerMode = strings.EqualFold(k.String("network.docker_mode"), "true")
	cfg.Network.DockerInterfaceName = k.String("network.docker_interface_name")

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if cfg.Database.Host == "" {
		return nodeerrors.New(nodeerrors.KindStartupConfig, "TIMESCALE_DB_HOST is required")
	}
	if cfg.Database.Port == 0 {
		return nodeerrors.New(nodeerrors.KindStartupConfig, "TIMESCALE_DB_PORT is required")
	}
	if cfg.Database.User == "" {
		return nodeerrors.New(nodeerrors.KindStartupConfig, "TIMESCALE_DB_USER is required")
	}
	if cfg.Database.Database == "" {
		return nodeerrors.New(nodeerrors.KindStartupConfig, "TIMESCALE_DB_DATABASE is required")
	}
	if cfg.Network.DockerMode && cfg.Network.DockerInterfaceName == "" {
		return nodeerrors.New(nodeerrors.KindStartupConfig, "DOCKER_INTERFACE_NAME is required when DOCKER_MODE=true")
	}
	return nil
}
