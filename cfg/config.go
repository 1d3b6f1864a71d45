package cfg

import (
	"fmt"
	"hash/fnv"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/denisbrodbeck/machineid"
	"github.com/gobwas/glob"
	"github.com/rs/zerolog/log"
)

// DeploymentConfiguration controls how nodes are laid out on this machine
type DeploymentConfiguration struct {
	NodeVersion        string   `toml:"node_version"`
	Nodes              []string `toml:"nodes"` // Explicit node names to deploy (empty = match this machine)
	LockTimeoutSeconds int      `toml:"lock_timeout_seconds"`
	ServiceName        string   `toml:"service_name"`
}

// DeltaConfiguration controls manifest comparison during update/rollback
type DeltaConfiguration struct {
	DynamicParameters []string `toml:"dynamic_parameters"` // "Section/Parameter" globs that never need a restart
}

// HistoryConfiguration controls the deployment history store
type HistoryConfiguration struct {
	Enabled          bool `toml:"enabled"`
	MaxVersions      int  `toml:"max_versions"`
	CompressionLevel int  `toml:"compression_level"` // 0 = off, 1-4 = zstd fastest..best
}

// LoggingConfiguration controls logging behavior
type LoggingConfiguration struct {
	Verbose bool   `toml:"verbose"`
	Format  string `toml:"format"` // "console" or "json"
}

// PrometheusConfiguration for metrics
type PrometheusConfiguration struct {
	Enabled      bool   `toml:"enabled"`
	TextfilePath string `toml:"textfile_path"` // node-exporter textfile written after each operation
}

// AdminConfiguration for the read-only inspection server
type AdminConfiguration struct {
	BindAddress       string `toml:"bind_address"`
	Port              int    `toml:"port"`
	SettingsCacheSize int    `toml:"settings_cache_size"`
}

// Configuration is the main configuration structure
type Configuration struct {
	DeployerID             uint64 `toml:"deployer_id"`
	DataRoot               string `toml:"data_root"`
	ClusterManifest        string `toml:"cluster_manifest"`
	InfrastructureManifest string `toml:"infrastructure_manifest"`

	Deployment DeploymentConfiguration `toml:"deployment"`
	Delta      DeltaConfiguration      `toml:"delta"`
	History    HistoryConfiguration    `toml:"history"`
	Logging    LoggingConfiguration    `toml:"logging"`
	Prometheus PrometheusConfiguration `toml:"prometheus"`
	Admin      AdminConfiguration      `toml:"admin"`
}

// Overrides are command line values that take precedence over the file
type Overrides struct {
	DataRoot               string
	ClusterManifest        string
	InfrastructureManifest string
	Nodes                  []string
	Verbose                bool
}

// Default configuration
var Config = Default()

// Default returns a fresh copy of the default configuration
func Default() *Configuration {
	return &Configuration{
		DeployerID: 0, // Auto-generate
		DataRoot:   "./deployer-data",

		Deployment: DeploymentConfiguration{
			NodeVersion:        "1.0.0",
			Nodes:              []string{},
			LockTimeoutSeconds: 30,
			ServiceName:        "FabricHostSvc",
		},

		Delta: DeltaConfiguration{
			DynamicParameters: []string{},
		},

		History: HistoryConfiguration{
			Enabled:          true,
			MaxVersions:      10,
			CompressionLevel: 2,
		},

		Logging: LoggingConfiguration{
			Verbose: false,
			Format:  "console",
		},

		Prometheus: PrometheusConfiguration{
			Enabled: true,
		},

		Admin: AdminConfiguration{
			BindAddress:       "127.0.0.1",
			Port:              19090,
			SettingsCacheSize: 128,
		},
	}
}

// Load loads configuration from file and applies CLI overrides
func Load(configPath string, overrides Overrides) error {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			log.Info().Str("path", configPath).Msg("Loading configuration")
			if _, err := toml.DecodeFile(configPath, Config); err != nil {
				return fmt.Errorf("failed to decode config: %w", err)
			}
		} else {
			log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
		}
	}

	if overrides.DataRoot != "" {
		Config.DataRoot = overrides.DataRoot
	}
	if overrides.ClusterManifest != "" {
		Config.ClusterManifest = overrides.ClusterManifest
	}
	if overrides.InfrastructureManifest != "" {
		Config.InfrastructureManifest = overrides.InfrastructureManifest
	}
	if len(overrides.Nodes) > 0 {
		Config.Deployment.Nodes = overrides.Nodes
	}
	if overrides.Verbose {
		Config.Logging.Verbose = true
	}

	if Config.DeployerID == 0 {
		var err error
		Config.DeployerID, err = generateDeployerID()
		if err != nil {
			return fmt.Errorf("failed to generate deployer ID: %w", err)
		}
		log.Debug().Uint64("deployer_id", Config.DeployerID).Msg("Auto-generated deployer ID")
	}

	return nil
}

// generateDeployerID creates a stable ID based on machine ID
func generateDeployerID() (uint64, error) {
	id, err := machineid.ProtectedID("nodedeployer")
	if err != nil {
		return 0, err
	}

	h := fnv.New64a()
	h.Write([]byte(id))
	return h.Sum64(), nil
}

// Validate checks configuration for errors
func Validate() error {
	if Config.DataRoot == "" {
		return fmt.Errorf("data root must be set")
	}

	if Config.Deployment.LockTimeoutSeconds < 1 {
		return fmt.Errorf("lock timeout must be >= 1 second")
	}

	if Config.Deployment.NodeVersion == "" {
		return fmt.Errorf("node version must be set")
	}

	for _, pattern := range Config.Delta.DynamicParameters {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return fmt.Errorf("invalid dynamic parameter pattern %q: %w", pattern, err)
		}
	}

	if Config.History.MaxVersions < 1 {
		return fmt.Errorf("history max versions must be >= 1")
	}

	if Config.History.CompressionLevel < 0 || Config.History.CompressionLevel > 4 {
		return fmt.Errorf("history compression level must be between 0 and 4")
	}

	if Config.Logging.Format != "console" && Config.Logging.Format != "json" {
		return fmt.Errorf("invalid logging format: %s", Config.Logging.Format)
	}

	if Config.Admin.Port < 1 || Config.Admin.Port > 65535 {
		return fmt.Errorf("invalid admin port: %d", Config.Admin.Port)
	}

	if Config.Admin.SettingsCacheSize < 1 {
		return fmt.Errorf("admin settings cache size must be >= 1")
	}

	return nil
}
