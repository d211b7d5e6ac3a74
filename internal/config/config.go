package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// ConfigFileName is the JSON file the tracker refuses to start without.
const ConfigFileName = "route_tracker.cfg.json"

// TrackerConfig holds the sampling engine settings.
type TrackerConfig struct {
	IntervalMs  uint64 `json:"intervalMs" mapstructure:"intervalMs"`
	RoutesDir   string `json:"routesDir" mapstructure:"routesDir"`
	AnchorTable string `json:"anchorTable" mapstructure:"anchorTable"`
	ReadyPollMs int    `json:"readyPollMs" mapstructure:"readyPollMs"`
}

// GameConfig holds the process attach settings.
type GameConfig struct {
	ProcessName  string `json:"processName" mapstructure:"processName"`
	Version      string `json:"version" mapstructure:"version"`
	AttachPollMs int    `json:"attachPollMs" mapstructure:"attachPollMs"`
}

// DBConfig holds the route library database settings. The postgres fields
// are ignored when the library falls back to its local sqlite file.
type DBConfig struct {
	Host       string `json:"host" mapstructure:"host"`
	Port       string `json:"port" mapstructure:"port"`
	Username   string `json:"username" mapstructure:"username"`
	Password   string `json:"password" mapstructure:"password"`
	Database   string `json:"database" mapstructure:"database"`
	SQLitePath string `json:"sqlitePath" mapstructure:"sqlitePath"`
}

// InfluxConfig holds the telemetry metrics connection settings.
type InfluxConfig struct {
	Enabled  bool   `json:"enabled" mapstructure:"enabled"`
	Host     string `json:"host" mapstructure:"host"`
	Port     string `json:"port" mapstructure:"port"`
	Protocol string `json:"protocol" mapstructure:"protocol"`
	Token    string `json:"token" mapstructure:"token"`
	Org      string `json:"org" mapstructure:"org"`
}

// OTelConfig holds the OpenTelemetry export settings.
type OTelConfig struct {
	Enabled      bool          `json:"enabled" mapstructure:"enabled"`
	ServiceName  string        `json:"serviceName" mapstructure:"serviceName"`
	BatchTimeout time.Duration `json:"batchTimeout" mapstructure:"batchTimeout"`
	Endpoint     string        `json:"endpoint" mapstructure:"endpoint"`
	Insecure     bool          `json:"insecure" mapstructure:"insecure"`
}

// GelfConfig holds the graylog log shipping settings.
type GelfConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	Address string `json:"address" mapstructure:"address"`
}

// APIConfig holds the route upload service settings.
type APIConfig struct {
	Enabled   bool   `json:"enabled" mapstructure:"enabled"`
	ServerURL string `json:"serverUrl" mapstructure:"serverUrl"`
	APIKey    string `json:"apiKey" mapstructure:"apiKey"`
}

// StreamConfig holds the live viewer connection settings.
type StreamConfig struct {
	Enabled bool   `json:"enabled" mapstructure:"enabled"`
	URL     string `json:"url" mapstructure:"url"`
	Token   string `json:"token" mapstructure:"token"`
}

// MonitorConfig holds the health reporting settings.
type MonitorConfig struct {
	Enabled  bool          `json:"enabled" mapstructure:"enabled"`
	Interval time.Duration `json:"interval" mapstructure:"interval"`
}

// Load reads configuration from the JSON file in configDir, falling
// back to the working directory, and sets default values. The file
// itself is required; everything in it is optional.
func Load(configDir string) error {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./routelogs")

	viper.SetDefault("tracker.intervalMs", 100)
	viper.SetDefault("tracker.routesDir", "routes")
	viper.SetDefault("tracker.anchorTable", "map_coords.csv")
	viper.SetDefault("tracker.readyPollMs", 100)

	viper.SetDefault("game.processName", "eldenring.exe")
	viper.SetDefault("game.version", "")
	viper.SetDefault("game.attachPollMs", 1000)

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "routetracker")
	viper.SetDefault("db.sqlitePath", "./route_library.db")

	viper.SetDefault("influx.enabled", true)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "routetracker-metrics")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "route-tracker")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("api.enabled", false)
	viper.SetDefault("api.serverUrl", "http://localhost:5000")
	viper.SetDefault("api.apiKey", "")

	viper.SetDefault("stream.enabled", false)
	viper.SetDefault("stream.url", "ws://localhost:5001/live")
	viper.SetDefault("stream.token", "")

	viper.SetDefault("monitor.enabled", true)
	viper.SetDefault("monitor.interval", "30s")

	viper.SetConfigName(ConfigFileName)
	viper.AddConfigPath(configDir)
	viper.AddConfigPath(".")
	viper.SetConfigType("json")

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetTrackerConfig returns the sampling engine settings.
func GetTrackerConfig() TrackerConfig {
	return TrackerConfig{
		IntervalMs:  viper.GetUint64("tracker.intervalMs"),
		RoutesDir:   viper.GetString("tracker.routesDir"),
		AnchorTable: viper.GetString("tracker.anchorTable"),
		ReadyPollMs: viper.GetInt("tracker.readyPollMs"),
	}
}

// GetGameConfig returns the process attach settings.
func GetGameConfig() GameConfig {
	return GameConfig{
		ProcessName:  viper.GetString("game.processName"),
		Version:      viper.GetString("game.version"),
		AttachPollMs: viper.GetInt("game.attachPollMs"),
	}
}

// GetDBConfig returns the route library database settings.
func GetDBConfig() DBConfig {
	return DBConfig{
		Host:       viper.GetString("db.host"),
		Port:       viper.GetString("db.port"),
		Username:   viper.GetString("db.username"),
		Password:   viper.GetString("db.password"),
		Database:   viper.GetString("db.database"),
		SQLitePath: viper.GetString("db.sqlitePath"),
	}
}

// GetInfluxConfig returns the telemetry metrics settings.
func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:  viper.GetBool("influx.enabled"),
		Host:     viper.GetString("influx.host"),
		Port:     viper.GetString("influx.port"),
		Protocol: viper.GetString("influx.protocol"),
		Token:    viper.GetString("influx.token"),
		Org:      viper.GetString("influx.org"),
	}
}

// GetOTelConfig returns the OpenTelemetry export settings.
func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}

// GetGelfConfig returns the graylog log shipping settings.
func GetGelfConfig() GelfConfig {
	return GelfConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

// GetAPIConfig returns the route upload service settings.
func GetAPIConfig() APIConfig {
	return APIConfig{
		Enabled:   viper.GetBool("api.enabled"),
		ServerURL: viper.GetString("api.serverUrl"),
		APIKey:    viper.GetString("api.apiKey"),
	}
}

// GetStreamConfig returns the live viewer connection settings.
func GetStreamConfig() StreamConfig {
	return StreamConfig{
		Enabled: viper.GetBool("stream.enabled"),
		URL:     viper.GetString("stream.url"),
		Token:   viper.GetString("stream.token"),
	}
}

// GetMonitorConfig returns the health reporting settings.
func GetMonitorConfig() MonitorConfig {
	return MonitorConfig{
		Enabled:  viper.GetBool("monitor.enabled"),
		Interval: viper.GetDuration("monitor.interval"),
	}
}
