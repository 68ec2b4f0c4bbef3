package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// FileName is the configuration file looked up in the config directory.
const FileName = "mocaprig.cfg.json"

// MemoryConfig holds in-memory/JSON storage backend settings
type MemoryConfig struct {
	OutputDir      string `json:"outputDir" mapstructure:"outputDir"`
	CompressOutput bool   `json:"compressOutput" mapstructure:"compressOutput"`
}

// SQLiteConfig holds the in-memory SQLite backend settings
type SQLiteConfig struct {
	Path         string
	DumpInterval time.Duration
}

type StorageConfig struct {
	Type   string
	Memory MemoryConfig
	SQLite SQLiteConfig
}

type MarkerConfig struct {
	Minimum       int
	NumericPrefix string
	LabelPrefix   string
}

type SkeletonConfig struct {
	SkipMarkerJoints bool
	LockLeafRotation bool
	NodeSize         float64
	// BoundsMargin is the template bounds margin in centimeters.
	BoundsMargin float64
}

type EstimateConfig struct {
	RootAnchor  string
	FloorMode   string
	FloorHeight float64
}

type FitConfig struct {
	ProfilePath string
}

type MappingConfig struct {
	UsePredicted   bool
	MarkerChildren bool
	ControlRig     bool
}

type DBConfig struct {
	Host     string
	Port     string
	Username string
	Password string
	Database string
}

type InfluxConfig struct {
	Enabled  bool
	Protocol string
	Host     string
	Port     string
	Token    string
	Org      string
	Bucket   string
	// BackupPath receives gzip line protocol when the server is unreachable.
	BackupPath string
}

type GraylogConfig struct {
	Enabled bool
	Address string
}

type OTelConfig struct {
	Enabled      bool
	ServiceName  string
	BatchTimeout time.Duration
	Endpoint     string
	Insecure     bool
}

// SetDefaults registers every default value.
func SetDefaults() {
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./rigLogs")

	viper.SetDefault("markers.minimum", 38)
	viper.SetDefault("markers.numericPrefix", "M")
	viper.SetDefault("markers.labelPrefix", "marker_")

	viper.SetDefault("template.boundsMargin", 20.0)

	viper.SetDefault("skeleton.skipMarkerJoints", true)
	viper.SetDefault("skeleton.lockLeafRotation", true)
	viper.SetDefault("skeleton.nodeSize", 100.0)

	viper.SetDefault("estimate.rootAnchor", "Hips")
	viper.SetDefault("estimate.floorMode", "absolute")
	viper.SetDefault("estimate.floorHeight", 0.0)

	viper.SetDefault("fit.profilePath", "")

	viper.SetDefault("mapping.usePredicted", false)
	viper.SetDefault("mapping.markerChildren", false)
	viper.SetDefault("mapping.controlRig", false)

	viper.SetDefault("storage.type", "memory")
	viper.SetDefault("storage.memory.outputDir", "./rigSessions")
	viper.SetDefault("storage.memory.compressOutput", true)
	viper.SetDefault("storage.sqlite.path", "./rigSessions/sessions.db")
	viper.SetDefault("storage.sqlite.dumpInterval", "3m")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "mocaprig")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "mocaprig")
	viper.SetDefault("influx.bucket", "rig-metrics")
	viper.SetDefault("influx.backupPath", "./rigLogs/influx_backup.log.gz")

	viper.SetDefault("graylog.enabled", false)
	viper.SetDefault("graylog.address", "localhost:12201")

	viper.SetDefault("otel.enabled", false)
	viper.SetDefault("otel.serviceName", "mocaprig")
	viper.SetDefault("otel.batchTimeout", "5s")
	viper.SetDefault("otel.endpoint", "")
	viper.SetDefault("otel.insecure", true)
}

// Load registers defaults and reads FileName from configDir.
func Load(configDir string) error {
	SetDefaults()

	viper.SetConfigName(FileName)
	viper.SetConfigType("json")
	viper.AddConfigPath(configDir)

	if err := viper.ReadInConfig(); err != nil {
		return fmt.Errorf("error reading config file: %w", err)
	}
	return nil
}

func GetString(key string) string { return viper.GetString(key) }

func GetInt(key string) int { return viper.GetInt(key) }

func GetBool(key string) bool { return viper.GetBool(key) }

func GetMarkerConfig() MarkerConfig {
	return MarkerConfig{
		Minimum:       viper.GetInt("markers.minimum"),
		NumericPrefix: viper.GetString("markers.numericPrefix"),
		LabelPrefix:   viper.GetString("markers.labelPrefix"),
	}
}

func GetSkeletonConfig() SkeletonConfig {
	return SkeletonConfig{
		SkipMarkerJoints: viper.GetBool("skeleton.skipMarkerJoints"),
		LockLeafRotation: viper.GetBool("skeleton.lockLeafRotation"),
		NodeSize:         viper.GetFloat64("skeleton.nodeSize"),
		BoundsMargin:     viper.GetFloat64("template.boundsMargin"),
	}
}

func GetEstimateConfig() EstimateConfig {
	return EstimateConfig{
		RootAnchor:  viper.GetString("estimate.rootAnchor"),
		FloorMode:   viper.GetString("estimate.floorMode"),
		FloorHeight: viper.GetFloat64("estimate.floorHeight"),
	}
}

func GetFitConfig() FitConfig {
	return FitConfig{ProfilePath: viper.GetString("fit.profilePath")}
}

func GetMappingConfig() MappingConfig {
	return MappingConfig{
		UsePredicted:   viper.GetBool("mapping.usePredicted"),
		MarkerChildren: viper.GetBool("mapping.markerChildren"),
		ControlRig:     viper.GetBool("mapping.controlRig"),
	}
}

func GetStorageConfig() StorageConfig {
	return StorageConfig{
		Type: viper.GetString("storage.type"),
		Memory: MemoryConfig{
			OutputDir:      viper.GetString("storage.memory.outputDir"),
			CompressOutput: viper.GetBool("storage.memory.compressOutput"),
		},
		SQLite: SQLiteConfig{
			Path:         viper.GetString("storage.sqlite.path"),
			DumpInterval: viper.GetDuration("storage.sqlite.dumpInterval"),
		},
	}
}

func GetDBConfig() DBConfig {
	return DBConfig{
		Host:     viper.GetString("db.host"),
		Port:     viper.GetString("db.port"),
		Username: viper.GetString("db.username"),
		Password: viper.GetString("db.password"),
		Database: viper.GetString("db.database"),
	}
}

func GetInfluxConfig() InfluxConfig {
	return InfluxConfig{
		Enabled:    viper.GetBool("influx.enabled"),
		Protocol:   viper.GetString("influx.protocol"),
		Host:       viper.GetString("influx.host"),
		Port:       viper.GetString("influx.port"),
		Token:      viper.GetString("influx.token"),
		Org:        viper.GetString("influx.org"),
		Bucket:     viper.GetString("influx.bucket"),
		BackupPath: viper.GetString("influx.backupPath"),
	}
}

func GetGraylogConfig() GraylogConfig {
	return GraylogConfig{
		Enabled: viper.GetBool("graylog.enabled"),
		Address: viper.GetString("graylog.address"),
	}
}

func GetOTelConfig() OTelConfig {
	return OTelConfig{
		Enabled:      viper.GetBool("otel.enabled"),
		ServiceName:  viper.GetString("otel.serviceName"),
		BatchTimeout: viper.GetDuration("otel.batchTimeout"),
		Endpoint:     viper.GetString("otel.endpoint"),
		Insecure:     viper.GetBool("otel.insecure"),
	}
}
