package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/maastricht-university/edmo-sensing/vad"
)

// EnvPrefix prefixes environment overrides, e.g. EDMO_AUDIO_THRESHOLD_DB.
const EnvPrefix = "EDMO"

type Service struct {
	URL string `yaml:"url" mapstructure:"url"`
}
type Services struct {
	Visualization Service `yaml:"visualization" mapstructure:"visualization"`
}
type Sensor struct {
	MaxBodies int `yaml:"max_bodies" mapstructure:"max_bodies"`
}
type Orientation struct {
	Quantize  bool    `yaml:"quantize" mapstructure:"quantize"`
	Increment float64 `yaml:"increment" mapstructure:"increment"`
}
// Audio subframes whose length differs from SubFrameBytes are skipped;
// zero accepts any float32 aligned length.
type Audio struct {
	SubFrameBytes    int     `yaml:"subframe_bytes" mapstructure:"subframe_bytes"`
	ThresholdDb      float64 `yaml:"threshold_db" mapstructure:"threshold_db"`
	SamplesPerColumn int     `yaml:"samples_per_column" mapstructure:"samples_per_column"`
}
type Diarization struct {
	CloseOpenSegment bool `yaml:"close_open_segment" mapstructure:"close_open_segment"`
}
type Server struct {
	Addr string `yaml:"addr" mapstructure:"addr"`
}

// Store selects the optional session store; an empty driver disables it.
type Store struct {
	Driver   string   `yaml:"driver" mapstructure:"driver"` // "postgres" | "cassandra"
	DSN      string   `yaml:"dsn" mapstructure:"dsn"`
	Hosts    []string `yaml:"hosts" mapstructure:"hosts"`
	Keyspace string   `yaml:"keyspace" mapstructure:"keyspace"`
}

// Live configures the Redis event channel; an empty address disables it.
type Live struct {
	RedisAddr string `yaml:"redis_addr" mapstructure:"redis_addr"`
	Channel   string `yaml:"channel" mapstructure:"channel"`
}

type Root struct {
	Pipeline struct {
		Name    string `yaml:"name" mapstructure:"name"`
		Version string `yaml:"version" mapstructure:"version"`
		LogLvl  string `yaml:"log_level" mapstructure:"log_level"`
	} `yaml:"pipeline" mapstructure:"pipeline"`
	Sensor      Sensor      `yaml:"sensor" mapstructure:"sensor"`
	Orientation Orientation `yaml:"orientation" mapstructure:"orientation"`
	Audio       Audio       `yaml:"audio" mapstructure:"audio"`
	Diarization Diarization `yaml:"diarization" mapstructure:"diarization"`
	Server      Server      `yaml:"server" mapstructure:"server"`
	Store       Store       `yaml:"store" mapstructure:"store"`
	Live        Live        `yaml:"live" mapstructure:"live"`
	Services    Services    `yaml:"services" mapstructure:"services"`
	Paths       struct {
		Outputs string `yaml:"outputs" mapstructure:"outputs"`
	} `yaml:"paths" mapstructure:"paths"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pipeline.name", "edmo-sensing")
	v.SetDefault("pipeline.version", "0.1.0")
	v.SetDefault("pipeline.log_level", "info")
	v.SetDefault("sensor.max_bodies", 6)
	v.SetDefault("orientation.quantize", true)
	v.SetDefault("orientation.increment", 5.0)
	v.SetDefault("audio.subframe_bytes", vad.SubFrameBytes)
	v.SetDefault("audio.threshold_db", float64(vad.DefaultThresholdDb))
	v.SetDefault("audio.samples_per_column", vad.SamplesPerColumn)
	v.SetDefault("diarization.close_open_segment", false)
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("store.driver", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("store.hosts", []string{"localhost"})
	v.SetDefault("store.keyspace", "edmo")
	v.SetDefault("live.redis_addr", "")
	v.SetDefault("live.channel", "edmo:events")
	v.SetDefault("services.visualization.url", "")
	v.SetDefault("paths.outputs", "outputs")
}

// Load reads path, or the first config file found under CONFIG_ENV when
// path is empty, on top of the defaults. A .env file in the working
// directory and EDMO_* variables override file values. v may carry flag
// bindings; nil uses a fresh viper.
func Load(v *viper.Viper, path string) (*Root, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if v == nil {
		v = viper.New()
	}
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path == "" {
		path = guess()
	}
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Root
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Sensor.MaxBodies <= 0 {
		return nil, fmt.Errorf("sensor.max_bodies must be positive, got %d", cfg.Sensor.MaxBodies)
	}
	return &cfg, nil
}

func guess() string {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	for _, p := range []string{
		filepath.Join("config", env, "config.yaml"),
		"config.yaml",
	} {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Dump writes cfg as YAML.
func Dump(w io.Writer, cfg *Root) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return err
	}
	return enc.Close()
}

// Logger builds the process logger at the configured level.
func (c *Root) Logger() (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(c.Pipeline.LogLvl)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}
	log := logrus.New()
	log.SetLevel(lvl)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return log, nil
}
