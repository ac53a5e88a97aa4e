// Package config provides configuration for go-dogctl commands.
//
// Defaults are compiled in, every key can be overridden through DOGCTL_*
// environment variables (DOGCTL_DOG_IP=10.0.0.5), and an optional YAML file
// can be supplied for deployments that prefer one.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config is the root configuration shared by the server and worker.
type Config struct {
	// Listen is the HTTP bind address of the task service.
	Listen string `mapstructure:"listen"`
	// Port is the HTTP port of the task service.
	Port int `mapstructure:"port"`

	// DogIP / DogPort address the robot's motion host (UDP commands out).
	DogIP   string `mapstructure:"dog_ip"`
	DogPort int    `mapstructure:"dog_port"`

	// BindIPs are the local addresses tried in order when binding the
	// telemetry receive socket; BindPort is the telemetry port.
	BindIPs  []string `mapstructure:"bind_ips"`
	BindPort int      `mapstructure:"bind_port"`

	// WorkerBin is the path of the dogexec worker binary.
	WorkerBin string `mapstructure:"worker_bin"`

	// JournalPath is the sqlite task journal file; empty disables it.
	JournalPath string `mapstructure:"journal_path"`

	// LogLevel: debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
	// LogLines bounds the in-memory log ring exposed over /logs.
	LogLines int `mapstructure:"log_lines"`

	// Gear is the locomotion speed gear (1..6) used for duration mapping.
	Gear int `mapstructure:"gear"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		Listen:      "0.0.0.0",
		Port:        8000,
		DogIP:       "192.168.1.120",
		DogPort:     43893,
		BindIPs:     []string{"192.168.1.100", "192.168.1.101"},
		BindPort:    43897,
		WorkerBin:   "dogexec",
		JournalPath: "",
		LogLevel:    "info",
		LogLines:    1000,
		Gear:        3,
	}
}

// Load reads configuration from the environment and, when path is
// non-empty, from a YAML file. Environment variables win over the file.
func Load(path string) (Config, error) {
	v := viper.New()

	def := Default()
	v.SetDefault("listen", def.Listen)
	v.SetDefault("port", def.Port)
	v.SetDefault("dog_ip", def.DogIP)
	v.SetDefault("dog_port", def.DogPort)
	v.SetDefault("bind_ips", def.BindIPs)
	v.SetDefault("bind_port", def.BindPort)
	v.SetDefault("worker_bin", def.WorkerBin)
	v.SetDefault("journal_path", def.JournalPath)
	v.SetDefault("log_level", def.LogLevel)
	v.SetDefault("log_lines", def.LogLines)
	v.SetDefault("gear", def.Gear)

	v.SetEnvPrefix("DOGCTL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Gear < 1 || cfg.Gear > 6 {
		return Config{}, fmt.Errorf("gear %d out of range 1..6", cfg.Gear)
	}
	return cfg, nil
}

// DogAddr returns the robot's UDP command endpoint as host:port.
func (c Config) DogAddr() string {
	return fmt.Sprintf("%s:%d", c.DogIP, c.DogPort)
}
