package application

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Source modes.
const (
	ModeSimulate    = "simulate"
	ModeFusionSolar = "fusionsolar"
)

// SimulatorConfig tunes the synthetic reading source.
type SimulatorConfig struct {
	LowProbability float64 `yaml:"low_probability"`
	Seed           int64   `yaml:"seed"`
}

// FusionSolarConfig holds vendor API credentials and scope.
type FusionSolarConfig struct {
	BaseURL     string `yaml:"base_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	StationCode string `yaml:"station_code"`
}

// Config defines the sampling pipeline configuration.
type Config struct {
	Mode            string            `yaml:"mode"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	WindowSize      int               `yaml:"window_size"`
	Simulator       SimulatorConfig   `yaml:"simulator"`
	FusionSolar     FusionSolarConfig `yaml:"fusionsolar"`
}

// LoadConfig loads sampling config from yaml or env. READINGS_CONFIG names an
// optional yaml file; env vars fill whatever the file left empty.
func LoadConfig() (Config, error) {
	cfg := Config{
		Mode:            getenvDefault("READINGS_MODE", ModeSimulate),
		IntervalSeconds: getenvIntDefault("READINGS_INTERVAL_SECONDS", 5),
		WindowSize:      getenvIntDefault("READINGS_WINDOW_SIZE", DefaultWindowSize),
		Simulator: SimulatorConfig{
			LowProbability: getenvFloatDefault("SIM_LOW_PROBABILITY", 0.12),
		},
	}

	if path := os.Getenv("READINGS_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, err
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}

	if cfg.FusionSolar.BaseURL == "" {
		cfg.FusionSolar.BaseURL = getenvDefault("FUSIONSOLAR_BASE_URL", "https://eu5.fusionsolar.huawei.com")
	}
	if cfg.FusionSolar.Username == "" {
		cfg.FusionSolar.Username = os.Getenv("FUSIONSOLAR_USERNAME")
	}
	if cfg.FusionSolar.Password == "" {
		cfg.FusionSolar.Password = os.Getenv("FUSIONSOLAR_PASSWORD")
	}
	if cfg.FusionSolar.StationCode == "" {
		cfg.FusionSolar.StationCode = os.Getenv("FUSIONSOLAR_STATION_CODE")
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.Mode {
	case ModeSimulate:
	case ModeFusionSolar:
		if c.FusionSolar.Username == "" || c.FusionSolar.Password == "" {
			return fmt.Errorf("readings: fusionsolar mode requires credentials")
		}
	default:
		return fmt.Errorf("readings: unknown mode %q", c.Mode)
	}
	if c.IntervalSeconds <= 0 {
		return fmt.Errorf("readings: interval must be positive, got %d", c.IntervalSeconds)
	}
	if c.Simulator.LowProbability < 0 || c.Simulator.LowProbability > 1 {
		return fmt.Errorf("readings: low probability %v outside [0,1]", c.Simulator.LowProbability)
	}
	return nil
}

func getenvDefault(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvIntDefault(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvFloatDefault(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}
