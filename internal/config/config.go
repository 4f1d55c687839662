package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"housemarket/internal/market"

	"gopkg.in/yaml.v3"
)

type APIConfig struct {
	Addr        string
	DataDir     string
	DatabaseURL string
	EarnCode    string
	LiveTrading bool
}

type SimConfig struct {
	DataDir     string
	DatabaseURL string
	HousesFile  string
	Seed        int64
	Days        int
	UsersPerDay int
	NewsEvery   int
	NoiseScale  float64
	StartDate   time.Time
}

type CLIConfig struct {
	APIBaseURL string
}

func LoadAPIFromEnv() (APIConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("HOUSEMARKET_API_ADDR", ":8080")
	}

	cfg := APIConfig{
		Addr:        addr,
		DataDir:     envDefault("HOUSEMARKET_DATA_DIR", "data"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		EarnCode:    strings.TrimSpace(os.Getenv("HOUSEMARKET_EARN_CODE")),
		LiveTrading: envBoolDefault("HOUSEMARKET_LIVE_TRADING", false),
	}
	if cfg.EarnCode == "" {
		return cfg, errors.New("HOUSEMARKET_EARN_CODE is required")
	}
	return cfg, nil
}

func LoadSimFromEnv(now time.Time) (SimConfig, error) {
	defaults := market.DefaultSimulationConfig(now)
	cfg := SimConfig{
		DataDir:     envDefault("HOUSEMARKET_DATA_DIR", "data"),
		DatabaseURL: strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HousesFile:  strings.TrimSpace(os.Getenv("HOUSEMARKET_HOUSES_FILE")),
		Seed:        envInt64Default("HOUSEMARKET_SEED", now.UnixNano()),
		Days:        envIntDefault("HOUSEMARKET_SIM_DAYS", defaults.Days),
		UsersPerDay: envIntDefault("HOUSEMARKET_SIM_USERS_PER_DAY", defaults.UsersPerDay),
		NewsEvery:   envIntDefault("HOUSEMARKET_SIM_NEWS_EVERY", defaults.NewsEvery),
		NoiseScale:  envFloatDefault("HOUSEMARKET_SIM_NOISE", market.DefaultDynamics().NoiseScale),
	}
	if cfg.Days <= 0 {
		return cfg, errors.New("HOUSEMARKET_SIM_DAYS must be > 0")
	}
	if cfg.UsersPerDay < 0 || cfg.NewsEvery < 0 || cfg.NoiseScale < 0 {
		return cfg, errors.New("simulation settings must not be negative")
	}

	cfg.StartDate = market.DayOf(now).AddDate(0, 0, -cfg.Days)
	if v := strings.TrimSpace(os.Getenv("HOUSEMARKET_SIM_START")); v != "" {
		start, err := market.ParseDate(v)
		if err != nil {
			return cfg, fmt.Errorf("HOUSEMARKET_SIM_START: %w", err)
		}
		cfg.StartDate = start
	}
	return cfg, nil
}

func (c SimConfig) Simulation() market.SimulationConfig {
	return market.SimulationConfig{
		Days:        c.Days,
		UsersPerDay: c.UsersPerDay,
		NewsEvery:   c.NewsEvery,
		StartDate:   c.StartDate,
	}
}

func (c SimConfig) Dynamics() market.Dynamics {
	dyn := market.DefaultDynamics()
	dyn.NoiseScale = c.NoiseScale
	return dyn
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("HX_API_BASE_URL", "http://localhost:8080"), "/"),
	}
}

type housesFile struct {
	Houses []market.HouseSeed `yaml:"houses"`
}

// LoadHouseSeeds reads the house set from a YAML file, falling back to the
// default houses when path is empty.
func LoadHouseSeeds(path string) ([]market.HouseSeed, error) {
	if strings.TrimSpace(path) == "" {
		return market.DefaultHouses(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read houses file: %w", err)
	}
	var doc housesFile
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse houses file: %w", err)
	}
	if len(doc.Houses) == 0 {
		return nil, fmt.Errorf("houses file %s: %w", path, market.ErrNoHouses)
	}
	return doc.Houses, nil
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envIntDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envInt64Default(key string, fallback int64) int64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return n
}

func envFloatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func envBoolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
