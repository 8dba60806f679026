package infrastructure

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ecselfservice/internal/infrastructure/eventcollector"
)

const (
	DefaultTeamsFile = "config/teams.yaml"
	UserStoreMemory  = "memory"
	UserStoreDynamo  = "dynamodb"
)

// TeamPolicy is the role derivation input read from the teams file.
type TeamPolicy struct {
	Org        string   `yaml:"org"`
	WriterTeam string   `yaml:"writer_team"`
	Teams      []string `yaml:"teams"`
	Admins     []string `yaml:"admins"`
}

func defaultTeamPolicy() TeamPolicy {
	return TeamPolicy{
		Org:        "WeConnect",
		WriterTeam: "eventcollectorowner",
		Teams:      []string{"eventcollectorowner", "data-engineering"},
	}
}

type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	Token        string
	AuthorizeURL string
	TokenURL     string
	GraphQLURL   string
}

type Config struct {
	Port     string
	BaseURL  string
	LogLevel string

	EventCollectorURL    string
	EventCollectorSecret string
	ConnectTimeout       time.Duration
	ReadTimeout          time.Duration

	SessionSecret string
	SessionTTL    time.Duration
	SecureCookies bool

	GitHub GitHubConfig
	Teams  TeamPolicy

	UserStore string
	TableName string
	Region    string

	WriteRatePerMinute float64
	WriteBurst         int
}

// Load reads the configuration from the environment. Values in envFile, when
// it exists, are applied first without overriding the process environment.
func Load(envFile string) (Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Config{
		Port:                 getenv("PORT", "8080"),
		BaseURL:              os.Getenv("BASE_URL"),
		LogLevel:             getenv("LOG_LEVEL", "info"),
		EventCollectorURL:    os.Getenv("EVENTCOLLECTOR_URL"),
		EventCollectorSecret: os.Getenv("EVENTCOLLECTOR_SECRET"),
		SessionSecret:        os.Getenv("SESSION_SECRET_KEY"),
		GitHub: GitHubConfig{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			Token:        os.Getenv("GITHUB_TOKEN"),
			AuthorizeURL: os.Getenv("GITHUB_AUTHORIZE_URL"),
			TokenURL:     os.Getenv("TOKEN_URL"),
			GraphQLURL:   os.Getenv("GRAPHQL_URL"),
		},
		UserStore: getenv("USER_STORE", UserStoreMemory),
		TableName: os.Getenv("TABLE_NAME"),
		Region:    os.Getenv("AWS_REGION"),
	}

	var err error
	if cfg.ConnectTimeout, err = durationEnv("EVENTCOLLECTOR_CONNECT_TIMEOUT", eventcollector.DefaultConnectTimeout); err != nil {
		return Config{}, err
	}
	if cfg.ReadTimeout, err = durationEnv("EVENTCOLLECTOR_READ_TIMEOUT", eventcollector.DefaultReadTimeout); err != nil {
		return Config{}, err
	}
	if cfg.SessionTTL, err = durationEnv("SESSION_TTL", 12*time.Hour); err != nil {
		return Config{}, err
	}
	if cfg.SecureCookies, err = boolEnv("SECURE_COOKIES", true); err != nil {
		return Config{}, err
	}
	if cfg.WriteRatePerMinute, err = floatEnv("WRITE_RATE_PER_MINUTE", 30); err != nil {
		return Config{}, err
	}
	burst, err := floatEnv("WRITE_BURST", 5)
	if err != nil {
		return Config{}, err
	}
	cfg.WriteBurst = int(burst)

	teamsFile, explicit := os.LookupEnv("TEAMS_FILE")
	if !explicit {
		teamsFile = DefaultTeamsFile
	}
	cfg.Teams, err = LoadTeamPolicy(teamsFile)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		cfg.Teams, err = defaultTeamPolicy(), nil
	}
	if err != nil {
		return Config{}, err
	}

	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.EventCollectorURL == "" || c.EventCollectorSecret == "" || c.SessionSecret == "" {
		return errors.New("missing required environment variables: EVENTCOLLECTOR_URL, EVENTCOLLECTOR_SECRET, SESSION_SECRET_KEY")
	}
	if _, err := base64.StdEncoding.DecodeString(c.EventCollectorSecret); err != nil {
		return fmt.Errorf("EVENTCOLLECTOR_SECRET is not valid base64: %w", err)
	}
	switch c.UserStore {
	case UserStoreMemory:
	case UserStoreDynamo:
		if c.TableName == "" || c.Region == "" {
			return errors.New("TABLE_NAME and AWS_REGION are required when USER_STORE=dynamodb")
		}
	default:
		return fmt.Errorf("invalid USER_STORE %q", c.UserStore)
	}
	return nil
}

// LoadTeamPolicy reads a team policy file. The writer team is always
// evaluated.
func LoadTeamPolicy(path string) (TeamPolicy, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return TeamPolicy{}, err
	}
	var policy TeamPolicy
	if err := yaml.Unmarshal(raw, &policy); err != nil {
		return TeamPolicy{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if policy.WriterTeam == "" {
		return TeamPolicy{}, fmt.Errorf("%s: writer_team is required", path)
	}
	if !slices.Contains(policy.Teams, policy.WriterTeam) {
		policy.Teams = append(policy.Teams, policy.WriterTeam)
	}
	return policy, nil
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func boolEnv(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return b, nil
}

func floatEnv(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}
