package config

import (
	"bytes"
	"fmt"
	"net"
	neturl "net/url"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"
	defaultPort       = 2333
	defaultEnv        = "development"
	defaultDBHost     = "127.0.0.1"
	defaultDBPort     = 3306
	defaultDBUser     = "root"
	defaultDBPassword = "password"
	defaultDBName     = "contentgen"
	defaultDBCharset  = "utf8mb4"
	defaultDBLoc      = "Local"
	defaultRedisHost  = "localhost"
	defaultRedisPort  = 6379
	defaultRedisDB    = 0
)

const (
	// GenerationModeSimple skips character extraction and summarization
	// and retrieves snippets by global match ranking.
	GenerationModeSimple = "simple"
	// GenerationModeEnriched runs the full analysis pipeline with
	// per-tag sampled retrieval.
	GenerationModeEnriched = "enriched"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int               `yaml:"port"`
	Env            string            `yaml:"env"` // "development" | "production"
	DSN            string            `yaml:"dsn"` // MySQL DSN
	RedisURL       string            `yaml:"redis_url"`
	Database       DatabaseConfig    `yaml:"database"`
	Redis          RedisConfig       `yaml:"redis"`
	AllowedOrigins []string          `yaml:"allowed_origins"`
	ObjectStore    ObjectStoreConfig `yaml:"object_store"`
	Inference      InferenceConfig   `yaml:"inference"`
	Generation     GenerationConfig  `yaml:"generation"`
}

type DatabaseConfig struct {
	DSN       string `yaml:"dsn"`
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	Name      string `yaml:"name"`
	Charset   string `yaml:"charset"`
	ParseTime bool   `yaml:"parse_time"`
	Loc       string `yaml:"loc"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

// ObjectStoreConfig configures the S3-compatible bucket holding snippet bodies.
type ObjectStoreConfig struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	PathStyleAccess bool   `yaml:"path_style_access"`
}

// InferenceConfig declares the available model providers and which
// provider/model each pipeline step uses.
type InferenceConfig struct {
	Providers       []Provider       `yaml:"providers"`
	CharacterModel  *ModelAssignment `yaml:"character_model"`
	SummaryModel    *ModelAssignment `yaml:"summary_model"`
	TagModel        *ModelAssignment `yaml:"tag_model"`
	GenerationModel *ModelAssignment `yaml:"generation_model"`
}

// Provider is one configured inference backend.
// Type is one of: OpenAI | OpenAI-Compatible | Anthropic | OpenRouter.
type Provider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"`
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

// ModelAssignment binds a pipeline step to a provider and model.
type ModelAssignment struct {
	ProviderID string `yaml:"provider_id"`
	Model      string `yaml:"model"`
}

type GenerationConfig struct {
	Mode           string `yaml:"mode"` // simple | enriched
	MaxLength      int    `yaml:"max_length"`
	TopK           int    `yaml:"top_k"`
	SnippetsPerTag int    `yaml:"snippets_per_tag"`
}

func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	normalizeAppConfig(&cfg)
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d in %q, expected 1-65535", cfg.Port, path)
	}
	if cfg.Database.Port < 1 || cfg.Database.Port > 65535 {
		return nil, fmt.Errorf("invalid database.port %d in %q, expected 1-65535", cfg.Database.Port, path)
	}
	if cfg.Redis.Port < 1 || cfg.Redis.Port > 65535 {
		return nil, fmt.Errorf("invalid redis.port %d in %q, expected 1-65535", cfg.Redis.Port, path)
	}
	if mode := cfg.Generation.Mode; mode != GenerationModeSimple && mode != GenerationModeEnriched {
		return nil, fmt.Errorf("invalid generation.mode %q in %q, expected simple or enriched", mode, path)
	}

	return &cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port: defaultPort,
		Env:  defaultEnv,
		Database: DatabaseConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
			DB:   defaultRedisDB,
		},
		Generation: GenerationConfig{
			Mode:           GenerationModeEnriched,
			MaxLength:      800,
			TopK:           5,
			SnippetsPerTag: 2,
		},
	}
}

func normalizeAppConfig(cfg *AppConfig) {
	cfg.Env = strings.ToLower(strings.TrimSpace(cfg.Env))
	if cfg.Env == "" {
		cfg.Env = defaultEnv
	}
	if v := strings.TrimSpace(cfg.DSN); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(cfg.RedisURL); v != "" {
		cfg.Redis.URL = v
	}
	cfg.DSN = cfg.Database.DSNValue()
	cfg.RedisURL = cfg.Redis.URLValue()
	cfg.AllowedOrigins = normalizeOrigins(cfg.AllowedOrigins)

	cfg.ObjectStore.Endpoint = strings.TrimRight(strings.TrimSpace(cfg.ObjectStore.Endpoint), "/")
	if cfg.ObjectStore.Region == "" {
		cfg.ObjectStore.Region = "auto"
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Generation.Mode))
	if mode == "" {
		mode = GenerationModeEnriched
	}
	cfg.Generation.Mode = mode
	if cfg.Generation.MaxLength <= 0 {
		cfg.Generation.MaxLength = 800
	}
	if cfg.Generation.TopK <= 0 {
		cfg.Generation.TopK = 5
	}
	if cfg.Generation.SnippetsPerTag <= 0 {
		cfg.Generation.SnippetsPerTag = 2
	}
}

func (c DatabaseConfig) DSNValue() string {
	if v := strings.TrimSpace(c.DSN); v != "" {
		return v
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultDBHost
	}
	port := c.Port
	if port == 0 {
		port = defaultDBPort
	}
	user := strings.TrimSpace(c.User)
	if user == "" {
		user = defaultDBUser
	}
	password := c.Password
	name := strings.TrimSpace(c.Name)
	if name == "" {
		name = defaultDBName
	}
	charset := strings.TrimSpace(c.Charset)
	if charset == "" {
		charset = defaultDBCharset
	}
	loc := strings.TrimSpace(c.Loc)
	if loc == "" {
		loc = defaultDBLoc
	}

	params := neturl.Values{}
	params.Set("charset", charset)
	params.Set("parseTime", strconv.FormatBool(c.ParseTime))
	params.Set("loc", loc)

	auth := user
	if password != "" {
		auth += ":" + password
	}

	return fmt.Sprintf("%s@tcp(%s)/%s?%s", auth, net.JoinHostPort(host, strconv.Itoa(port)), name, params.Encode())
}

func (c RedisConfig) URLValue() string {
	if u := strings.TrimSpace(c.URL); u != "" {
		if strings.HasPrefix(u, "redis://") || strings.HasPrefix(u, "rediss://") {
			return u
		}
		return "redis://" + u
	}

	host := strings.TrimSpace(c.Host)
	if host == "" {
		host = defaultRedisHost
	}
	port := c.Port
	if port == 0 {
		port = defaultRedisPort
	}
	scheme := "redis"
	if c.TLS {
		scheme = "rediss"
	}

	u := &neturl.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.Itoa(port)),
		Path:   "/" + strconv.Itoa(c.DB),
	}
	username := strings.TrimSpace(c.Username)
	password := strings.TrimSpace(c.Password)
	if username != "" {
		if password != "" {
			u.User = neturl.UserPassword(username, password)
		} else {
			u.User = neturl.User(username)
		}
	} else if password != "" {
		u.User = neturl.UserPassword("", password)
	}

	return u.String()
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func (c *AppConfig) IsDev() bool {
	return strings.EqualFold(c.Env, defaultEnv)
}

// AssignmentFor returns the model assignment for a pipeline step name.
func (c InferenceConfig) AssignmentFor(step string) *ModelAssignment {
	switch step {
	case "characters":
		return c.CharacterModel
	case "summary":
		return c.SummaryModel
	case "tags":
		return c.TagModel
	case "generation":
		return c.GenerationModel
	}
	return nil
}
