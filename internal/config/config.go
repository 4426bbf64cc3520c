package config

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

var ErrConfiguration = errors.New("invalid configuration")

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"

	ModeReadWrite = "RW"
	ModeReadOnly  = "RO"
)

type HTTPServer struct {
	Host string
	Port string
	Mode string
	// PublicURL is the base of share links handed out to members.
	PublicURL string
}

type RedisCache struct {
	Enabled  bool
	Host     string
	Port     string
	Password string
	PageTTL  time.Duration
}

type Postgres struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type TMDB struct {
	APIKey       string
	BaseURL      string
	ImageBaseURL string
	Language     string
	Region       string
	SortBy       string
	MinVoteCount int
	Timeout      time.Duration
}

type Consensus struct {
	VoteRetries int
	RetryDelay  time.Duration
}

type Store struct {
	Driver string
}

type API struct {
	BaseURL string
	Timeout time.Duration
}

type Config struct {
	HTTP      HTTPServer
	Redis     RedisCache
	Postgres  Postgres
	TMDB      TMDB
	Consensus Consensus
	Store     Store
	API       API
	LogLevel  string
}

const logtag = "[config]"

// MustLoad reads the -config flag, loads the env file and exits on any
// configuration problem. Nothing else may start with a broken config.
func MustLoad() *Config {
	configPath := flag.String("config", "", "path env file")
	flag.Parse()

	cfg, err := Load(*configPath)
	if err != nil {
		log.Fatalf("%s %v", logtag, err)
	}
	return cfg
}

func loadEnv(path string) error {
	if path != "" {
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("%w: loading env from %s: %w", ErrConfiguration, path, err)
		}
		log.Printf("%s using env from : %s", logtag, path)
		return nil
	}
	log.Printf("%s using env from .env", logtag)
	_ = godotenv.Load()
	return nil
}

func Load(path string) (*Config, error) {
	if err := loadEnv(path); err != nil {
		return nil, err
	}

	var errs []error
	cfg := &Config{
		HTTP:      *newHTTP(),
		Redis:     *newRedis(&errs),
		Postgres:  *newPostgres(),
		TMDB:      *newTMDB(&errs),
		Consensus: *newConsensus(&errs),
		Store:     Store{Driver: strings.ToLower(getenv("STORE_DRIVER", StoreDriverPostgres))},
		API:       *newAPI(&errs),
		LogLevel:  getenv("LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrConfiguration}, errs...)...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadClient reads only what the terminal client needs. It talks to the
// server, so store, cache and TMDB credentials stay unset.
func LoadClient(path string) (*Config, error) {
	if err := loadEnv(path); err != nil {
		return nil, err
	}

	var errs []error
	cfg := &Config{
		HTTP:     HTTPServer{PublicURL: getenv("PUBLIC_URL", "http://localhost:8080/")},
		TMDB:     TMDB{ImageBaseURL: getenv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p")},
		API:      *newAPI(&errs),
		LogLevel: getenv("LOG_LEVEL", "warn"),
	}
	if cfg.API.BaseURL == "" {
		errs = append(errs, errors.New("API_BASE_URL is required"))
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrConfiguration}, errs...)...)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.TMDB.APIKey == "" {
		errs = append(errs, errors.New("TMDB_API_KEY is required"))
	}
	if _, err := strconv.Atoi(c.HTTP.Port); err != nil {
		errs = append(errs, fmt.Errorf("HTTP_PORT %q is not a number", c.HTTP.Port))
	}
	if c.HTTP.Mode != ModeReadWrite && c.HTTP.Mode != ModeReadOnly {
		errs = append(errs, fmt.Errorf("HTTP_MODE must be %s or %s", ModeReadWrite, ModeReadOnly))
	}
	switch c.Store.Driver {
	case StoreDriverMemory:
	case StoreDriverPostgres:
		if c.Postgres.Host == "" || c.Postgres.DBName == "" {
			errs = append(errs, errors.New("DB_HOST and DB_NAME are required for the postgres store"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown STORE_DRIVER %q", c.Store.Driver))
	}
	if c.Consensus.VoteRetries < 0 {
		errs = append(errs, errors.New("CONSENSUS_VOTE_RETRIES must not be negative"))
	}
	if len(errs) == 0 {
		return nil
	}
	return errors.Join(append([]error{ErrConfiguration}, errs...)...)
}

func (p Postgres) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host,
		p.Port,
		p.User,
		p.Password,
		p.DBName,
		p.SSLMode,
	)
}

func (r RedisCache) Addr() string {
	return r.Host + ":" + r.Port
}

func newHTTP() *HTTPServer {
	return &HTTPServer{
		Port:      getenv("HTTP_PORT", "8080"),
		Host:      getenv("HTTP_HOST", "localhost"),
		Mode:      strings.ToUpper(getenv("HTTP_MODE", ModeReadWrite)),
		PublicURL: getenv("PUBLIC_URL", "http://localhost:8080/"),
	}
}

func newRedis(errs *[]error) *RedisCache {
	return &RedisCache{
		Enabled:  getbool("REDIS_ENABLED", false, errs),
		Port:     getenv("REDIS_PORT", "6379"),
		Host:     getenv("REDIS_HOST", "redis"),
		Password: getenv("REDIS_PASSWORD", "shared"),
		PageTTL:  getduration("REDIS_PAGE_TTL", 10*time.Minute, errs),
	}
}

func newPostgres() *Postgres {
	return &Postgres{
		Host:     getenv("DB_HOST", "localhost"),
		Port:     getenv("DB_PORT", "5432"),
		User:     getenv("DB_USER", "admin"),
		Password: getenv("DB_PASSWORD", "shared"),
		DBName:   getenv("DB_NAME", "kinomatch"),
		SSLMode:  getenv("DB_SSLMODE", "disable"),
	}
}

func newTMDB(errs *[]error) *TMDB {
	return &TMDB{
		APIKey:       getenv("TMDB_API_KEY", ""),
		BaseURL:      getenv("TMDB_BASE_URL", "https://api.themoviedb.org/3"),
		ImageBaseURL: getenv("TMDB_IMAGE_BASE_URL", "https://image.tmdb.org/t/p"),
		Language:     getenv("TMDB_LANGUAGE", "nl-NL"),
		Region:       getenv("TMDB_REGION", "NL"),
		SortBy:       getenv("TMDB_SORT_BY", "popularity.desc"),
		MinVoteCount: getint("TMDB_MIN_VOTE_COUNT", 50, errs),
		Timeout:      getduration("TMDB_TIMEOUT", 10*time.Second, errs),
	}
}

func newConsensus(errs *[]error) *Consensus {
	return &Consensus{
		VoteRetries: getint("CONSENSUS_VOTE_RETRIES", 3, errs),
		RetryDelay:  getduration("CONSENSUS_RETRY_DELAY", 50*time.Millisecond, errs),
	}
}

func newAPI(errs *[]error) *API {
	return &API{
		BaseURL: getenv("API_BASE_URL", "http://localhost:8080/api/v1"),
		Timeout: getduration("API_TIMEOUT", 10*time.Second, errs),
	}
}

func getenv(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		fmt.Printf("%s %s undefined. Using default value %s\n", logtag, key, mask(key, defaultValue))
		return defaultValue
	}
	fmt.Printf("%s %s = %s\n", logtag, key, mask(key, val))
	return val
}

func getint(key string, defaultValue int, errs *[]error) int {
	raw := getenv(key, strconv.Itoa(defaultValue))
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getbool(key string, defaultValue bool, errs *[]error) bool {
	raw := getenv(key, strconv.FormatBool(defaultValue))
	v, err := strconv.ParseBool(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func getduration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	raw := getenv(key, defaultValue.String())
	v, err := time.ParseDuration(raw)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return v
}

func mask(key, val string) string {
	if val == "" {
		return val
	}
	if strings.Contains(key, "PASSWORD") || strings.Contains(key, "KEY") {
		return "***"
	}
	return val
}
