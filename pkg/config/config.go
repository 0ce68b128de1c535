package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/blockex/tradeapi-go/pkg/secretstore"
)

// Config is the application configuration for tools built on the SDK. There
// are no baked-in defaults for the API URL or partner ID: each value comes
// from the config file or the environment, and a missing API URL is an error
// rather than a silent fallback to some production host.
type Config struct {
	APIURL   string `yaml:"api_url"`
	APIID    string `yaml:"api_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`

	// TimeoutSeconds bounds each HTTP call; zero keeps the transport default.
	TimeoutSeconds int `yaml:"timeout_seconds"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// Load reads the YAML file at path (an empty path skips the file)
// and then applies environment overrides. A .env file in the working
// directory is honored when present.
func Load(path string) (*Config, error) {
	// Missing .env is fine; explicit files are the config file's job.
	_ = godotenv.Load()

	var cfg Config
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrap(err, "read config file")
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return nil, errors.Wrap(err, "parse config file")
		}
	}

	if err := applyCredStore(&cfg); err != nil {
		return nil, err
	}
	applyEnv(&cfg)

	if cfg.APIURL == "" {
		return nil, errors.New("api_url is required (config file or BLOCKEX_API_URL)")
	}
	return &cfg, nil
}

// Timeout converts TimeoutSeconds to a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// applyCredStore fills credential fields from the encrypted store named by
// BLOCKEX_CREDSTORE, when one is configured. File values take precedence;
// the store only fills gaps. Environment variables still override both.
func applyCredStore(cfg *Config) error {
	path := os.Getenv("BLOCKEX_CREDSTORE")
	if path == "" {
		return nil
	}
	key, err := secretstore.ParseKey(os.Getenv("BLOCKEX_CREDSTORE_KEY"))
	if err != nil {
		return errors.Wrap(err, "credential store key")
	}
	store, err := secretstore.Open(secretstore.OpenOptions{
		Path:          path,
		EncryptionKey: key,
		ReadOnly:      true,
	})
	if err != nil {
		return errors.Wrap(err, "open credential store")
	}
	defer store.Close()

	creds, err := store.LoadCredentials()
	if err != nil {
		return errors.Wrap(err, "read credential store")
	}
	if cfg.APIURL == "" {
		cfg.APIURL = creds.APIURL
	}
	if cfg.APIID == "" {
		cfg.APIID = creds.APIID
	}
	if cfg.Username == "" {
		cfg.Username = creds.Username
	}
	if cfg.Password == "" {
		cfg.Password = creds.Password
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BLOCKEX_API_URL"); v != "" {
		cfg.APIURL = v
	}
	if v := os.Getenv("BLOCKEX_API_ID"); v != "" {
		cfg.APIID = v
	}
	if v := os.Getenv("BLOCKEX_USERNAME"); v != "" {
		cfg.Username = v
	}
	if v := os.Getenv("BLOCKEX_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("BLOCKEX_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("BLOCKEX_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}
