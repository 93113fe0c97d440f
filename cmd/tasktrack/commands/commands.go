package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"gopkg.in/yaml.v3"
	"k8s.io/client-go/util/homedir"

	"github.com/meteosahel/tasktrack/internal/log"
	"github.com/meteosahel/tasktrack/internal/storage/sqlite"
	"github.com/meteosahel/tasktrack/internal/task"
)

const (
	// LoggerTypeDefault is the logger default type.
	LoggerTypeDefault = "default"
	// LoggerTypeJSON is the logger json type.
	LoggerTypeJSON = "json"
)

// Command represents an application command, all commands that want to be executed
// should implement and setup on main.
type Command interface {
	Name() string
	Run(ctx context.Context) error
}

// RootCommand represents the root command configuration and global configuration
// for all the commands.
type RootCommand struct {
	// Global flags.
	Debug      bool
	NoLog      bool
	NoColor    bool
	LoggerType string
	DBPath     string
	ConfigPath string

	// Global instances.
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
	Logger log.Logger
}

// NewRootCommand initializes the main root configuration.
func NewRootCommand(app *kingpin.Application) *RootCommand {
	c := &RootCommand{}

	app.Flag("debug", "Enable debug mode.").BoolVar(&c.Debug)
	app.Flag("no-log", "Disable logger.").BoolVar(&c.NoLog)
	app.Flag("no-color", "Disable logger color.").BoolVar(&c.NoColor)
	app.Flag("logger", "Selects the logger type.").Default(LoggerTypeDefault).EnumVar(&c.LoggerType, LoggerTypeDefault, LoggerTypeJSON)

	defaultDBPath := filepath.Join(homedir.HomeDir(), ".tasktrack", "tasktrack.db")
	app.Flag("db-path", "Path to the SQLite database file.").Envar("TASKTRACK_DB_PATH").Default(defaultDBPath).StringVar(&c.DBPath)

	defaultConfigPath := filepath.Join(homedir.HomeDir(), ".tasktrack", "config.yaml")
	app.Flag("config", "Path to the YAML configuration file (job API settings).").Envar("TASKTRACK_CONFIG").Default(defaultConfigPath).StringVar(&c.ConfigPath)

	return c
}

// APIConfig holds the job API settings read from the configuration file.
type APIConfig struct {
	BaseURL         string
	AuthToken       string
	Namespace       string
	PollInterval    time.Duration
	RetentionWindow time.Duration
}

type fileConfig struct {
	APIBaseURL      string `yaml:"api_base_url"`
	APIAuthToken    string `yaml:"api_auth_token"`
	Namespace       string `yaml:"namespace"`
	PollInterval    string `yaml:"poll_interval"`
	RetentionWindow string `yaml:"retention_window"`
}

// LoadAPIConfig reads the YAML configuration file. A missing file at the
// default path is not an error: commands that do not reach the job API work
// without one.
func (c *RootCommand) LoadAPIConfig() (*APIConfig, error) {
	data, err := os.ReadFile(c.ConfigPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &APIConfig{}, nil
		}
		return nil, fmt.Errorf("could not read config file %s: %w", c.ConfigPath, err)
	}

	fc := fileConfig{}
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("could not parse config file %s: %w", c.ConfigPath, err)
	}

	cfg := &APIConfig{
		BaseURL:   fc.APIBaseURL,
		AuthToken: fc.APIAuthToken,
		Namespace: fc.Namespace,
	}
	if fc.PollInterval != "" {
		cfg.PollInterval, err = time.ParseDuration(fc.PollInterval)
		if err != nil {
			return nil, fmt.Errorf("invalid poll_interval %q: %w", fc.PollInterval, err)
		}
	}
	if fc.RetentionWindow != "" {
		cfg.RetentionWindow, err = time.ParseDuration(fc.RetentionWindow)
		if err != nil {
			return nil, fmt.Errorf("invalid retention_window %q: %w", fc.RetentionWindow, err)
		}
	}

	return cfg, nil
}

// newStore opens the SQLite-backed task store the commands operate on. The
// returned close function releases the database connection.
func (c *RootCommand) newStore(ctx context.Context) (*task.Store, func() error, error) {
	kv, err := sqlite.NewKV(ctx, sqlite.KVConfig{
		DBPath: c.DBPath,
		Logger: c.Logger,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("could not open storage: %w", err)
	}

	apiCfg, err := c.LoadAPIConfig()
	if err != nil {
		kv.Close()
		return nil, nil, err
	}

	store, err := task.NewStore(ctx, task.StoreConfig{
		KV:              kv,
		Namespace:       apiCfg.Namespace,
		RetentionWindow: apiCfg.RetentionWindow,
		Logger:          c.Logger,
	})
	if err != nil {
		kv.Close()
		return nil, nil, fmt.Errorf("could not create task store: %w", err)
	}

	return store, kv.Close, nil
}
