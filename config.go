package crawlserv

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/crawlserv/crawlserv/logging"
)

// Config is the process-wide static configuration, read once at startup from
// a YAML file. Per-website/per-module operator configuration (crawler,
// parser, analyzer knobs) is a separate, JSON-encoded Configuration row (see
// model.go) decoded by each module's own Config type — this struct only
// holds the bootstrap settings a server needs before it can talk to storage
// at all.
var Config ServerConfig

// ConfigName is the path to the config file that should be read; settable
// before calling ReadConfigFile so tests can point at fixtures.
var ConfigName = "crawlserv.yaml"

// ServerConfig mirrors the teacher's WalkerConfig shape: a single struct
// read straight from YAML, organized into one sub-struct per concern.
type ServerConfig struct {
	Storage struct {
		DSN                string `yaml:"dsn"` // go-sql-driver/mysql DSN
		MaxIdleTime        string `yaml:"max_idle_time"`
		MaxOpenConns       int    `yaml:"max_open_conns"`
		DeadlockRetries    int    `yaml:"deadlock_retries"`
		DeadlockRetryDelay string `yaml:"deadlock_retry_delay"`
	} `yaml:"storage"`

	Locks struct {
		CrawlerLock   string `yaml:"crawler_lock"`
		ParserLock    string `yaml:"parser_lock"`
		ExtractorLock string `yaml:"extractor_lock"`
		AnalyzerLock  string `yaml:"analyzer_lock"`
	} `yaml:"locks"`

	Network struct {
		UserAgent          string   `yaml:"user_agent"`
		HTTPTimeout        string   `yaml:"http_timeout"`
		MaxConnsPerHost    int      `yaml:"max_conns_per_host"`
		AcceptFormats      []string `yaml:"accept_formats"`
		MaxContentBytes    int64    `yaml:"max_content_bytes"`
		MaxDNSCacheEntries int      `yaml:"max_dns_cache_entries"`
	} `yaml:"network"`

	Retry struct {
		HTTPCodes    []int  `yaml:"http"`
		SleepError   string `yaml:"sleep_error"`
		MaxAttempts  int    `yaml:"attempts"` // negative means unlimited
		ArchiveRetry bool   `yaml:"archive"`
	} `yaml:"retry"`

	Supervisor struct {
		SleepIdle              string `yaml:"sleep_idle"`
		SleepOnConnectionError string `yaml:"sleep_on_connection_error"`
		StatusFlushInterval    string `yaml:"status_flush_interval"`
	} `yaml:"supervisor"`

	Control struct {
		ListenAddr        string   `yaml:"listen_addr"`
		AllowedIPs        []string `yaml:"allowed_ips"`
		AllowOrigin       string   `yaml:"allow_origin"`
		TemplateDirectory string   `yaml:"template_directory"`
		SessionSecret     string   `yaml:"session_secret"`
	} `yaml:"control"`

	LogLevel string `yaml:"log_level"`
}

func init() {
	SetDefaultConfig()
}

// SetDefaultConfig resets Config to default values, regardless of what a
// previously-loaded config file set.
func SetDefaultConfig() {
	Config = ServerConfig{}

	Config.Storage.MaxIdleTime = "10m"
	Config.Storage.MaxOpenConns = 16
	Config.Storage.DeadlockRetries = 5
	Config.Storage.DeadlockRetryDelay = "200ms"

	Config.Locks.CrawlerLock = "300s"
	Config.Locks.ParserLock = "300s"
	Config.Locks.ExtractorLock = "300s"
	Config.Locks.AnalyzerLock = "300s"

	Config.Network.UserAgent = "crawlserv (+https://github.com/crawlserv/crawlserv)"
	Config.Network.HTTPTimeout = "30s"
	Config.Network.MaxConnsPerHost = 4
	Config.Network.AcceptFormats = []string{"text/html", "application/xhtml+xml"}
	Config.Network.MaxContentBytes = 20 * 1024 * 1024
	Config.Network.MaxDNSCacheEntries = 20000

	Config.Retry.HTTPCodes = []int{429, 500, 502, 503, 504}
	Config.Retry.SleepError = "5s"
	Config.Retry.MaxAttempts = 3
	Config.Retry.ArchiveRetry = true

	Config.Supervisor.SleepIdle = "5s"
	Config.Supervisor.SleepOnConnectionError = "10s"
	Config.Supervisor.StatusFlushInterval = "2s"

	Config.Control.ListenAddr = ":3000"
	Config.Control.AllowedIPs = []string{"127.0.0.1"}
	Config.Control.AllowOrigin = "*"
	Config.Control.TemplateDirectory = "control/templates"

	Config.LogLevel = "info"
}

// ReadConfigFile sets ConfigName and (re)loads configuration from it.
func ReadConfigFile(path string) error {
	ConfigName = path
	return readConfig()
}

func readConfig() error {
	SetDefaultConfig()

	data, err := os.ReadFile(ConfigName)
	if err != nil {
		return fmt.Errorf("failed to read config file (%v): %w", ConfigName, err)
	}
	if err := yaml.Unmarshal(data, &Config); err != nil {
		return fmt.Errorf("failed to unmarshal yaml from config file (%v): %w", ConfigName, err)
	}

	if err := assertConfigInvariants(); err != nil {
		return err
	}
	logging.SetLevel(Config.LogLevel)
	logging.Info("loaded config file %v", ConfigName)
	return nil
}

func assertConfigInvariants() error {
	var errs []string

	durations := map[string]string{
		"storage.max_idle_time":                Config.Storage.MaxIdleTime,
		"storage.deadlock_retry_delay":          Config.Storage.DeadlockRetryDelay,
		"network.http_timeout":                  Config.Network.HTTPTimeout,
		"retry.sleep_error":                     Config.Retry.SleepError,
		"supervisor.sleep_idle":                 Config.Supervisor.SleepIdle,
		"supervisor.sleep_on_connection_error":  Config.Supervisor.SleepOnConnectionError,
		"supervisor.status_flush_interval":      Config.Supervisor.StatusFlushInterval,
	}
	for name, v := range durations {
		if _, err := time.ParseDuration(v); err != nil {
			errs = append(errs, fmt.Sprintf("%s failed to parse: %v", name, err))
		}
	}

	if Config.Storage.DSN == "" {
		errs = append(errs, "storage.dsn must be set")
	}

	if len(errs) > 0 {
		msg := ""
		for _, e := range errs {
			logging.Error("config error: %v", e)
			msg += "\t" + e + "\n"
		}
		return fmt.Errorf("config error:\n%v", msg)
	}
	return nil
}
