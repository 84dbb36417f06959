package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"poptrend/strutil"
)

// Defaults for the consumer surface. Topic and group id match the
// producer side's .env conventions so an unset environment still
// attaches to something predictable.
const (
	DefaultTopic   = "unknown_topic"
	DefaultGroupID = "default_group"
	DefaultBroker  = "localhost:9092"
)

// Environment variable names honored by ApplyEnv. BUZZ_TOPIC and
// BUZZ_CONSUMER_GROUP_ID are the producer ecosystem's names; the
// POPTREND_ keys cover what only this consumer needs.
const (
	EnvTopic   = "BUZZ_TOPIC"
	EnvGroupID = "BUZZ_CONSUMER_GROUP_ID"
	EnvBrokers = "POPTREND_BROKERS"
)

// Config represents the complete consumer configuration
type Config struct {
	Kafka     KafkaConfig     `yaml:"kafka"`
	Series    SeriesConfig    `yaml:"series"`
	UI        UIConfig        `yaml:"ui"`
	Logging   LoggingConfig   `yaml:"logging"`
	RejectLog RejectLogConfig `yaml:"reject_log"`
	Stats     StatsConfig     `yaml:"stats"`

	// LoadedFrom records the file the config came from, or "" for
	// pure defaults.
	LoadedFrom string `yaml:"-"`
}

// KafkaConfig contains the source topic settings
type KafkaConfig struct {
	Brokers     []string `yaml:"brokers"`
	Topic       string   `yaml:"topic"`
	GroupID     string   `yaml:"group_id"`
	StartOffset string   `yaml:"start_offset"` // earliest or latest
	MinBytes    int      `yaml:"min_bytes"`
	MaxBytes    int      `yaml:"max_bytes"`
	QueueSize   int      `yaml:"queue_size"`
}

// SeriesConfig labels the single series this consumer charts
type SeriesConfig struct {
	Country string `yaml:"country"`
	Title   string `yaml:"title"`
}

// UIConfig contains renderer settings
type UIConfig struct {
	Mode        string          `yaml:"mode"` // tview, ansi, or headless
	TargetFPS   int             `yaml:"target_fps"`
	RefreshMS   int             `yaml:"refresh_ms"`
	EventLines  int             `yaml:"event_lines"`
	NoColor     bool            `yaml:"no_color"`
	NoClear     bool            `yaml:"no_clear"`
	ChartWidth  int             `yaml:"chart_width"`  // ANSI mode and final frame
	ChartHeight int             `yaml:"chart_height"` // ANSI mode and final frame
	PaneLines   PaneLinesConfig `yaml:"pane_lines"`
}

// PaneLinesConfig sizes the ANSI console panes
type PaneLinesConfig struct {
	Stats   int `yaml:"stats"`
	Records int `yaml:"records"`
	Rejects int `yaml:"rejects"`
	System  int `yaml:"system"`
}

// LoggingConfig contains file logging settings
type LoggingConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	RetentionDays int    `yaml:"retention_days"`
}

// RejectLogConfig contains the rejected-payload audit log settings
type RejectLogConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Dir           string `yaml:"dir"`
	QueueSize     int    `yaml:"queue_size"`
	RetentionDays int    `yaml:"retention_days"`
}

// StatsConfig contains periodic stats display settings
type StatsConfig struct {
	DisplayIntervalSeconds int `yaml:"display_interval_seconds"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.normalize()
	return cfg
}

// Load reads a YAML config file and overlays it on the defaults. A
// missing file is not an error: the defaults apply unchanged.
func Load(filename string) (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.normalize()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	cfg.LoadedFrom = filename
	cfg.normalize()
	return cfg, nil
}

func (c *Config) normalize() {
	if len(c.Kafka.Brokers) == 0 {
		c.Kafka.Brokers = []string{DefaultBroker}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = DefaultTopic
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = DefaultGroupID
	}
	c.Kafka.StartOffset = strutil.NormalizeLower(c.Kafka.StartOffset)
	if c.Kafka.StartOffset == "" {
		c.Kafka.StartOffset = "earliest"
	}
	if c.Kafka.MinBytes <= 0 {
		c.Kafka.MinBytes = 1
	}
	if c.Kafka.MaxBytes <= 0 {
		c.Kafka.MaxBytes = 10 << 20
	}
	if c.Kafka.QueueSize <= 0 {
		c.Kafka.QueueSize = 256
	}
	if c.Series.Country == "" {
		c.Series.Country = "United States"
	}
	if c.Series.Title == "" {
		c.Series.Title = c.Series.Country + " Population and Average Population Trend"
	}
	c.UI.Mode = strutil.NormalizeLower(c.UI.Mode)
	if c.UI.Mode == "" {
		c.UI.Mode = "tview"
	}
	if c.UI.TargetFPS <= 0 {
		c.UI.TargetFPS = 15
	}
	if c.UI.RefreshMS <= 0 {
		c.UI.RefreshMS = 500
	}
	if c.UI.EventLines <= 0 {
		c.UI.EventLines = 200
	}
	if c.UI.ChartWidth <= 0 {
		c.UI.ChartWidth = 100
	}
	if c.UI.ChartHeight <= 0 {
		c.UI.ChartHeight = 24
	}
	if c.UI.PaneLines.Stats <= 0 {
		c.UI.PaneLines.Stats = 4
	}
	if c.UI.PaneLines.Records <= 0 {
		c.UI.PaneLines.Records = 6
	}
	if c.UI.PaneLines.Rejects <= 0 {
		c.UI.PaneLines.Rejects = 4
	}
	if c.UI.PaneLines.System <= 0 {
		c.UI.PaneLines.System = 4
	}
	if c.Logging.Dir == "" {
		c.Logging.Dir = "logs"
	}
	if c.Logging.RetentionDays <= 0 {
		c.Logging.RetentionDays = 14
	}
	if c.RejectLog.Dir == "" {
		c.RejectLog.Dir = "rejects"
	}
	if c.RejectLog.QueueSize <= 0 {
		c.RejectLog.QueueSize = 512
	}
	if c.RejectLog.RetentionDays <= 0 {
		c.RejectLog.RetentionDays = 14
	}
	if c.Stats.DisplayIntervalSeconds <= 0 {
		c.Stats.DisplayIntervalSeconds = 30
	}
}

// fileEnv holds the .env overlay so file values win over the process
// environment, matching how the producer tooling resolves its config.
var fileEnv map[string]string

// LoadEnvFile reads .env from the working directory into the overlay
// consulted by ApplyEnv. A missing file leaves the overlay empty.
func LoadEnvFile() {
	env, err := godotenv.Read(".env")
	if err != nil {
		return
	}
	fileEnv = env
}

func getenv(key string) string {
	if val, ok := fileEnv[key]; ok {
		return val
	}
	return os.Getenv(key)
}

// ApplyEnv overlays environment variables on the loaded config.
// Values from .env take precedence over the process environment.
func (c *Config) ApplyEnv() {
	c.applyEnv(getenv)
}

func (c *Config) applyEnv(lookup func(string) string) {
	if v := strings.TrimSpace(lookup(EnvBrokers)); v != "" {
		c.Kafka.Brokers = splitBrokers(v)
	}
	if v := strings.TrimSpace(lookup(EnvTopic)); v != "" {
		c.Kafka.Topic = v
	}
	if v := strings.TrimSpace(lookup(EnvGroupID)); v != "" {
		c.Kafka.GroupID = v
	}
}

func splitBrokers(s string) []string {
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	if len(brokers) == 0 {
		return []string{DefaultBroker}
	}
	return brokers
}

// Print displays the configuration
func (c *Config) Print() {
	source := c.LoadedFrom
	if source == "" {
		source = "defaults"
	}
	fmt.Printf("Config: %s\n", source)
	fmt.Printf("Kafka: %s topic=%s group=%s offset=%s\n",
		strings.Join(c.Kafka.Brokers, ","), c.Kafka.Topic, c.Kafka.GroupID, c.Kafka.StartOffset)
	fmt.Printf("Series: %s\n", c.Series.Title)
	fmt.Printf("UI: mode=%s fps=%d\n", c.UI.Mode, c.UI.TargetFPS)
	if c.Logging.Enabled {
		fmt.Printf("Logging: dir=%s retention=%dd\n", c.Logging.Dir, c.Logging.RetentionDays)
	}
	if c.RejectLog.Enabled {
		fmt.Printf("Reject log: dir=%s queue=%d\n", c.RejectLog.Dir, c.RejectLog.QueueSize)
	}
}
