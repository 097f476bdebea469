package config

import (
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config represents the complete server configuration
type Config struct {
	Database DatabaseConfig `yaml:"database" envconfig:"DB"`
	Server   ServerConfig   `yaml:"server" envconfig:"HTTP"`
	PDF      PDFConfig      `yaml:"pdf" envconfig:"PDF"`
	Tracker  TrackerConfig  `yaml:"tracker" envconfig:"TRACKER"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOG"`
	Batch    BatchConfig    `yaml:"batch" envconfig:"REPORT_BATCH"`

	// LabTables maps lab identifiers to their inventory table.
	LabTables           map[string]string `yaml:"lab_tables" envconfig:"LAB_TABLES" default:"Y1-Y2:labpotencia,Y6-Y7:labelectronica,Y8:labthird" validate:"required,dive,keys,required,endkeys,sqlident"`
	Programs            []string          `yaml:"programs" envconfig:"CARRERAS_DISPONIBLES"`
	InstitutionalDomain string            `yaml:"institutional_domain" envconfig:"INSTITUTIONAL_DOMAIN" default:"morelia.tecnm.mx" validate:"required,hostname"`
	FilenamePattern     string            `yaml:"filename_pattern" envconfig:"REPORT_FILENAME_PATTERN"`
	StrictKinds         bool              `yaml:"strict_kinds" envconfig:"REPORT_STRICT_KINDS" default:"false"`
}

// DatabaseConfig points at the lab loan database
type DatabaseConfig struct {
	Driver          string        `yaml:"driver" envconfig:"DRIVER" default:"mysql" validate:"required,oneof=mysql mariadb postgres postgresql pgx sqlite sqlite3"`
	DSN             string        `yaml:"dsn" envconfig:"DSN" validate:"required"`
	MaxOpenConns    int           `yaml:"max_open_conns" envconfig:"MAX_OPEN_CONNS" default:"10" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"max_idle_conns" envconfig:"MAX_IDLE_CONNS" default:"5" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" envconfig:"CONN_MAX_LIFETIME" default:"30m"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR" default:":8080" validate:"required"`
	BasePath        string        `yaml:"base_path" envconfig:"BASE_PATH" default:"/reports" validate:"required,startswith=/"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"5m" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"30s" validate:"gt=0"`
}

// PDFConfig selects the HTML to PDF engine
type PDFConfig struct {
	Engine          string        `yaml:"engine" envconfig:"ENGINE" default:"chromium" validate:"oneof=chromium wkhtmltopdf none"`
	ChromiumPath    string        `yaml:"chromium_path" envconfig:"CHROMIUM_PATH"`
	WKHTMLTOPDFPath string        `yaml:"wkhtmltopdf_path" envconfig:"WKHTMLTOPDF_PATH" default:"wkhtmltopdf"`
	Timeout         time.Duration `yaml:"timeout" envconfig:"TIMEOUT" default:"60s" validate:"gt=0"`
}

// TrackerConfig configures the report run history store
type TrackerConfig struct {
	// DSN is a sqlite DSN; empty keeps history in memory.
	DSN       string        `yaml:"dsn" envconfig:"DSN"`
	Retention time.Duration `yaml:"retention" envconfig:"RETENTION" default:"720h" validate:"gte=0"`
}

// BatchConfig enables the scheduled report batch; an empty Dir disables it.
type BatchConfig struct {
	Dir           string        `yaml:"dir" envconfig:"DIR"`
	Format        string        `yaml:"format" envconfig:"FORMAT" default:"pdf" validate:"oneof=csv pdf xlsx"`
	Schedule      string        `yaml:"schedule" envconfig:"SCHEDULE" default:"0 6 * * 1" validate:"required"`
	MaxRetries    int           `yaml:"max_retries" envconfig:"MAX_RETRIES" default:"2" validate:"gte=0"`
	RetryInterval time.Duration `yaml:"retry_interval" envconfig:"RETRY_INTERVAL" default:"30s" validate:"gte=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
}

var sqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads the environment, overlays CONFIG_FILE when set and validates the result.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// overlayFile applies the keys present in a YAML file over the current values.
// Lab tables from the file are merged into the existing map.
func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, c)
}

func (c *Config) normalize() {
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	c.PDF.Engine = strings.ToLower(strings.TrimSpace(c.PDF.Engine))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Batch.Format = strings.ToLower(strings.TrimSpace(c.Batch.Format))
	c.InstitutionalDomain = strings.ToLower(strings.TrimSpace(c.InstitutionalDomain))

	programs := c.Programs[:0]
	for _, program := range c.Programs {
		if program = strings.TrimSpace(program); program != "" {
			programs = append(programs, program)
		}
	}
	c.Programs = programs

	labs := make(map[string]string, len(c.LabTables))
	for lab, table := range c.LabTables {
		labs[strings.TrimSpace(lab)] = strings.TrimSpace(table)
	}
	c.LabTables = labs
}

// Validate checks struct constraints and lab table identifiers.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.RegisterValidation("sqlident", isSQLIdentifier); err != nil {
		return err
	}
	if err := v.Struct(c); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			return fieldErrors(verrs)
		}
		return err
	}
	return nil
}

// Labs returns the configured lab identifiers in order.
func (c *Config) Labs() []string {
	labs := make([]string, 0, len(c.LabTables))
	for lab := range c.LabTables {
		labs = append(labs, lab)
	}
	sort.Strings(labs)
	return labs
}

func isSQLIdentifier(fl validator.FieldLevel) bool {
	return sqlIdentifier.MatchString(fl.Field().String())
}

func fieldErrors(verrs validator.ValidationErrors) error {
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: failed %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}
