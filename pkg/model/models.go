package model

import (
	"time"
)

// Run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// Run represents a single render-and-capture execution
type Run struct {
	ID           string     `json:"id"`
	StartedAt    time.Time  `json:"started_at"`
	FinishedAt   *time.Time `json:"finished_at,omitempty"`
	Status       string     `json:"status"`
	Backend      string     `json:"backend"`
	DataPath     string     `json:"data_path"`
	TemplatePath string     `json:"template_path"`
	ArtifactPath string     `json:"artifact_path,omitempty"`
	Bytes        int64      `json:"bytes"`
	Checksum     string     `json:"checksum,omitempty"`
	ErrorText    string     `json:"error_text,omitempty"`
	EmailSent    bool       `json:"email_sent"`            // Tracks whether the image was mailed
	EmailError   string     `json:"email_error,omitempty"` // Stores delivery error if any
	CreatedAt    time.Time  `json:"created_at"`
}

// Settings holds the environment-derived configuration
type Settings struct {
	RendererConfig RendererConfig `json:"renderer_config"`
	SMTPConfig     SMTPConfig     `json:"smtp_config" envPrefix:"MENUGEN_SMTP_"`
	LogConfig      LogConfig      `json:"log_config"`
	HistoryDB      string         `json:"history_db,omitempty" env:"MENUGEN_HISTORY_DB"` // SQLite run history, disabled when empty
}

// RendererConfig holds renderer configuration
type RendererConfig struct {
	Backend           string        `json:"backend" env:"MENUGEN_BACKEND" envDefault:"chromium"` // "chromium" (go-rod) or "playwright"
	ChromiumPath      string        `json:"chromium_path" env:"MENUGEN_CHROMIUM_PATH"`           // Path to Chrome/Chromium binary (optional, auto-detect if empty)
	ViewportWidth     int           `json:"viewport_width" env:"MENUGEN_VIEWPORT_WIDTH" envDefault:"1920"`
	ViewportHeight    int           `json:"viewport_height" env:"MENUGEN_VIEWPORT_HEIGHT" envDefault:"1080"`
	DeviceScaleFactor float64       `json:"device_scale_factor" env:"MENUGEN_DEVICE_SCALE_FACTOR" envDefault:"1"`
	SettleDelay       time.Duration `json:"settle_delay" env:"MENUGEN_SETTLE_DELAY" envDefault:"1s"` // Fixed pause between load and capture
	Timeout           time.Duration `json:"timeout" env:"MENUGEN_TIMEOUT" envDefault:"30s"`
}

// SMTPConfig holds delivery configuration
type SMTPConfig struct {
	Host           string   `json:"host" env:"HOST"`
	Port           int      `json:"port" env:"PORT" envDefault:"587"`
	Username       string   `json:"username" env:"USERNAME"`
	Password       string   `json:"-" env:"PASSWORD"`
	From           string   `json:"from" env:"FROM"`
	To             []string `json:"to" env:"TO" envSeparator:","`
	Subject        string   `json:"subject" env:"SUBJECT" envDefault:"Menu {{date}}"`
	Body           string   `json:"body" env:"BODY" envDefault:"Menu rendered at {{date}} ({{backend}})."`
	UseTLS         bool     `json:"use_tls" env:"USE_TLS"`
	SkipTLSVerify  bool     `json:"skip_tls_verify" env:"SKIP_TLS_VERIFY"` // Skip TLS certificate verification
	AllowedDomains []string `json:"allowed_domains,omitempty" env:"ALLOWED_DOMAINS" envSeparator:","` // If empty, all domains are allowed
}

// Enabled reports whether delivery is configured
func (s SMTPConfig) Enabled() bool {
	return s.Host != "" && len(s.To) > 0
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `json:"level" env:"MENUGEN_LOG_LEVEL" envDefault:"debug"`
	MaxSizeMB  int    `json:"max_size_mb" env:"MENUGEN_LOG_MAX_SIZE" envDefault:"10"`
	MaxBackups int    `json:"max_backups" env:"MENUGEN_LOG_MAX_BACKUPS" envDefault:"5"`
}
