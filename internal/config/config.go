package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

type Config struct {
	Server    ServerConfig
	Log       LogConfig
	Canvas    CanvasConfig
	Google    GoogleConfig
	Drive     DriveConfig
	Storage   StorageConfig
	Documents DocumentsConfig
	OCR       OCRConfig
	Syllabus  SyllabusConfig
}

type ServerConfig struct {
	Host               string
	Port               int
	Env                string
	APIKey             string
	RateLimitPerMinute int
}

// Development reports whether error responses may carry diagnostic detail.
func (s ServerConfig) Development() bool { return s.Env == "development" }

// Addr returns the listen address.
func (s ServerConfig) Addr() string { return fmt.Sprintf("%s:%d", s.Host, s.Port) }

type LogConfig struct {
	Level string
}

type CanvasConfig struct {
	BaseURL string
	Timeout time.Duration
}

type GoogleConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Timeout      time.Duration
}

// Configured reports whether all three OAuth values are present.
func (g GoogleConfig) Configured() bool {
	return g.ClientID != "" && g.ClientSecret != "" && g.RefreshToken != ""
}

type DriveConfig struct {
	FolderName     string
	ReflectionFile string
}

type StorageConfig struct {
	DataDir         string
	WeeklyEmailPath string
	SyllabiDir      string
	RegistryPath    string
}

// DBPath is the SQLite file holding the document cache.
func (s StorageConfig) DBPath() string { return filepath.Join(s.DataDir, "attune.db") }

type DocumentsConfig struct {
	CacheTTL time.Duration
	Timeout  time.Duration
}

type OCRConfig struct {
	Engine        string
	PdftoppmPath  string
	TesseractPath string
	MaxPages      int
	RasterTimeout time.Duration
	DPI           int
}

type SyllabusConfig struct {
	EmailDomain string
}

// OCR engines.
const (
	EngineTesseract = "tesseract"
	EngineVision    = "vision"
)

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Host:               "0.0.0.0",
			Port:               3000,
			Env:                "production",
			RateLimitPerMinute: 100,
		},
		Log: LogConfig{Level: "info"},
		Canvas: CanvasConfig{
			Timeout: 30 * time.Second,
		},
		Google: GoogleConfig{
			Timeout: 30 * time.Second,
		},
		Drive: DriveConfig{
			FolderName:     "Attunement Assistant",
			ReflectionFile: "reflections.jsonl",
		},
		Storage: StorageConfig{
			DataDir:         defaultDataDir(),
			WeeklyEmailPath: "./data/weekly-emails.json",
			SyllabiDir:      "./syllabi",
			RegistryPath:    "./students.yaml",
		},
		Documents: DocumentsConfig{
			CacheTTL: time.Hour,
			Timeout:  30 * time.Second,
		},
		OCR: OCRConfig{
			Engine:        EngineTesseract,
			PdftoppmPath:  "pdftoppm",
			TesseractPath: "tesseract",
			MaxPages:      10,
			RasterTimeout: 60 * time.Second,
			DPI:           200,
		},
	}
}

// Load reads configuration from the JSON file at
// $XDG_CONFIG_HOME/attune/config.json, then applies ATTUNE_* environment
// overrides. Secrets are only read from the environment.
//
// Load never fails on missing values; call Validate before serving.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

// Validate reports every missing or malformed value at once.
func (c Config) Validate() error {
	var problems []string
	if c.Server.APIKey == "" {
		problems = append(problems, "server.api_key is required (set ATTUNE_API_KEY)")
	}
	if c.Canvas.BaseURL == "" {
		problems = append(problems, "canvas.base_url is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		problems = append(problems, fmt.Sprintf("server.port %d is out of range", c.Server.Port))
	}
	if c.Server.Env != "production" && c.Server.Env != "development" {
		problems = append(problems, fmt.Sprintf("server.env must be production or development, got %q", c.Server.Env))
	}
	if c.Server.RateLimitPerMinute <= 0 {
		problems = append(problems, "server.rate_limit_per_minute must be positive")
	}
	g := c.Google
	if (g.ClientID != "" || g.ClientSecret != "" || g.RefreshToken != "") && !g.Configured() {
		var missing []string
		if g.ClientID == "" {
			missing = append(missing, "google.client_id")
		}
		if g.ClientSecret == "" {
			missing = append(missing, "google.client_secret")
		}
		if g.RefreshToken == "" {
			missing = append(missing, "google.refresh_token")
		}
		problems = append(problems, "incomplete Google credentials, missing "+strings.Join(missing, ", "))
	}
	if c.OCR.Engine != EngineTesseract && c.OCR.Engine != EngineVision {
		problems = append(problems, fmt.Sprintf("ocr.engine must be %s or %s, got %q", EngineTesseract, EngineVision, c.OCR.Engine))
	}
	if c.OCR.MaxPages <= 0 {
		problems = append(problems, "ocr.max_pages must be positive")
	}
	for _, d := range []struct {
		key string
		v   time.Duration
	}{
		{"canvas.timeout", c.Canvas.Timeout},
		{"google.timeout", c.Google.Timeout},
		{"documents.timeout", c.Documents.Timeout},
		{"ocr.raster_timeout", c.OCR.RasterTimeout},
	} {
		if d.v <= 0 {
			problems = append(problems, d.key+" must be positive")
		}
	}
	if len(problems) > 0 {
		return errors.New("invalid config:\n  - " + strings.Join(problems, "\n  - "))
	}
	return nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "attune-data"
		}
	}
	return filepath.Join(dir, "attune")
}
