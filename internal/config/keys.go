package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kDuration
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.host", typ: kString, env: "ATTUNE_SERVER_HOST",
		apply:   func(cfg *Config, v any) { cfg.Server.Host = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Host },
	},
	{
		key: "server.port", typ: kInt, env: "ATTUNE_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.env", typ: kString, env: "ATTUNE_SERVER_ENV",
		apply:   func(cfg *Config, v any) { cfg.Server.Env = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.Env },
	},
	{
		key: "server.api_key", typ: kString, env: "ATTUNE_API_KEY",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIKey = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIKey },
	},
	{
		key: "server.rate_limit_per_minute", typ: kInt, env: "ATTUNE_SERVER_RATE_LIMIT_PER_MINUTE",
		apply:   func(cfg *Config, v any) { cfg.Server.RateLimitPerMinute = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.RateLimitPerMinute },
	},
	{
		key: "log.level", typ: kString, env: "ATTUNE_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "canvas.base_url", typ: kString, env: "ATTUNE_CANVAS_BASE_URL",
		apply:   func(cfg *Config, v any) { cfg.Canvas.BaseURL = v.(string) },
		extract: func(cfg Config) any { return cfg.Canvas.BaseURL },
	},
	{
		key: "canvas.timeout", typ: kDuration, env: "ATTUNE_CANVAS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Canvas.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Canvas.Timeout },
	},
	{
		key: "google.client_id", typ: kString, env: "ATTUNE_GOOGLE_CLIENT_ID",
		apply:   func(cfg *Config, v any) { cfg.Google.ClientID = v.(string) },
		extract: func(cfg Config) any { return cfg.Google.ClientID },
	},
	{
		key: "google.client_secret", typ: kString, env: "ATTUNE_GOOGLE_CLIENT_SECRET",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Google.ClientSecret = v.(string) },
		extract: func(cfg Config) any { return cfg.Google.ClientSecret },
	},
	{
		key: "google.refresh_token", typ: kString, env: "ATTUNE_GOOGLE_REFRESH_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Google.RefreshToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Google.RefreshToken },
	},
	{
		key: "google.timeout", typ: kDuration, env: "ATTUNE_GOOGLE_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Google.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Google.Timeout },
	},
	{
		key: "drive.folder_name", typ: kString, env: "ATTUNE_DRIVE_FOLDER_NAME",
		apply:   func(cfg *Config, v any) { cfg.Drive.FolderName = v.(string) },
		extract: func(cfg Config) any { return cfg.Drive.FolderName },
	},
	{
		key: "drive.reflection_file", typ: kString, env: "ATTUNE_DRIVE_REFLECTION_FILE",
		apply:   func(cfg *Config, v any) { cfg.Drive.ReflectionFile = v.(string) },
		extract: func(cfg Config) any { return cfg.Drive.ReflectionFile },
	},
	{
		key: "storage.data_dir", typ: kString, env: "ATTUNE_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.weekly_email_path", typ: kString, env: "ATTUNE_STORAGE_WEEKLY_EMAIL_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.WeeklyEmailPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.WeeklyEmailPath },
	},
	{
		key: "storage.syllabi_dir", typ: kString, env: "ATTUNE_STORAGE_SYLLABI_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.SyllabiDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.SyllabiDir },
	},
	{
		key: "storage.registry_path", typ: kString, env: "ATTUNE_STORAGE_REGISTRY_PATH",
		apply:   func(cfg *Config, v any) { cfg.Storage.RegistryPath = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.RegistryPath },
	},
	{
		key: "documents.cache_ttl", typ: kDuration, env: "ATTUNE_DOCUMENTS_CACHE_TTL",
		apply:   func(cfg *Config, v any) { cfg.Documents.CacheTTL = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Documents.CacheTTL },
	},
	{
		key: "documents.timeout", typ: kDuration, env: "ATTUNE_DOCUMENTS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Documents.Timeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.Documents.Timeout },
	},
	{
		key: "ocr.engine", typ: kString, env: "ATTUNE_OCR_ENGINE",
		apply:   func(cfg *Config, v any) { cfg.OCR.Engine = v.(string) },
		extract: func(cfg Config) any { return cfg.OCR.Engine },
	},
	{
		key: "ocr.pdftoppm_path", typ: kString, env: "ATTUNE_OCR_PDFTOPPM_PATH",
		apply:   func(cfg *Config, v any) { cfg.OCR.PdftoppmPath = v.(string) },
		extract: func(cfg Config) any { return cfg.OCR.PdftoppmPath },
	},
	{
		key: "ocr.tesseract_path", typ: kString, env: "ATTUNE_OCR_TESSERACT_PATH",
		apply:   func(cfg *Config, v any) { cfg.OCR.TesseractPath = v.(string) },
		extract: func(cfg Config) any { return cfg.OCR.TesseractPath },
	},
	{
		key: "ocr.max_pages", typ: kInt, env: "ATTUNE_OCR_MAX_PAGES",
		apply:   func(cfg *Config, v any) { cfg.OCR.MaxPages = v.(int) },
		extract: func(cfg Config) any { return cfg.OCR.MaxPages },
	},
	{
		key: "ocr.raster_timeout", typ: kDuration, env: "ATTUNE_OCR_RASTER_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.OCR.RasterTimeout = v.(time.Duration) },
		extract: func(cfg Config) any { return cfg.OCR.RasterTimeout },
	},
	{
		key: "ocr.dpi", typ: kInt, env: "ATTUNE_OCR_DPI",
		apply:   func(cfg *Config, v any) { cfg.OCR.DPI = v.(int) },
		extract: func(cfg Config) any { return cfg.OCR.DPI },
	},
	{
		key: "syllabus.email_domain", typ: kString, env: "ATTUNE_SYLLABUS_EMAIL_DOMAIN",
		apply:   func(cfg *Config, v any) { cfg.Syllabus.EmailDomain = v.(string) },
		extract: func(cfg Config) any { return cfg.Syllabus.EmailDomain },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kDuration:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if d, err := time.ParseDuration(v); err == nil {
					s.apply(cfg, d)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kDuration:
			if d, err := time.ParseDuration(raw); err == nil {
				s.apply(cfg, d)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse duration from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
