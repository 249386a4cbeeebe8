package config

import (
    "os"
    "strconv"
    "strings"
    "time"
)

// LoggingConfig holds logging-related configuration.
type LoggingConfig struct {
    Level        string
    Pretty       bool
    File         string
    MaxSizeMB    int
    MaxBackups   int
    MaxAgeDays   int
    Compress     bool
}

// AxiomConfig holds Axiom logging configuration.
type AxiomConfig struct {
    Send          bool
    APIKey        string
    OrgID         string
    Dataset       string
    FlushInterval time.Duration
}

// GatewayConfig defines the hosted LLM gateway connection and models.
type GatewayConfig struct {
    BaseURL      string
    APIKey       string
    Model        string // schema-constrained generation
    FastModel    string // free-form solve/analysis
    SolveTimeout time.Duration
    CooldownBase time.Duration
    CooldownMax  time.Duration
    MaxInflight  int
}

// ExtractConfig defines extraction pipeline behavior.
type ExtractConfig struct {
    RasterScale    float64
    ProbeThreshold int
    MaxUploadMB    int
    OCRTimeout     time.Duration
}

// StorageConfig defines where uploads and extracted text are persisted.
type StorageConfig struct {
    Backend  string // "s3" | "local"
    S3Bucket string
    LocalDir string
}

// RedisConfig defines Redis connectivity.
type RedisConfig struct {
    URL string
}

// Config is the top-level configuration.
type Config struct {
    Logging LoggingConfig
    Axiom   AxiomConfig
    Gateway GatewayConfig
    Extract ExtractConfig
    Storage StorageConfig
    Redis   RedisConfig
}

// FromEnv loads configuration from environment with sensible defaults.
func FromEnv() Config {
    cfg := Config{}

    // Logging defaults
    cfg.Logging = LoggingConfig{
        Level:      getEnv("LOG_LEVEL", "info"),
        Pretty:     parseBool(getEnv("LOG_PRETTY", devDefaultPretty())),
        File:       getEnv("LOG_FILE", "logs/examprep.log"),
        MaxSizeMB:  parseInt(getEnv("LOG_MAX_SIZE_MB", "100"), 100),
        MaxBackups: parseInt(getEnv("LOG_MAX_BACKUPS", "10"), 10),
        MaxAgeDays: parseInt(getEnv("LOG_MAX_AGE_DAYS", "30"), 30),
        Compress:   parseBool(getEnv("LOG_COMPRESS", "true")),
    }

    // Axiom defaults
    baseDataset := getEnv("AXIOM_DATASET", "dev")
    cfg.Axiom = AxiomConfig{
        Send:          parseBool(getEnv("SEND_LOGS_TO_AXIOM", "0")),
        APIKey:        getEnv("AXIOM_API_KEY", ""),
        OrgID:         getEnv("AXIOM_ORG_ID", ""),
        Dataset:       baseDataset + "_examprep",
        FlushInterval: parseDuration(getEnv("AXIOM_FLUSH_INTERVAL", "10s"), 10*time.Second),
    }

    // Gateway defaults
    cfg.Gateway = GatewayConfig{
        BaseURL:      getEnv("AI_GATEWAY_URL", "https://ai.gateway.lovable.dev/v1"),
        APIKey:       getEnv("AI_GATEWAY_API_KEY", ""),
        Model:        getEnv("AI_GATEWAY_MODEL", "google/gemini-2.5-flash"),
        FastModel:    getEnv("AI_GATEWAY_FAST_MODEL", "google/gemini-2.5-flash-lite"),
        SolveTimeout: parseDuration(getEnv("SOLVE_TIMEOUT", "55s"), 55*time.Second),
        CooldownBase: parseDuration(getEnv("GATEWAY_COOLDOWN_BASE", "30s"), 30*time.Second),
        CooldownMax:  parseDuration(getEnv("GATEWAY_COOLDOWN_MAX", "5m"), 5*time.Minute),
        MaxInflight:  parseInt(getEnv("GATEWAY_MAX_INFLIGHT", "2"), 2),
    }

    // Extraction defaults
    cfg.Extract = ExtractConfig{
        RasterScale:    parseFloat(getEnv("OCR_RASTER_SCALE", "2.0"), 2.0),
        ProbeThreshold: parseInt(getEnv("TEXT_PROBE_THRESHOLD", "300"), 300),
        MaxUploadMB:    parseInt(getEnv("MAX_UPLOAD_MB", "32"), 32),
        OCRTimeout:     parseDuration(getEnv("OCR_PAGE_TIMEOUT", "60s"), 60*time.Second),
    }

    // Storage defaults
    cfg.Storage = StorageConfig{
        Backend:  strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
        S3Bucket: getEnv("AWS_S3_BUCKET", "examprep-files-dev"),
        LocalDir: getEnv("UPLOAD_DIR", "uploads"),
    }

    // Redis defaults
    cfg.Redis = RedisConfig{
        URL: getEnv("REDIS_URL", "redis://localhost:6379"),
    }

    return cfg
}

// Helpers
func getEnv(key, def string) string {
    if v := os.Getenv(key); v != "" {
        return v
    }
    return def
}

func parseInt(s string, def int) int {
    if s == "" { return def }
    if n, err := strconv.Atoi(s); err == nil { return n }
    return def
}

func parseFloat(s string, def float64) float64 {
    if s == "" { return def }
    if f, err := strconv.ParseFloat(s, 64); err == nil { return f }
    return def
}

func parseBool(s string) bool {
    v := strings.ToLower(strings.TrimSpace(s))
    return v == "1" || v == "true" || v == "yes" || v == "on"
}

func parseDuration(s string, def time.Duration) time.Duration {
    if s == "" { return def }
    if d, err := time.ParseDuration(s); err == nil { return d }
    return def
}

func devDefaultPretty() string {
    env := strings.ToLower(os.Getenv("ENVIRONMENT"))
    if env == "dev" || env == "development" || env == "local" { return "true" }
    return "false"
}
