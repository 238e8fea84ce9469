package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port         int
	GinMode      string
	MasterSecret string
	TokenExpiry  time.Duration
	TLSCertFile  string
	TLSKeyFile   string

	// DataDir holds the preference database and export artifacts.
	DataDir string

	// UploadDriver selects "cloudinary" (multipart endpoint) or "minio".
	UploadDriver  string
	UploadBaseURL string
	UploadCloudID string
	UploadPreset  string

	MinioHost      string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
}

type Env interface {
	Getenv(key string) string
}

type osEnv struct{}

func (osEnv) Getenv(key string) string { return os.Getenv(key) }

func LoadConfig() (Config, error) {
	return LoadConfigFromEnv(osEnv{})
}

func LoadConfigFromEnv(env Env) (Config, error) {
	cfg := Config{
		Port:          3000,
		GinMode:       "release",
		TokenExpiry:   7 * 24 * time.Hour,
		DataDir:       "data",
		UploadDriver:  "cloudinary",
		UploadBaseURL: "https://api.cloudinary.com/v1_1",
		MinioBucket:   "media",
	}

	if raw := env.Getenv("PORT"); raw != "" {
		port, err := strconv.Atoi(raw)
		if err != nil || port <= 0 || port > 65535 {
			return Config{}, fmt.Errorf("invalid PORT")
		}
		cfg.Port = port
	}

	cfg.MasterSecret = env.Getenv("MASTER_SECRET")
	if cfg.MasterSecret == "" {
		return Config{}, fmt.Errorf("MASTER_SECRET is required")
	}

	if raw := env.Getenv("GIN_MODE"); raw != "" {
		cfg.GinMode = raw
	}
	if raw := env.Getenv("TOKEN_EXPIRY_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return Config{}, fmt.Errorf("invalid TOKEN_EXPIRY_SECONDS")
		}
		cfg.TokenExpiry = time.Duration(seconds) * time.Second
	}

	cfg.TLSCertFile = env.Getenv("TLS_CERT_FILE")
	cfg.TLSKeyFile = env.Getenv("TLS_KEY_FILE")

	if raw := env.Getenv("DATA_DIR"); raw != "" {
		cfg.DataDir = raw
	}

	if raw := env.Getenv("UPLOAD_DRIVER"); raw != "" {
		cfg.UploadDriver = raw
	}
	if raw := env.Getenv("UPLOAD_BASE_URL"); raw != "" {
		cfg.UploadBaseURL = raw
	}
	cfg.UploadCloudID = env.Getenv("UPLOAD_CLOUD_ID")
	cfg.UploadPreset = env.Getenv("UPLOAD_PRESET")

	cfg.MinioHost = env.Getenv("MINIO_HOST")
	cfg.MinioAccessKey = env.Getenv("MINIO_ACCESS_KEY")
	cfg.MinioSecretKey = env.Getenv("MINIO_SECRET_KEY")
	if raw := env.Getenv("MINIO_BUCKET"); raw != "" {
		cfg.MinioBucket = raw
	}
	cfg.MinioUseSSL = env.Getenv("MINIO_USE_SSL") == "true"

	switch cfg.UploadDriver {
	case "cloudinary":
		if cfg.UploadCloudID == "" || cfg.UploadPreset == "" {
			return Config{}, fmt.Errorf("UPLOAD_CLOUD_ID and UPLOAD_PRESET are required for the cloudinary driver")
		}
	case "minio":
		if cfg.MinioHost == "" {
			return Config{}, fmt.Errorf("MINIO_HOST is required for the minio driver")
		}
	default:
		return Config{}, fmt.Errorf("invalid UPLOAD_DRIVER %q", cfg.UploadDriver)
	}

	return cfg, nil
}
