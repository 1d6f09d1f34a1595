package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	SnapshotFile     = "file"
	SnapshotPostgres = "postgres"

	BlobLocal  = "local"
	BlobMemory = "mem"
	BlobPinata = "pinata"
	BlobS3     = "s3"
)

type Config struct {
	Port        string
	LogLevel    string
	CORSOrigins []string

	SnapshotBackend string
	SnapshotPath    string
	DatabaseURL     string

	Blob BlobConfig
}

type BlobConfig struct {
	Backend       string
	UploadTimeout time.Duration

	// local
	Dir string

	// pinata
	PinataJWT       string
	PinataGateway   string
	PinataUploadURL string

	// s3
	S3Bucket          string
	S3Region          string
	S3Prefix          string
	S3Endpoint        string
	S3AccessKeyID     string
	S3SecretAccessKey string
}

// Load reads the configuration from the environment. Call godotenv.Load first
// if a .env file should be honoured.
func Load() (*Config, error) {
	timeout, err := time.ParseDuration(getEnv("BLOB_UPLOAD_TIMEOUT", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid BLOB_UPLOAD_TIMEOUT: %w", err)
	}

	cfg := &Config{
		Port:            getEnv("PORT", "7474"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		CORSOrigins:     splitList(getEnv("CORS_ORIGINS", "*")),
		SnapshotBackend: getEnv("SNAPSHOT_BACKEND", SnapshotFile),
		SnapshotPath:    getEnv("SNAPSHOT_PATH", "data/documents.json"),
		DatabaseURL:     databaseURL(),
		Blob: BlobConfig{
			Backend:           getEnv("BLOB_BACKEND", BlobLocal),
			UploadTimeout:     timeout,
			Dir:               getEnv("BLOB_DIR", "data/blobs"),
			PinataJWT:         getEnv("PINATA_JWT", ""),
			PinataGateway:     getEnv("PINATA_GATEWAY", ""),
			PinataUploadURL:   getEnv("PINATA_UPLOAD_URL", "https://uploads.pinata.cloud/v3/files"),
			S3Bucket:          getEnv("S3_BUCKET", ""),
			S3Region:          getEnv("S3_REGION", "us-east-1"),
			S3Prefix:          getEnv("S3_PREFIX", "documents/"),
			S3Endpoint:        getEnv("S3_ENDPOINT", ""),
			S3AccessKeyID:     getEnv("S3_ACCESS_KEY_ID", ""),
			S3SecretAccessKey: getEnv("S3_SECRET_ACCESS_KEY", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.SnapshotBackend {
	case SnapshotFile:
		if c.SnapshotPath == "" {
			return fmt.Errorf("SNAPSHOT_PATH is required for the %s snapshot backend", SnapshotFile)
		}
	case SnapshotPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the %s snapshot backend", SnapshotPostgres)
		}
	default:
		return fmt.Errorf("unknown SNAPSHOT_BACKEND %q", c.SnapshotBackend)
	}

	switch c.Blob.Backend {
	case BlobLocal, BlobMemory:
	case BlobPinata:
		if c.Blob.PinataJWT == "" {
			return fmt.Errorf("PINATA_JWT is required for the %s blob backend", BlobPinata)
		}
	case BlobS3:
		if c.Blob.S3Bucket == "" {
			return fmt.Errorf("S3_BUCKET is required for the %s blob backend", BlobS3)
		}
	default:
		return fmt.Errorf("unknown BLOB_BACKEND %q", c.Blob.Backend)
	}

	if c.Blob.UploadTimeout <= 0 {
		return fmt.Errorf("BLOB_UPLOAD_TIMEOUT must be positive")
	}
	return nil
}

// databaseURL prefers DATABASE_URL and falls back to the discrete
// user/password/host/port/dbname variables.
func databaseURL() string {
	if url := strings.TrimSpace(os.Getenv("DATABASE_URL")); url != "" {
		return url
	}
	dbHost := strings.TrimSpace(os.Getenv("host"))
	if dbHost == "" {
		return ""
	}
	dbUser := strings.TrimSpace(os.Getenv("user"))
	dbPass := strings.TrimSpace(os.Getenv("password"))
	dbPort := strings.TrimSpace(getEnv("port", "5432"))
	dbName := strings.TrimSpace(os.Getenv("dbname"))
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=require", dbUser, dbPass, dbHost, dbPort, dbName)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
