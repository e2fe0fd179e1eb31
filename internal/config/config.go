package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Addr       string
	ClansFile  string
	JWTSecret  string
	AdminToken string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	CORSOrigin string
	// Secondary document store - empty disables mirroring
	DatabaseURL string
	// Redis - empty disables refresh tokens
	RedisURL string
	// Meilisearch - empty disables the search index
	MeiliURL       string
	MeiliMasterKey string
	// Object storage for clan images - empty endpoint disables uploads
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioUseSSL    bool
	MinioPublicURL string
}

func Load() Config {
	return Config{
		Addr:           getenv("API_ADDR", ":8787"),
		ClansFile:      getenv("CLANS_FILE", "./data/clans.json"),
		JWTSecret:      getenv("CLANHUB_JWT_SECRET", "clanhub-dev-secret"),
		AdminToken:     getenv("CLANHUB_ADMIN_TOKEN", "clanhub-admin-token"),
		AccessTTL:      time.Duration(getenvInt("CLANHUB_ACCESS_TTL_SECONDS", 900)) * time.Second,
		RefreshTTL:     time.Duration(getenvInt("CLANHUB_REFRESH_TTL_SECONDS", 2592000)) * time.Second,
		CORSOrigin:     getenv("CORS_ORIGIN", "*"),
		DatabaseURL:    getenv("DATABASE_URL", ""),
		RedisURL:       getenv("REDIS_URL", ""),
		MeiliURL:       getenv("MEILI_URL", ""),
		MeiliMasterKey: getenv("MEILI_MASTER_KEY", ""),
		MinioEndpoint:  getenv("MINIO_ENDPOINT", ""),
		MinioAccessKey: getenv("MINIO_ACCESS_KEY", ""),
		MinioSecretKey: getenv("MINIO_SECRET_KEY", ""),
		MinioBucket:    getenv("MINIO_BUCKET", "clan-crests"),
		MinioUseSSL:    getenvBool("MINIO_USE_SSL", false),
		MinioPublicURL: getenv("MINIO_PUBLIC_URL", ""),
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getenvInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func getenvBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fallback
	}
	return parsed
}
