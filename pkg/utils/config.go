package utils

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTDuration time.Duration
}

type ServerConfig struct {
	HTTPAddr  string
	AssetsDir string
	AssetsURL string
}

// LoadEnv reads a .env file if one is present. Real environment
// variables always win over file entries.
func LoadEnv() {
	_ = godotenv.Load()
}

func LoadAuthConfig() AuthConfig {
	secret := os.Getenv("BIBLIOHUB_JWT_SECRET")
	if secret == "" {
		// dev default (change for demo / production)
		secret = "dev-secret-change-me"
	}

	issuer := os.Getenv("BIBLIOHUB_JWT_ISSUER")
	if issuer == "" {
		issuer = "bibliohub"
	}

	duration := 24 * time.Hour
	if ttl := os.Getenv("BIBLIOHUB_JWT_TTL_HOURS"); ttl != "" {
		if hours, err := strconv.Atoi(ttl); err == nil && hours > 0 {
			duration = time.Duration(hours) * time.Hour
		}
	}

	return AuthConfig{
		JWTSecret:   secret,
		JWTIssuer:   issuer,
		JWTDuration: duration,
	}
}

func LoadServerConfig() ServerConfig {
	addr := os.Getenv("BIBLIOHUB_HTTP_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	assetsDir := os.Getenv("BIBLIOHUB_ASSETS_DIR")
	if assetsDir == "" {
		assetsDir = "data/assets"
	}

	assetsURL := os.Getenv("BIBLIOHUB_ASSETS_URL")
	if assetsURL == "" {
		assetsURL = "/assets"
	}

	return ServerConfig{
		HTTPAddr:  addr,
		AssetsDir: assetsDir,
		AssetsURL: assetsURL,
	}
}
