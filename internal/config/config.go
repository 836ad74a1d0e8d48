package config

import (
	"os"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port         string
	DatabasePath string
	JWTSecret    string
	AppEnv       string
	CORSOrigins  []string
	// OTPDevCode, when set, is issued for every OTP request instead of a
	// random code. Defaults to "123456" in dev so the portal works without
	// an SMS/email gateway.
	OTPDevCode string
}

func Load() *Config {
	godotenv.Load()

	cfg := &Config{
		Port:         getEnv("PORT", "8000"),
		DatabasePath: getEnv("DATABASE_PATH", "tracelite.db"),
		JWTSecret:    getEnv("JWT_SECRET_KEY", "your-secret-key-change-in-production"),
		AppEnv:       getEnv("APP_ENV", "dev"),
		CORSOrigins:  splitOrigins(getEnv("CORS_ORIGINS", "*")),
		OTPDevCode:   os.Getenv("OTP_DEV_CODE"),
	}

	if cfg.OTPDevCode == "" && cfg.AppEnv == "dev" {
		cfg.OTPDevCode = "123456"
	}

	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func splitOrigins(s string) []string {
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
