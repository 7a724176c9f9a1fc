package server

import (
	"os"
	"strconv"
	"time"

	_ "github.com/joho/godotenv/autoload"
)

// Config holds every runtime setting the server reads from the environment.
type Config struct {
	TCPPort        int           // framed TCP listener
	HTTPPort       int           // websocket gateway and health endpoint
	MaxClients     int           // client registry capacity
	MaxGames       int           // match registry capacity
	RematchTimeout time.Duration // bounded wait for the opponent's rematch vote
	DatabaseURL    string        // empty disables the match archive
	LogLevel       string
	LogFile        string
}

func LoadConfig() Config {
	return Config{
		TCPPort:        envInt("TCP_PORT", 9090),
		HTTPPort:       envInt("HTTP_PORT", 8080),
		MaxClients:     envInt("MAX_CLIENTS", 64),
		MaxGames:       envInt("MAX_GAMES", 50),
		RematchTimeout: time.Duration(envInt("REMATCH_TIMEOUT", 30)) * time.Second,
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		LogLevel:       envString("LOG_LEVEL", "info"),
		LogFile:        os.Getenv("LOG_FILE"),
	}
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
