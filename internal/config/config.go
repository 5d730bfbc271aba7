package config

import (
	"flag"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Addr              string
	LogLevel          string
	Env               string
	DatabaseURL       string
	JWTSecret         string
	VaultKey          string // base64-encoded 32-byte secretbox key
	KeepalivePingInt  time.Duration
	KeepalivePongWait time.Duration
	WriteDeadline     time.Duration
	SweepInterval     time.Duration // room expiration sweep period
	RoomTTL           time.Duration // time-to-live for a new room
	TicketTTL         time.Duration // admission ticket lifetime
	DisconnectGrace   time.Duration // client-side ICE disconnected grace window
	BanWindow         time.Duration
	MaxFailedAttempts int
}

// Load parses and returns the application configuration.
// Priority: command-line flags > environment variables > .env file > defaults.
func Load() *Config {
	_ = godotenv.Load() // .env is optional

	addr := flag.String("addr", getEnv("SERVER_ADDR", ":8080"), "http service address")
	logLevel := flag.String("log-level", getEnv("LOG_LEVEL", "info"), "log level (debug, info, warn, error)")
	env := flag.String("env", getEnv("ENVIRONMENT", "development"), "environment (development, staging, production)")
	dbURL := flag.String("database-url", getEnv("DATABASE_URL", "postgres://aq:aq@localhost:5432/aqcoordinator?sslmode=disable"), "postgres connection string")
	jwtSecret := flag.String("jwt-secret", getEnv("JWT_SECRET", "dev-admission-ticket-secret"), "admission ticket signing secret")
	vaultKey := flag.String("vault-key", getEnv("VAULT_KEY", ""), "base64-encoded 32-byte TURN credential vault key")
	pingInt := flag.String("keepalive-ping", getEnv("KEEPALIVE_PING_SECONDS", "20"), "signaling heartbeat ping interval in seconds")
	pongWait := flag.String("keepalive-pong", getEnv("KEEPALIVE_PONG_SECONDS", "45"), "keepalive pong wait time in seconds")
	writeDeadline := flag.String("write-deadline", getEnv("WRITE_DEADLINE_SECONDS", "5"), "write operation timeout in seconds")
	sweepInt := flag.String("sweep-interval", getEnv("SWEEP_INTERVAL_SECONDS", "60"), "room expiration sweep period in seconds")
	roomTTL := flag.String("room-ttl", getEnv("ROOM_TTL_HOURS", "24"), "room lifetime in hours")
	ticketTTL := flag.String("ticket-ttl", getEnv("TICKET_TTL_SECONDS", "30"), "admission ticket lifetime in seconds")
	disconnectGrace := flag.String("disconnect-grace", getEnv("DISCONNECT_GRACE_SECONDS", "12"), "ICE disconnected grace window in seconds")
	banWindow := flag.String("ban-window", getEnv("BAN_WINDOW_MINUTES", "60"), "failed-attempt ban window in minutes")
	maxFailed := flag.String("max-failed-attempts", getEnv("MAX_FAILED_ATTEMPTS", "5"), "wrong-password attempts before a ban")
	flag.Parse()

	return &Config{
		Addr:              *addr,
		LogLevel:          strings.ToLower(*logLevel),
		Env:               strings.ToLower(*env),
		DatabaseURL:       *dbURL,
		JWTSecret:         *jwtSecret,
		VaultKey:          *vaultKey,
		KeepalivePingInt:  parseSeconds(*pingInt, 20),
		KeepalivePongWait: parseSeconds(*pongWait, 45),
		WriteDeadline:     parseSeconds(*writeDeadline, 5),
		SweepInterval:     parseSeconds(*sweepInt, 60),
		RoomTTL:           time.Duration(parseInt(*roomTTL, 24)) * time.Hour,
		TicketTTL:         parseSeconds(*ticketTTL, 30),
		DisconnectGrace:   parseSeconds(*disconnectGrace, 12),
		BanWindow:         time.Duration(parseInt(*banWindow, 60)) * time.Minute,
		MaxFailedAttempts: parseInt(*maxFailed, 5),
	}
}

func parseSeconds(s string, fallback int64) time.Duration {
	return time.Duration(parseInt64(s, fallback)) * time.Second
}

func parseInt64(s string, fallback int64) int64 {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseInt(s string, fallback int) int {
	return int(parseInt64(s, int64(fallback)))
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
