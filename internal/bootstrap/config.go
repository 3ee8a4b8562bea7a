package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// defaultAllowedOrigins 是前端开发和线上部署的来源
var defaultAllowedOrigins = []string{
	"http://localhost:3000",
	"https://collab-whiteboard-sg6g.vercel.app",
}

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DBUser             string
	DBPassword         string
	DBHost             string
	DBPort             string
	DBName             string
	RedisAddr          string
	RedisPassword      string
	RedisDB            int
	KeyPrefix          string // Redis Key 前缀
	JWTSecret          string // 签发房间票据的密钥
	TicketTTLHours     int
	RequireRoomTicket  bool
	ServerPort         string
	LogLevel           string
	AppEnv             string // development/production
	AllowedOrigins     []string
	RateLimitMax       int
	RateLimitWindow    time.Duration
	SnapshotCacheTTL   time.Duration
	CheckpointSchedule string
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:             os.Getenv("DB_USER"),
		DBPassword:         os.Getenv("DB_PASSWORD"),
		DBHost:             os.Getenv("DB_HOST"),
		DBPort:             os.Getenv("DB_PORT"),
		DBName:             os.Getenv("DB_NAME"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:          os.Getenv("REDIS_KEY_PREFIX"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		ServerPort:         os.Getenv("SERVER_PORT"),
		LogLevel:           os.Getenv("LOG_LEVEL"),
		AppEnv:             os.Getenv("APP_ENV"),
		CheckpointSchedule: os.Getenv("CHECKPOINT_SCHEDULE"),
		RateLimitWindow:    1 * time.Second,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB")) // 忽略错误，默认为 0
	cfg.TicketTTLHours = envInt("TICKET_TTL_HOURS", 24)
	cfg.RateLimitMax = envInt("RATE_LIMIT_MAX", 100)
	cfg.RequireRoomTicket, _ = strconv.ParseBool(os.Getenv("REQUIRE_ROOM_TICKET"))
	cfg.AllowedOrigins = splitList(os.Getenv("CORS_ALLOWED_ORIGINS"))

	ttl, err := envDuration("SNAPSHOT_CACHE_TTL", 24*time.Hour)
	if err != nil {
		return nil, err
	}
	cfg.SnapshotCacheTTL = ttl

	// --- 设置其他默认值和进行必要检查 ---
	if cfg.ServerPort == "" {
		cfg.ServerPort = "3001"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "wb:"
	}
	if cfg.CheckpointSchedule == "" {
		cfg.CheckpointSchedule = "@every 5m"
	}
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = defaultAllowedOrigins
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func envInt(name string, def int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v <= 0 {
		logrus.Warnf("Invalid %s '%s', using default %d", name, raw, def)
		return def
	}
	return v
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(name)
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("environment variable %s: %w", name, err)
	}
	return d, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
