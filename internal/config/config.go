package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"uglink/internal/constants"
	"uglink/internal/utils"
)

const (
	EnvBaseURL            = "BASE_URL"
	EnvPort               = "PORT"
	EnvUsername           = "USERNAME"
	EnvPassword           = "PASSWORD"
	EnvListenAddr         = "LISTEN_ADDR"
	EnvHandshakeTimeout   = "HANDSHAKE_TIMEOUT"
	EnvCachePrefix        = "CACHE_PREFIX"
	EnvAuditLog           = "AUDIT_LOG"
	EnvInsecureSkipVerify = "INSECURE_SKIP_VERIFY"
	EnvRedisHost          = "REDIS_HOST"
	EnvRedisPort          = "REDIS_PORT"
	EnvRedisUser          = "REDIS_USERNAME"
	EnvRedisPassword      = "REDIS_PASSWORD"
	EnvRedisDB            = "REDIS_DB"
)

// Identity is the single account the proxy logs in as.
type Identity struct {
	Username string
	Password string
}

// Upstream locates the remote auth API and the app port behind the relay.
type Upstream struct {
	BaseURL string
	Port    int
}

type Redis struct {
	Host     string
	Port     string
	Username string
	Password string
	DB       int
}

func (r Redis) Enabled() bool {
	return r.Host != ""
}

func (r Redis) Addr() string {
	return r.Host + ":" + r.Port
}

type Config struct {
	Identity           Identity
	Upstream           Upstream
	ListenAddr         string
	HandshakeTimeout   time.Duration
	CachePrefix        string
	AuditLogPath       string
	InsecureSkipVerify bool
	Redis              Redis
}

// Load reads a .env file when present and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Println("📄 Loaded .env file")
	}
	return FromEnv()
}

// FromEnv builds the configuration from the current environment only.
func FromEnv() (*Config, error) {
	var missing []string
	required := func(key string) string {
		v := utils.GetEnv(key, "")
		if v == "" {
			missing = append(missing, key)
		}
		return v
	}

	baseURL := required(EnvBaseURL)
	portRaw := required(EnvPort)
	username := required(EnvUsername)
	password := required(EnvPassword)

	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %s", strings.Join(missing, ", "))
	}

	// surrounding spaces may be part of the password
	password = os.Getenv(EnvPassword)

	baseURL, err := utils.NormalizeBaseURL(baseURL)
	if err != nil {
		return nil, err
	}

	port, err := strconv.Atoi(portRaw)
	if err != nil || port < 1 || port > 65535 {
		return nil, fmt.Errorf("invalid %s %q: must be an integer between 1 and 65535", EnvPort, portRaw)
	}

	return &Config{
		Identity: Identity{
			Username: username,
			Password: password,
		},
		Upstream: Upstream{
			BaseURL: baseURL,
			Port:    port,
		},
		ListenAddr:         utils.GetEnv(EnvListenAddr, constants.DefaultListenAddr),
		HandshakeTimeout:   utils.GetEnvDuration(EnvHandshakeTimeout, constants.DefaultHandshakeTimeout),
		CachePrefix:        utils.GetEnv(EnvCachePrefix, constants.DefaultCachePrefix),
		AuditLogPath:       utils.GetEnv(EnvAuditLog, ""),
		InsecureSkipVerify: utils.GetEnvBool(EnvInsecureSkipVerify, false),
		Redis: Redis{
			Host:     utils.GetEnv(EnvRedisHost, ""),
			Port:     utils.GetEnv(EnvRedisPort, constants.DefaultRedisPort),
			Username: utils.GetEnv(EnvRedisUser, ""),
			Password: utils.GetEnv(EnvRedisPassword, ""),
			DB:       utils.GetEnvInt(EnvRedisDB, 0),
		},
	}, nil
}
