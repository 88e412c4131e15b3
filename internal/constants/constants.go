package constants

import "time"

const (
	AppName = "uglink"
	Version = "1.0.0"
)

// Network defaults
const (
	DefaultListenAddr       = ":8080"
	DefaultRedisPort        = "6379"
	CopyBufferSize          = 262144 // 256KB for io.Copy operations
	WSBufferSize            = 131072
	DialTimeout             = 10 * time.Second
	TLSHandshakeTimeout     = 10 * time.Second
	ResponseHeaderTimeout   = 60 * time.Second
	DefaultHandshakeTimeout = 15 * time.Second
	CleanupInterval         = 30 * time.Second
	ShutdownTimeout         = 5 * time.Second
	MaxAPIResponseSize      = 1 << 20
)

// Credential cache
const (
	CookieCacheKey     = "proxy_cookie"
	OriginCacheKey     = "proxy_origin"
	CredentialTTL      = 3600 * time.Second
	DefaultCachePrefix = AppName + ":"
)

// Remote auth API
const (
	PathVerifyCheck = "/ugreen/v1/verify/check"
	PathVerifyLogin = "/ugreen/v1/verify/login"
	PathDockerToken = "/ugreen/v1/gateway/proxy/dockerToken"

	HeaderRSAToken    = "X-Rsa-Token"
	HeaderUgreenToken = "X-Ugreen-Token"
	HeaderSecurityKey = "X-Ugreen-Security-Key"

	APICodeOK = 200
)

// Header prefixes injected by the edge network in front of the proxy
var StrippedHeaderPrefixes = []string{
	"cf-",
	"x-forwarded-",
}

// API endpoints
const (
	EndpointHealth = "/_uglink/healthz"
)

// Messages
const (
	MsgChallengeFailed     = "Failed to get encryption key"
	MsgNoRSAToken          = "No x-rsa-token in check response"
	MsgEncryptPassword     = "Failed to encrypt password"
	MsgLoginFailed         = "Failed to login"
	MsgLoginAPIError       = "Login API error: "
	MsgEncryptToken        = "Failed to encrypt token"
	MsgTokenFetchFailed    = "Failed to fetch docker token"
	MsgTokenAPIError       = "API returned error: "
	MsgRedirectFailed      = "Failed to fetch redirect URL"
	MsgNoSetCookie         = "No set-cookie in redirect response"
	MsgUpstreamUnavailable = "Upstream unavailable"
	MsgInternalError       = "Internal Server Error"
)
