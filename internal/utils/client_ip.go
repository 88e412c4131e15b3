package utils

import (
	"net"
	"net/http"
	"strings"
	"sync"
)

var (
	trustedProxies []*net.IPNet
	proxyOnce      sync.Once
)

// edge connectors (cloudflared and friends) run on loopback or a private network
var trustedProxyCIDRs = []string{"127.0.0.0/8", "::1/128", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16", "fc00::/7"}

func initTrustedProxies() {
	proxyOnce.Do(func() {
		for _, cidr := range trustedProxyCIDRs {
			_, network, err := net.ParseCIDR(cidr)
			if err == nil {
				trustedProxies = append(trustedProxies, network)
			}
		}
	})
}

func isTrustedProxy(ip string) bool {
	initTrustedProxies()
	parsed := net.ParseIP(ip)
	if parsed == nil {
		return false
	}
	for _, network := range trustedProxies {
		if network.Contains(parsed) {
			return true
		}
	}
	return false
}

// ClientIP returns the caller's address for logging. Edge headers are only
// believed when the direct peer is a trusted proxy.
func ClientIP(r *http.Request) string {
	directIP, _, _ := net.SplitHostPort(r.RemoteAddr)
	if directIP == "" {
		directIP = r.RemoteAddr
	}
	if !isTrustedProxy(directIP) {
		return directIP
	}

	if ip := strings.TrimSpace(r.Header.Get("Cf-Connecting-Ip")); net.ParseIP(ip) != nil {
		return ip
	}
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		ip := strings.TrimSpace(strings.Split(xff, ",")[0])
		if net.ParseIP(ip) != nil {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-Ip")); net.ParseIP(ip) != nil {
		return ip
	}
	return directIP
}
