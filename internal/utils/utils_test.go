package utils

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestFilterRequestHeaders(t *testing.T) {
	src := http.Header{}
	src.Set("Host", "proxy.example.com")
	src.Set("Cookie", "client=1")
	src.Set("X-Forwarded-For", "1.2.3.4")
	src.Set("X-Forwarded-Host", "proxy.example.com")
	src.Set("Cf-Ray", "abc")
	src.Set("Cf-Connecting-Ip", "1.2.3.4")
	src.Set("X-Custom", "keep")
	src.Set("Connection", "Upgrade")
	src.Set("Upgrade", "websocket")
	src.Set("Keep-Alive", "timeout=5")

	got := FilterRequestHeaders(src, false)
	for _, h := range []string{"Host", "X-Forwarded-For", "X-Forwarded-Host", "Cf-Ray", "Cf-Connecting-Ip", "Connection", "Upgrade", "Keep-Alive"} {
		if _, ok := got[h]; ok {
			t.Errorf("expected %s removed", h)
		}
	}
	if got.Get("X-Custom") != "keep" || got.Get("Cookie") != "client=1" {
		t.Errorf("unexpected headers %v", got)
	}

	got = FilterRequestHeaders(src, true)
	if got.Get("Upgrade") != "websocket" || got.Get("Connection") != "Upgrade" {
		t.Errorf("expected upgrade headers kept, got %v", got)
	}

	got.Set("X-Custom", "changed")
	if src.Get("X-Custom") != "keep" {
		t.Error("filtered headers must not alias the source")
	}
}

func TestOrigin(t *testing.T) {
	tests := map[string]string{
		"https://10.0.0.5:9999/app":         "https://10.0.0.5:9999",
		"HTTPS://nas.example.com/a?b=c":     "https://nas.example.com",
		"http://relay.local:8080/x/y/z#top": "http://relay.local:8080",
		"https://relay.example:443/app":     "https://relay.example",
		"http://relay.example:80/":          "http://relay.example",
		"http://relay.example:443/":         "http://relay.example:443",
		"HTTPS://Relay.Example/app":         "https://relay.example",
		"https://[FE80::1]:443/app":         "https://[fe80::1]",
		"https://[::1]:8443/app":            "https://[::1]:8443",
	}
	for in, want := range tests {
		got, err := Origin(in)
		if err != nil {
			t.Errorf("Origin(%q): %v", in, err)
			continue
		}
		if got != want {
			t.Errorf("Origin(%q) = %q, want %q", in, got, want)
		}
	}

	for _, bad := range []string{"/relative", "", "://nohost"} {
		if _, err := Origin(bad); err == nil {
			t.Errorf("Origin(%q): expected error", bad)
		}
	}
}

func TestJoinOrigin(t *testing.T) {
	u, _ := url.Parse("/docker/containers?all=1")
	if got := JoinOrigin("https://10.0.0.5:9999", u); got != "https://10.0.0.5:9999/docker/containers?all=1" {
		t.Errorf("unexpected %q", got)
	}
	u, _ = url.Parse("/")
	if got := JoinOrigin("https://10.0.0.5:9999/", u); got != "https://10.0.0.5:9999/" {
		t.Errorf("unexpected %q", got)
	}
}

func TestWebSocketURL(t *testing.T) {
	if got := WebSocketURL("https://h/p?q"); got != "wss://h/p?q" {
		t.Errorf("unexpected %q", got)
	}
	if got := WebSocketURL("http://h/p"); got != "ws://h/p" {
		t.Errorf("unexpected %q", got)
	}
}

func TestNormalizeBaseURL(t *testing.T) {
	got, err := NormalizeBaseURL("https://nas.example.com/ ")
	if err != nil || got != "https://nas.example.com" {
		t.Errorf("unexpected %q, %v", got, err)
	}
	for _, bad := range []string{"nas.example.com", "ftp://nas", "https://"} {
		if _, err := NormalizeBaseURL(bad); err == nil {
			t.Errorf("NormalizeBaseURL(%q): expected error", bad)
		}
	}
}

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "127.0.0.1:5555"
	r.Header.Set("Cf-Connecting-Ip", "203.0.113.7")
	r.Header.Set("X-Forwarded-For", "198.51.100.1, 10.0.0.1")
	if got := ClientIP(r); got != "203.0.113.7" {
		t.Errorf("expected edge client ip, got %q", got)
	}

	r.Header.Del("Cf-Connecting-Ip")
	if got := ClientIP(r); got != "198.51.100.1" {
		t.Errorf("expected first forwarded ip, got %q", got)
	}

	r.RemoteAddr = "203.0.113.50:1234"
	if got := ClientIP(r); got != "203.0.113.50" {
		t.Errorf("untrusted peer must not be overridden, got %q", got)
	}
}
