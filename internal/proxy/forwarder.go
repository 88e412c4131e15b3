// Package proxy forwards inbound requests to the relay origin with the cached
// session cookie attached.
package proxy

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"log"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gorilla/websocket"

	"uglink/internal/constants"
	"uglink/internal/logger"
	"uglink/internal/session"
	"uglink/internal/utils"
)

// Config holds forwarder options
type Config struct {
	// Transport overrides the upstream round tripper. Used in tests.
	Transport http.RoundTripper

	// InsecureSkipVerify disables TLS verification towards the relay
	InsecureSkipVerify bool

	// Events receives proxy_error entries; nil disables them
	Events *logger.Logger
}

type Forwarder struct {
	client *http.Client
	dialer *websocket.Dialer
	events *logger.Logger
}

// NewTransport builds the upstream transport. There is no overall timeout so
// long downloads keep streaming, only dial/TLS/header limits.
func NewTransport(insecureSkipVerify bool) *http.Transport {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   constants.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		TLSHandshakeTimeout:   constants.TLSHandshakeTimeout,
		ResponseHeaderTimeout: constants.ResponseHeaderTimeout,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConnsPerHost:   32,
		// bodies and Content-Encoding pass through untouched
		DisableCompression: true,
	}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return transport
}

func New(cfg Config) *Forwarder {
	transport := cfg.Transport
	if transport == nil {
		transport = NewTransport(cfg.InsecureSkipVerify)
	}

	dialer := &websocket.Dialer{
		Proxy:            http.ProxyFromEnvironment,
		HandshakeTimeout: constants.DialTimeout,
		ReadBufferSize:   constants.WSBufferSize,
		WriteBufferSize:  constants.WSBufferSize,
	}
	if cfg.InsecureSkipVerify {
		dialer.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &Forwarder{
		client: &http.Client{
			Transport: transport,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		dialer: dialer,
		events: cfg.Events,
	}
}

// Forward sends r to cred.Origin and streams the response back unchanged.
func (f *Forwarder) Forward(w http.ResponseWriter, r *http.Request, cred session.ProxyCredential) {
	if websocket.IsWebSocketUpgrade(r) {
		f.forwardWebSocket(w, r, cred)
		return
	}

	out, err := NewUpstreamRequest(r, cred)
	if err != nil {
		f.fail(w, r, err)
		return
	}

	resp, err := f.client.Do(out)
	if err != nil {
		f.fail(w, r, err)
		return
	}
	defer resp.Body.Close()

	for _, h := range utils.HopByHopHeadersNames {
		resp.Header.Del(h)
	}
	utils.CopyResponseHeaders(w.Header(), resp.Header)
	w.WriteHeader(resp.StatusCode)

	if r.Method == http.MethodHead {
		return
	}

	copyBuf := GetBuffer()
	defer PutBuffer(copyBuf)
	if flusher, ok := w.(http.Flusher); ok {
		for {
			n, readErr := resp.Body.Read(copyBuf)
			if n > 0 {
				if _, writeErr := w.Write(copyBuf[:n]); writeErr != nil {
					break
				}
				flusher.Flush()
			}
			if readErr != nil {
				if readErr != io.EOF {
					log.Printf("Proxy: upstream body read error: %v", readErr)
				}
				break
			}
		}
	} else {
		io.CopyBuffer(w, resp.Body, copyBuf)
	}
}

// NewUpstreamRequest rewrites r for the relay origin: same method, path and
// query; filtered headers; the proxy's own cookie; body only when the method
// allows one.
func NewUpstreamRequest(r *http.Request, cred session.ProxyCredential) (*http.Request, error) {
	origin, err := url.Parse(cred.Origin)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r.Method != http.MethodGet && r.Method != http.MethodHead && r.Body != nil && r.ContentLength != 0 {
		body = r.Body
	}

	out, err := http.NewRequestWithContext(r.Context(), r.Method, utils.JoinOrigin(cred.Origin, r.URL), body)
	if err != nil {
		return nil, err
	}
	if body != nil {
		out.ContentLength = r.ContentLength
	}

	out.Header = utils.FilterRequestHeaders(r.Header, false)
	out.Host = origin.Host
	out.Header.Set("Cookie", cred.Cookie)
	return out, nil
}

func (f *Forwarder) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, context.Canceled) && r.Context().Err() != nil {
		log.Printf("Proxy: client went away: %s %s", r.Method, r.URL.Path)
		return
	}
	clientIP := utils.ClientIP(r)
	log.Printf("❌ Proxy: upstream request failed: %s %s from %s: %v", r.Method, r.URL.Path, clientIP, err)
	f.events.LogProxyError(r.Method, r.URL.Path, clientIP, err)
	http.Error(w, constants.MsgUpstreamUnavailable, http.StatusBadGateway)
}
