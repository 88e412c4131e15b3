package auth

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"uglink/internal/config"
	"uglink/internal/constants"
	"uglink/internal/crypto"
	"uglink/internal/logger"
	"uglink/internal/session"
	"uglink/internal/types"
	"uglink/internal/utils"
)

// Authenticator logs into the remote device API and caches the resulting
// proxy credential.
type Authenticator struct {
	identity config.Identity
	upstream config.Upstream
	store    session.Store
	client   *http.Client
	events   *logger.Logger
	flight   singleflight.Group
}

// NewAPIClient returns the client used for handshake calls. timeout bounds
// every call including reading the body.
func NewAPIClient(timeout time.Duration, insecureSkipVerify bool) *http.Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   constants.DialTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout: constants.TLSHandshakeTimeout,
		IdleConnTimeout:     90 * time.Second,
	}
	if insecureSkipVerify {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &http.Client{
		Transport: transport,
		Timeout:   timeout,
	}
}

func NewAuthenticator(cfg *config.Config, store session.Store, client *http.Client, events *logger.Logger) *Authenticator {
	if client == nil {
		client = NewAPIClient(cfg.HandshakeTimeout, cfg.InsecureSkipVerify)
	}
	return &Authenticator{
		identity: cfg.Identity,
		upstream: cfg.Upstream,
		store:    store,
		client:   client,
		events:   events,
	}
}

// Credential returns the cached credential, running the handshake on a miss.
// Concurrent misses in this process share one handshake.
func (a *Authenticator) Credential(ctx context.Context) (session.ProxyCredential, error) {
	if cred, ok := session.LoadCredential(a.store); ok {
		return cred, nil
	}

	v, err, _ := a.flight.Do(constants.CookieCacheKey, func() (interface{}, error) {
		if cred, ok := session.LoadCredential(a.store); ok {
			return cred, nil
		}
		// callers sharing this flight must not be failed by the first one leaving
		return a.Login(context.WithoutCancel(ctx))
	})
	if err != nil {
		return session.ProxyCredential{}, err
	}
	return v.(session.ProxyCredential), nil
}

// Login runs the full handshake and caches the credential on success. Nothing
// is cached on failure.
func (a *Authenticator) Login(ctx context.Context) (session.ProxyCredential, error) {
	traceID := uuid.New().String()
	start := time.Now()

	log.Printf("🔐 Handshake %s: logging in as %s", traceID, a.identity.Username)
	a.events.LogHandshakeStart(traceID)

	cred, err := a.handshake(ctx)
	if err != nil {
		var herr *Error
		if errors.As(err, &herr) {
			log.Printf("❌ Handshake %s failed at %s: %s (%v)", traceID, herr.Stage, herr.Message, herr.Err)
			a.events.LogHandshakeFailure(traceID, string(herr.Stage), herr.Message, time.Since(start))
		}
		return session.ProxyCredential{}, err
	}

	if err := session.SaveCredential(a.store, cred); err != nil {
		log.Printf("⚠️  Handshake %s: failed to cache credential: %v", traceID, err)
	}

	log.Printf("✅ Handshake %s: authenticated, proxying to %s (%v)", traceID, cred.Origin, time.Since(start).Round(time.Millisecond))
	a.events.LogHandshakeSuccess(traceID, cred.Origin, time.Since(start))
	return cred, nil
}

func (a *Authenticator) handshake(ctx context.Context) (session.ProxyCredential, error) {
	challengeKey, err := a.requestChallenge(ctx)
	if err != nil {
		return session.ProxyCredential{}, err
	}

	encryptedPassword, err := crypto.EncryptPKCS1v15(challengeKey, a.identity.Password)
	if err != nil {
		return session.ProxyCredential{}, newError(StageEncryption, constants.MsgEncryptPassword, err)
	}

	loginData, err := a.login(ctx, encryptedPassword)
	if err != nil {
		return session.ProxyCredential{}, err
	}

	// the login response carries its own key, distinct from the challenge key
	loginKey, err := crypto.DecodeBase64PEM(loginData.PublicKey)
	if err != nil {
		return session.ProxyCredential{}, newError(StageEncryption, constants.MsgEncryptToken, err)
	}
	encryptedToken, err := crypto.EncryptPKCS1v15(loginKey, loginData.Token)
	if err != nil {
		return session.ProxyCredential{}, newError(StageEncryption, constants.MsgEncryptToken, err)
	}

	redirectURL, err := a.exchangeToken(ctx, encryptedToken, loginData.TokenID)
	if err != nil {
		return session.ProxyCredential{}, err
	}

	return a.captureCookie(ctx, redirectURL)
}

func (a *Authenticator) requestChallenge(ctx context.Context) (string, error) {
	body, err := json.Marshal(types.CheckRequest{Username: a.identity.Username})
	if err != nil {
		return "", newError(StageChallenge, constants.MsgChallengeFailed, err)
	}

	resp, err := a.postJSON(ctx, a.upstream.BaseURL+constants.PathVerifyCheck+"?token=", body)
	if err != nil {
		return "", newError(StageChallenge, constants.MsgChallengeFailed, err)
	}
	drainAndClose(resp)

	if !isSuccess(resp.StatusCode) {
		return "", newError(StageChallenge, constants.MsgChallengeFailed, fmt.Errorf("status %d", resp.StatusCode))
	}

	rsaToken := resp.Header.Get(constants.HeaderRSAToken)
	if rsaToken == "" {
		return "", newError(StageChallenge, constants.MsgNoRSAToken, nil)
	}

	key, err := crypto.DecodeBase64PEM(rsaToken)
	if err != nil {
		return "", newError(StageEncryption, constants.MsgEncryptPassword, err)
	}
	return key, nil
}

func (a *Authenticator) login(ctx context.Context, encryptedPassword string) (types.LoginData, error) {
	body, err := json.Marshal(types.LoginRequest{
		Username:  a.identity.Username,
		Password:  encryptedPassword,
		KeepAlive: true,
		OTP:       true,
		IsSimple:  true,
	})
	if err != nil {
		return types.LoginData{}, newError(StageLogin, constants.MsgLoginFailed, err)
	}

	resp, err := a.postJSON(ctx, a.upstream.BaseURL+constants.PathVerifyLogin, body)
	if err != nil {
		return types.LoginData{}, newError(StageLogin, constants.MsgLoginFailed, err)
	}
	defer drainAndClose(resp)

	if !isSuccess(resp.StatusCode) {
		return types.LoginData{}, newError(StageLogin, constants.MsgLoginFailed, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out types.LoginResponse
	if err := decodeJSON(resp, &out); err != nil {
		return types.LoginData{}, newError(StageLogin, constants.MsgLoginFailed, err)
	}
	if out.Code != constants.APICodeOK {
		return types.LoginData{}, newError(StageLogin, constants.MsgLoginAPIError+out.Msg, fmt.Errorf("code %d", out.Code))
	}
	return out.Data, nil
}

func (a *Authenticator) exchangeToken(ctx context.Context, encryptedToken, tokenID string) (string, error) {
	endpoint := a.upstream.BaseURL + constants.PathDockerToken + "?port=" + strconv.Itoa(a.upstream.Port)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", newError(StageTokenExchange, constants.MsgTokenFetchFailed, err)
	}
	req.Header.Set(constants.HeaderUgreenToken, encryptedToken)
	req.Header.Set(constants.HeaderSecurityKey, tokenID)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", newError(StageTokenExchange, constants.MsgTokenFetchFailed, err)
	}
	defer drainAndClose(resp)

	if !isSuccess(resp.StatusCode) {
		return "", newError(StageTokenExchange, constants.MsgTokenFetchFailed, fmt.Errorf("status %d", resp.StatusCode))
	}

	var out types.DockerTokenResponse
	if err := decodeJSON(resp, &out); err != nil {
		return "", newError(StageTokenExchange, constants.MsgTokenFetchFailed, err)
	}
	if out.Code != constants.APICodeOK {
		return "", newError(StageTokenExchange, constants.MsgTokenAPIError+out.Msg, fmt.Errorf("code %d", out.Code))
	}
	if out.Data.RedirectURL == "" {
		return "", newError(StageTokenExchange, constants.MsgTokenFetchFailed, errors.New("empty redirect_url"))
	}
	return out.Data.RedirectURL, nil
}

// captureCookie requests redirectURL without following the redirect it answers
// with and keeps the Set-Cookie value verbatim.
func (a *Authenticator) captureCookie(ctx context.Context, redirectURL string) (session.ProxyCredential, error) {
	origin, err := utils.Origin(redirectURL)
	if err != nil {
		return session.ProxyCredential{}, newError(StageTokenExchange, constants.MsgTokenFetchFailed, fmt.Errorf("invalid redirect_url: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, redirectURL, nil)
	if err != nil {
		return session.ProxyCredential{}, newError(StageNoCookie, constants.MsgRedirectFailed, err)
	}

	noRedirect := *a.client
	noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	resp, err := noRedirect.Do(req)
	if err != nil {
		return session.ProxyCredential{}, newError(StageNoCookie, constants.MsgRedirectFailed, err)
	}
	drainAndClose(resp)

	cookies := resp.Header.Values("Set-Cookie")
	if len(cookies) == 0 {
		return session.ProxyCredential{}, newError(StageNoCookie, constants.MsgNoSetCookie, fmt.Errorf("status %d", resp.StatusCode))
	}

	return session.ProxyCredential{
		Cookie: strings.Join(cookies, ", "),
		Origin: origin,
	}, nil
}

func (a *Authenticator) postJSON(ctx context.Context, endpoint string, body []byte) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return a.client.Do(req)
}

func decodeJSON(resp *http.Response, v interface{}) error {
	if err := json.NewDecoder(io.LimitReader(resp.Body, constants.MaxAPIResponseSize)).Decode(v); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func drainAndClose(resp *http.Response) {
	io.Copy(io.Discard, io.LimitReader(resp.Body, constants.MaxAPIResponseSize))
	resp.Body.Close()
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}
