package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"uglink/internal/config"
	"uglink/internal/types"
)

const (
	testBaseHost  = "nas.example.com"
	testRelayHost = "10.0.0.5:9999"
	testUsername  = "admin"
	testPassword  = "hunter2"
	testToken     = "login-token-123"
	testTokenID   = "token-id-456"
	testPort      = 9999
)

// hostTransport serves requests in-process by dispatching on URL host.
type hostTransport map[string]http.Handler

func (h hostTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if r.Body != nil {
		defer r.Body.Close()
	}
	handler, ok := h[r.URL.Host]
	if !ok {
		return nil, fmt.Errorf("dial tcp %s: connection refused", r.URL.Host)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)
	resp := rec.Result()
	resp.Request = r
	return resp, nil
}

// fakeAPI mimics the device API and the relay that hands out the cookie.
type fakeAPI struct {
	t *testing.T

	challengeKey *rsa.PrivateKey
	loginKey     *rsa.PrivateKey

	checkCalls    atomic.Int32
	loginCalls    atomic.Int32
	tokenCalls    atomic.Int32
	redirectCalls atomic.Int32

	checkStatus   int
	omitRSAToken  bool
	rsaTokenValue string
	loginStatus   int
	loginCode     int
	loginMsg      string
	tokenCode     int
	tokenMsg      string
	redirectURL   string
	setCookies    []string

	// checkGate, when set, blocks the check endpoint until closed
	checkGate chan struct{}

	mu            sync.Mutex
	sequence      []string
	loginBody     map[string]interface{}
	checkBody     map[string]interface{}
	gotPassword   string
	gotToken      string
	gotSecurityID string
	gotPortQuery  string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	return &fakeAPI{
		t:            t,
		challengeKey: mustKey(t),
		loginKey:     mustKey(t),
		checkStatus:  http.StatusOK,
		loginStatus:  http.StatusOK,
		loginCode:    200,
		tokenCode:    200,
		redirectURL:  "https://" + testRelayHost + "/app",
		setCookies:   []string{"SID=abc"},
	}
}

func mustKey(t *testing.T) *rsa.PrivateKey {
	t.Helper()
	k, err := rsa.GenerateKey(rand.Reader, 1024)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return k
}

func encodedPublicKey(t *testing.T, k *rsa.PrivateKey) string {
	t.Helper()
	der, err := x509.MarshalPKIXPublicKey(&k.PublicKey)
	if err != nil {
		t.Fatal(err)
	}
	p := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der})
	return base64.StdEncoding.EncodeToString(p)
}

func decryptWith(k *rsa.PrivateKey, ciphertext string) string {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ""
	}
	plain, err := rsa.DecryptPKCS1v15(rand.Reader, k, raw)
	if err != nil {
		return ""
	}
	return string(plain)
}

func (f *fakeAPI) record(step string) {
	f.mu.Lock()
	f.sequence = append(f.sequence, step)
	f.mu.Unlock()
}

func (f *fakeAPI) steps() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sequence...)
}

func (f *fakeAPI) transport() hostTransport {
	api := http.NewServeMux()
	api.HandleFunc("/ugreen/v1/verify/check", f.handleCheck)
	api.HandleFunc("/ugreen/v1/verify/login", f.handleLogin)
	api.HandleFunc("/ugreen/v1/gateway/proxy/dockerToken", f.handleDockerToken)

	relay := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.redirectCalls.Add(1)
		f.record("redirect")
		for _, c := range f.setCookies {
			w.Header().Add("Set-Cookie", c)
		}
		w.Header().Set("Location", "/app/index.html")
		w.WriteHeader(http.StatusFound)
	})

	return hostTransport{
		testBaseHost:  api,
		testRelayHost: relay,
	}
}

func (f *fakeAPI) client() *http.Client {
	return &http.Client{Transport: f.transport(), Timeout: 5 * time.Second}
}

func (f *fakeAPI) handleCheck(w http.ResponseWriter, r *http.Request) {
	f.checkCalls.Add(1)
	f.record("check")
	if f.checkGate != nil {
		<-f.checkGate
	}
	if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)
	f.mu.Lock()
	f.checkBody = body
	f.mu.Unlock()

	if f.checkStatus != http.StatusOK {
		w.WriteHeader(f.checkStatus)
		return
	}
	if !f.omitRSAToken {
		token := f.rsaTokenValue
		if token == "" {
			token = encodedPublicKey(f.t, f.challengeKey)
		}
		w.Header().Set("x-rsa-token", token)
	}
	w.WriteHeader(http.StatusOK)
}

func (f *fakeAPI) handleLogin(w http.ResponseWriter, r *http.Request) {
	f.loginCalls.Add(1)
	f.record("login")
	var body map[string]interface{}
	json.NewDecoder(r.Body).Decode(&body)
	encrypted, _ := body["password"].(string)

	f.mu.Lock()
	f.loginBody = body
	f.gotPassword = decryptWith(f.challengeKey, encrypted)
	f.mu.Unlock()

	if f.loginStatus != http.StatusOK {
		w.WriteHeader(f.loginStatus)
		return
	}
	resp := types.LoginResponse{Code: f.loginCode, Msg: f.loginMsg}
	if f.loginCode == 200 {
		resp.Data = types.LoginData{
			PublicKey: encodedPublicKey(f.t, f.loginKey),
			Token:     testToken,
			TokenID:   testTokenID,
		}
	}
	json.NewEncoder(w).Encode(resp)
}

func (f *fakeAPI) handleDockerToken(w http.ResponseWriter, r *http.Request) {
	f.tokenCalls.Add(1)
	f.record("token")
	f.mu.Lock()
	f.gotToken = decryptWith(f.loginKey, r.Header.Get("X-Ugreen-Token"))
	f.gotSecurityID = r.Header.Get("X-Ugreen-Security-Key")
	f.gotPortQuery = r.URL.Query().Get("port")
	f.mu.Unlock()

	resp := types.DockerTokenResponse{Code: f.tokenCode, Msg: f.tokenMsg}
	if f.tokenCode == 200 {
		resp.Data.RedirectURL = f.redirectURL
	}
	json.NewEncoder(w).Encode(resp)
}

func testConfig() *config.Config {
	return &config.Config{
		Identity: config.Identity{Username: testUsername, Password: testPassword},
		Upstream: config.Upstream{BaseURL: "https://" + testBaseHost, Port: testPort},
	}
}

// recordingStore is an in-memory session.Store that remembers TTLs.
type recordingStore struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	puts   int
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
	}
}

func (s *recordingStore) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *recordingStore) Put(key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	s.ttls[key] = ttl
	s.puts++
	return nil
}

func (s *recordingStore) Close() error { return nil }
