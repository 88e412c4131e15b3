package types

// LoginResponse is the verify/login envelope.
type LoginResponse struct {
	Code int       `json:"code"`
	Msg  string    `json:"msg"`
	Data LoginData `json:"data"`
}

type LoginData struct {
	PublicKey string `json:"public_key"`
	Token     string `json:"token"`
	TokenID   string `json:"token_id"`
}

// DockerTokenResponse is the gateway/proxy/dockerToken envelope.
type DockerTokenResponse struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data DockerTokenData `json:"data"`
}

type DockerTokenData struct {
	RedirectURL string `json:"redirect_url"`
}
