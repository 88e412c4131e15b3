package types

// CheckRequest asks the auth API for a password encryption key.
type CheckRequest struct {
	Username string `json:"username"`
}

// LoginRequest carries the RSA-encrypted password.
type LoginRequest struct {
	Username  string `json:"username"`
	Password  string `json:"password"`
	KeepAlive bool   `json:"keepalive"`
	OTP       bool   `json:"otp"`
	IsSimple  bool   `json:"is_simple"`
}
