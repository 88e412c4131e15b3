package auth

import (
	"errors"
	"fmt"
	"net/url"
)

// Stage names the leg of the handshake that failed.
type Stage string

const (
	StageChallenge     Stage = "challenge"
	StageEncryption    Stage = "encryption"
	StageLogin         Stage = "login"
	StageTokenExchange Stage = "token_exchange"
	StageNoCookie      Stage = "redirect_cookie"
)

var (
	ErrChallenge     = errors.New("challenge failed")
	ErrEncryption    = errors.New("encryption failed")
	ErrLogin         = errors.New("login failed")
	ErrTokenExchange = errors.New("token exchange failed")
	ErrNoCookie      = errors.New("no session cookie")
)

var stageErrors = map[Stage]error{
	StageChallenge:     ErrChallenge,
	StageEncryption:    ErrEncryption,
	StageLogin:         ErrLogin,
	StageTokenExchange: ErrTokenExchange,
	StageNoCookie:      ErrNoCookie,
}

// Error is a handshake failure. Message is safe to show to clients; it never
// contains tokens, keys or the password.
type Error struct {
	Stage   Stage
	Message string
	Err     error
}

func newError(stage Stage, message string, err error) *Error {
	return &Error{Stage: stage, Message: message, Err: stripURL(err)}
}

// stripURL drops the request URL from transport errors. Relay redirect URLs
// carry one-time tokens in their query.
func stripURL(err error) error {
	var uerr *url.Error
	if errors.As(err, &uerr) {
		return fmt.Errorf("%s: %w", uerr.Op, uerr.Err)
	}
	return err
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Stage, e.Message)
}

func (e *Error) Unwrap() []error {
	errs := []error{stageErrors[e.Stage]}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

func (e *Error) PublicMessage() string {
	return e.Message
}
