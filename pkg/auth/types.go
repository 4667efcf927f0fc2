package auth

import (
	"errors"

	"github.com/platinummonkey/identity/pkg/agents"
)

var (
	// ErrInvalidToken is returned for a token that fails verification
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingEmail is returned when neither the token nor userinfo name an e-mail
	ErrMissingEmail = errors.New("token does not identify an email")
)

// Claims are the identity claims read from a verified token
type Claims struct {
	Subject string
	Email   string
	Name    string
}

// AuthContext holds the authenticated agent of a request
type AuthContext struct {
	Agent     *agents.Agent
	Subject   string
	SessionID string
	IsSuper   bool
}

// CanManage reports whether the caller may administer something created by creatorID
func (ac *AuthContext) CanManage(creatorID int64) bool {
	if ac == nil || ac.Agent == nil {
		return false
	}
	return ac.IsSuper || ac.Agent.ID == creatorID
}
