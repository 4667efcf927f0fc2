// Package clientapps registers OAuth client applications owned by agents.
//
// The client secret is generated on registration, returned exactly once and
// only its SHA-256 hash is stored.
package clientapps

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
)

var (
	ErrAppNotFound        = errors.New("client app not found")
	ErrNameRequired       = errors.New("name required")
	ErrInvalidRedirectURI = errors.New("invalid redirect uri")
	ErrForbidden          = errors.New("not allowed to manage this client app")
	ErrInvalidCredentials = errors.New("invalid client credentials")
)

// ClientApp is a registered OAuth client
type ClientApp struct {
	ID           int64     `json:"id"`
	AgentID      int64     `json:"agent_id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	ClientID     uuid.UUID `json:"client_id"`
	SecretHash   string    `json:"-"`
	RedirectURIs []string  `json:"redirect_uris"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Actor is whoever asks to change an app
type Actor interface {
	CanManage(ownerID int64) bool
}

// SecretIssuer creates and checks client secrets
type SecretIssuer interface {
	GenerateSecret() (secret string, secretHash string, err error)
	VerifySecret(secret, secretHash string) bool
}

// validateRedirectURIs trims and checks every URI. Only absolute http(s)
// URLs without a fragment are accepted.
func validateRedirectURIs(uris []string) ([]string, error) {
	out := make([]string, 0, len(uris))
	for _, raw := range uris {
		raw = strings.TrimSpace(raw)
		if !govalidator.IsRequestURL(raw) {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRedirectURI, raw)
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" || u.Fragment != "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidRedirectURI, raw)
		}
		out = append(out, raw)
	}
	return out, nil
}
