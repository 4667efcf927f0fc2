package agents

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
)

var (
	// ErrAgentNotFound is returned when no agent matches
	ErrAgentNotFound = errors.New("agent not found")
	// ErrInvalidEmail is returned for a missing or malformed e-mail address
	ErrInvalidEmail = errors.New("a valid email is required")
	// ErrInvalidProfile is returned when the social profile is not a JSON object
	ErrInvalidProfile = errors.New("social profile must be a JSON object")
)

// Agent is a user account
type Agent struct {
	ID            int64           `json:"id"`
	Name          string          `json:"name"`
	Email         string          `json:"email"`
	SocialProfile json.RawMessage `json:"social_profile"`
	IsSuper       bool            `json:"is_super"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// NormalizeEmail trims and lower-cases an e-mail address. Every e-mail is
// normalized before it is stored or compared.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail normalizes email and checks its syntax
func ValidateEmail(email string) (string, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" || !govalidator.IsEmail(normalized) {
		return "", ErrInvalidEmail
	}
	return normalized, nil
}

// IsSuper reports whether email belongs to the configured root agent.
// An empty root e-mail never matches.
func IsSuper(email, rootEmail string) bool {
	root := NormalizeEmail(rootEmail)
	if root == "" {
		return false
	}
	return NormalizeEmail(email) == root
}

// WithRoot sets the IsSuper flag of a against rootEmail and returns a
func (a *Agent) WithRoot(rootEmail string) *Agent {
	a.IsSuper = IsSuper(a.Email, rootEmail)
	return a
}

func normalizeProfile(profile json.RawMessage) (string, error) {
	if len(profile) == 0 || string(profile) == "null" {
		return "{}", nil
	}
	var obj map[string]interface{}
	if err := json.Unmarshal(profile, &obj); err != nil {
		return "", ErrInvalidProfile
	}
	return string(profile), nil
}
