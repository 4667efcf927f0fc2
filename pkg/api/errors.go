package api

import "errors"

var (
	// ErrForbidden is returned when the caller is neither the creator nor root
	ErrForbidden = errors.New("only the creator can change this")
	// ErrNotMember is returned when the caller has no verified membership
	ErrNotMember = errors.New("not a member")
)
