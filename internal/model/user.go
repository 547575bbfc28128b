package model

import (
	"errors"
	"strings"
)

// ErrNoIdentity is returned when an operation needs a user and none was given.
var ErrNoIdentity = errors.New("no signed-in user")

// User is the signed-in account as reported by the identity provider.
// Email doubles as the partition key for all task storage.
type User struct {
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// ID returns the normalized identifier used to scope storage.
func (u User) ID() string {
	return strings.TrimSpace(u.Email)
}
