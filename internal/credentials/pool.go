// Package credentials holds the fixed set of user identities actors log in with.
package credentials

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyPool is returned when a pool is built without identities.
	ErrEmptyPool = errors.New("credential pool is empty")
	// ErrMissingEmail is returned for an identity without an email.
	ErrMissingEmail = errors.New("identity has no email")
)

// Identity is one booking API user. Immutable once loaded.
type Identity struct {
	Email  string `yaml:"email" json:"email"`
	Secret string `yaml:"password" json:"password"`
}

// IsZero reports whether the identity is unset.
func (id Identity) IsZero() bool {
	return id.Email == "" && id.Secret == ""
}

// BasicAuth returns the Authorization header value for the identity.
func (id Identity) BasicAuth() string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(id.Email+":"+id.Secret))
}

func (id Identity) String() string {
	return id.Email
}

// Pool assigns identities to actors round-robin by actor index.
//
// Indices that differ by exactly Size() map to the same identity. Once more
// actors run than there are identities, two actors may share one account;
// callers that need distinct users for k actors check Distinct(k).
type Pool struct {
	identities []Identity
}

// New builds a pool from a fixed list of identities. The slice is copied.
func New(identities []Identity) (*Pool, error) {
	if len(identities) == 0 {
		return nil, ErrEmptyPool
	}
	var errs []error
	for i, id := range identities {
		if strings.TrimSpace(id.Email) == "" {
			errs = append(errs, fmt.Errorf("identity %d: %w", i, ErrMissingEmail))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	ids := make([]Identity, len(identities))
	copy(ids, identities)
	return &Pool{identities: ids}, nil
}

// Size returns the number of identities.
func (p *Pool) Size() int {
	return len(p.identities)
}

// Assign returns the identity for an actor index. Negative indices wrap.
func (p *Pool) Assign(actorIndex int) Identity {
	n := len(p.identities)
	i := actorIndex % n
	if i < 0 {
		i += n
	}
	return p.identities[i]
}

// Distinct reports whether k consecutive actor indices receive k different
// identities. Duplicate entries in the pool count as one identity.
func (p *Pool) Distinct(k int) bool {
	if k > len(p.identities) {
		return false
	}
	for i := 0; i < len(p.identities); i++ {
		seen := make(map[string]struct{}, k)
		for j := 0; j < k; j++ {
			email := p.Assign(i + j).Email
			if _, dup := seen[email]; dup {
				return false
			}
			seen[email] = struct{}{}
		}
	}
	return true
}
