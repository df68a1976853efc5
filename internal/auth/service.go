// Package auth resolves the authenticated actor of a request. Session and
// account management live elsewhere; this package only verifies bearer
// credentials of the form "actor.secret" against configured bcrypt hashes.
package auth

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/gudang/internal/shared"
)

// Service verifies credentials.
type Service struct {
	hashes    map[string][]byte
	approvers map[string]struct{}
}

// NewService constructs a Service from actor→bcrypt-hash pairs and the list
// of actors holding the approver role.
func NewService(tokens map[string]string, approvers []string) *Service {
	s := &Service{hashes: make(map[string][]byte, len(tokens)), approvers: make(map[string]struct{}, len(approvers))}
	for actor, hash := range tokens {
		s.hashes[strings.TrimSpace(actor)] = []byte(strings.TrimSpace(hash))
	}
	for _, a := range approvers {
		s.approvers[strings.TrimSpace(a)] = struct{}{}
	}
	return s
}

// Authenticate validates a bearer token and returns the actor it names.
func (s *Service) Authenticate(token string) (shared.Actor, error) {
	name, secret, ok := strings.Cut(strings.TrimSpace(token), ".")
	if !ok || name == "" || secret == "" {
		return shared.Actor{}, fmt.Errorf("%w: malformed credential", shared.ErrUnauthorized)
	}
	hash, known := s.hashes[name]
	if !known {
		return shared.Actor{}, fmt.Errorf("%w: invalid credential", shared.ErrUnauthorized)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return shared.Actor{}, fmt.Errorf("%w: invalid credential", shared.ErrUnauthorized)
	}
	roles := []string{shared.RoleOfficer}
	if _, ok := s.approvers[name]; ok {
		roles = append(roles, shared.RoleApprover)
	}
	return shared.Actor{Name: name, Roles: roles}, nil
}
