// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tomtom215/inkwell/internal/cache"
	"github.com/tomtom215/inkwell/internal/docid"
	"github.com/tomtom215/inkwell/internal/protocol"
)

var (
	// ErrInvalidToken is returned for malformed, unverifiable or expired tokens.
	ErrInvalidToken = errors.New("invalid token")

	// ErrForbidden is returned when a valid identity may not open a document.
	ErrForbidden = errors.New("forbidden")
)

// Identity is the verified user behind a connection.
type Identity struct {
	Username string
	Role     string
}

// Authorizer decides whether an identity may open a document.
type Authorizer interface {
	Authorize(ctx context.Context, id Identity, doc docid.ID) error
}

// OwnerOnly allows a document only to the user named by its owner segment.
type OwnerOnly struct{}

// Authorize implements Authorizer.
func (OwnerOnly) Authorize(_ context.Context, id Identity, doc docid.ID) error {
	if id.Username != doc.Owner {
		return fmt.Errorf("%w: %q is not the owner of %q", ErrForbidden, id.Username, doc.ProjectKey())
	}
	return nil
}

const (
	claimsCacheSize = 4096
	claimsCacheTTL  = 5 * time.Minute
)

// Verifier performs the handshake check for the first text frame of a
// connection. Validated claims are cached by token digest until the token
// expires, so a client reconnecting every chapter does not re-verify.
// Authorization always runs.
type Verifier struct {
	jwt        *JWTManager
	authorizer Authorizer
	claims     *cache.LRU[*Claims]
}

// NewVerifier returns a Verifier using authz, or OwnerOnly when authz is nil.
func NewVerifier(m *JWTManager, authz Authorizer) *Verifier {
	if authz == nil {
		authz = OwnerOnly{}
	}
	return &Verifier{
		jwt:        m,
		authorizer: authz,
		claims:     cache.NewLRU[*Claims](claimsCacheSize, claimsCacheTTL),
	}
}

// Verify validates token and checks access to doc. Errors wrap
// ErrInvalidToken or ErrForbidden; anything else is an internal failure.
func (v *Verifier) Verify(ctx context.Context, token string, doc docid.ID) (Identity, error) {
	token = strings.TrimSpace(token)
	token = strings.TrimPrefix(token, "Bearer ")
	if token == "" {
		return Identity{}, fmt.Errorf("%w: empty credential", ErrInvalidToken)
	}

	claims, err := v.validate(token)
	if err != nil {
		return Identity{}, err
	}
	if err := ctx.Err(); err != nil {
		return Identity{}, err
	}

	id := Identity{Username: claims.Username, Role: claims.Role}
	if err := v.authorizer.Authorize(ctx, id, doc); err != nil {
		return id, err
	}
	return id, nil
}

func (v *Verifier) validate(token string) (*Claims, error) {
	sum := sha256.Sum256([]byte(token))
	key := hex.EncodeToString(sum[:])
	if claims, ok := v.claims.Get(key); ok {
		return claims, nil
	}

	claims, err := v.jwt.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	var exp time.Time
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	v.claims.Add(key, claims, exp)
	return claims, nil
}

// DenyReasonFor maps a Verify error to the reason sent to the client.
func DenyReasonFor(err error) protocol.DenyReason {
	switch {
	case errors.Is(err, ErrInvalidToken):
		return protocol.ReasonInvalidToken
	case errors.Is(err, ErrForbidden):
		return protocol.ReasonForbidden
	default:
		return protocol.ReasonError
	}
}
