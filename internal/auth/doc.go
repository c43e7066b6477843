// Inkwell - Real-time Collaborative Document Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/inkwell

/*
Package auth verifies the bearer tokens presented by WebSocket clients and
HTTP callers.

Tokens are HS256 JWTs signed with security.jwt_secret and carry a username
and role. Inkwell does not issue tokens over HTTP; the companion web
application (or cmd/tokengen in development) signs them with the same secret.

# WebSocket Handshake

The first text frame on a socket is passed to Verifier.Verify together with
the parsed document identifier:

	id, err := verifier.Verify(ctx, frame, doc)
	if err != nil {
	    reason := auth.DenyReasonFor(err) // invalid-token, forbidden or error
	    ...
	}

The default Authorizer, OwnerOnly, admits only the user named by the owner
segment of the document identifier. Sharing with collaborators is added by
supplying another Authorizer.

Verified claims are kept in a bounded LRU (internal/cache) keyed by the
token's SHA-256 digest until the token expires or five minutes pass.

# HTTP

RequireAuth guards JSON endpoints and stores *Claims in the request context;
handlers read them with ClaimsFromContext.
*/
package auth
