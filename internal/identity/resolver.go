package identity

import (
	"context"
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/taskgate/taskgate/internal/platform/httpx"
)

// HeaderGatewayAuth carries the shared secret proving a request was
// forwarded by the gateway. Identity headers are only trusted when it
// matches; a caller supplying identity headers on its own fails this check
// and falls through to direct verification.
const HeaderGatewayAuth = "X-Gateway-Auth"

// ErrAuthRequired signals a request with neither trusted headers nor a
// bearer token.
var ErrAuthRequired = errors.New("authentication required")

// Verifier abstracts the direct-verification dependency of a downstream
// service. Satisfied by *Client.
type Verifier interface {
	Verify(ctx context.Context, accessToken string) (*VerifiedIdentity, error)
}

// Resolver produces a VerifiedIdentity for inbound requests of a protected
// service. Two paths, tried in order with no retries between them: trusted
// gateway headers, then direct verification of a bearer token.
type Resolver struct {
	verifier      Verifier
	gatewaySecret []byte
	logger        *slog.Logger
}

// NewResolver constructs a Resolver.
func NewResolver(verifier Verifier, gatewaySecret string, logger *slog.Logger) *Resolver {
	return &Resolver{verifier: verifier, gatewaySecret: []byte(gatewaySecret), logger: logger}
}

// Resolve authenticates a request. It fails closed: any ambiguity (forged
// headers, malformed bearer, missing credential) yields an error, never an
// anonymous pass-through.
func (res *Resolver) Resolve(r *http.Request) (*VerifiedIdentity, error) {
	if id := r.Header.Get(HeaderUserID); id != "" && res.fromGateway(r) {
		userID, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return &VerifiedIdentity{
			UserID:      userID,
			Email:       r.Header.Get(HeaderUserEmail),
			DisplayName: r.Header.Get(HeaderUserName),
			Source:      SourceGateway,
		}, nil
	}

	token, err := BearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, ErrAuthRequired
	}
	identity, err := res.verifier.Verify(r.Context(), token)
	if err != nil {
		return nil, err
	}
	return identity, nil
}

// Middleware rejects unauthenticated requests and stores the resolved
// identity in the request context.
func (res *Resolver) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, err := res.Resolve(r)
		if err != nil {
			res.respondError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), identity)))
	})
}

func (res *Resolver) respondError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, httpx.ErrUnavailable) {
		res.logger.Error("verification upstream unavailable", slog.Any("error", err), slog.String("path", r.URL.Path))
		httpx.Problem(w, http.StatusServiceUnavailable, "Upstream Unavailable", "authentication service unavailable")
		return
	}
	res.logger.Warn("authentication failed", slog.Any("error", err), slog.String("path", r.URL.Path))
	httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "authentication required")
}

// fromGateway checks the provenance header in constant time.
func (res *Resolver) fromGateway(r *http.Request) bool {
	if len(res.gatewaySecret) == 0 {
		return false
	}
	presented := r.Header.Get(HeaderGatewayAuth)
	return subtle.ConstantTimeCompare([]byte(presented), res.gatewaySecret) == 1
}

type identityContextKey struct{}

// ContextWithIdentity stores the verified identity for the request lifetime.
func ContextWithIdentity(ctx context.Context, identity *VerifiedIdentity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, identity)
}

// IdentityFromContext extracts the verified identity, if any.
func IdentityFromContext(ctx context.Context) *VerifiedIdentity {
	identity, _ := ctx.Value(identityContextKey{}).(*VerifiedIdentity)
	return identity
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	return parts[1], nil
}
