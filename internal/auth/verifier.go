package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	fbauth "firebase.google.com/go/v4/auth"
)

// ErrInvalidToken is returned for a missing, malformed or rejected token.
var ErrInvalidToken = errors.New("invalid identity token")

// Verifier turns a bearer token into a verified Identity.
type Verifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// FirebaseVerifier checks Firebase ID tokens.
type FirebaseVerifier struct {
	client *fbauth.Client
}

func NewFirebaseVerifier(ctx context.Context, app *firebase.App) (*FirebaseVerifier, error) {
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("get auth client: %w", err)
	}
	return &FirebaseVerifier{client: client}, nil
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidToken
	}
	tok, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return identityFromClaims(tok.UID, tok.Claims), nil
}

func identityFromClaims(uid string, claims map[string]any) Identity {
	str := func(key string) string {
		s, _ := claims[key].(string)
		return s
	}
	id := Identity{
		UID:         uid,
		DisplayName: str("name"),
		Email:       str("email"),
		PhotoURL:    str("picture"),
	}
	if id.DisplayName == "" {
		id.DisplayName = displayNameFromEmail(id.Email)
	}
	return id
}

func displayNameFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i > 0 {
		return email[:i]
	}
	return "Member"
}

// HeaderVerifier trusts tokens of the form "uid" or "uid:Display Name".
// It exists for local development and tests only.
type HeaderVerifier struct{}

func (HeaderVerifier) Verify(_ context.Context, token string) (Identity, error) {
	uid, name, _ := strings.Cut(strings.TrimSpace(token), ":")
	if uid == "" {
		return Identity{}, ErrInvalidToken
	}
	if name == "" {
		name = uid
	}
	return Identity{UID: uid, DisplayName: name}, nil
}
