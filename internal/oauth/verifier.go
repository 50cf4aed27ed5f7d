package oauth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"

	"postdeck/internal/service"
)

var (
	ErrUnknownProvider  = errors.New("unknown oauth provider")
	ErrInvalidIDToken   = errors.New("invalid id token")
	ErrEmailNotVerified = errors.New("provider email not verified")
)

// Verifier convierte un ID token del proveedor en una asercion verificada.
type Verifier interface {
	Verify(ctx context.Context, provider, rawIDToken string) (service.OAuthAssertion, error)
}

// ProviderConfig describe un proveedor OIDC habilitado.
type ProviderConfig struct {
	Name      string
	IssuerURL string
	ClientID  string
}

// OIDCVerifier valida firma, issuer, audiencia y expiracion con go-oidc.
type OIDCVerifier struct {
	verifiers map[string]*oidc.IDTokenVerifier
}

// NewOIDCVerifier descubre cada proveedor (/.well-known/openid-configuration).
func NewOIDCVerifier(ctx context.Context, providers []ProviderConfig) (*OIDCVerifier, error) {
	v := &OIDCVerifier{verifiers: make(map[string]*oidc.IDTokenVerifier, len(providers))}
	for _, p := range providers {
		provider, err := oidc.NewProvider(ctx, p.IssuerURL)
		if err != nil {
			return nil, fmt.Errorf("discover oidc provider %s: %w", p.Name, err)
		}
		v.Register(p.Name, provider.Verifier(&oidc.Config{ClientID: p.ClientID}))
	}
	return v, nil
}

// Register agrega un verificador ya construido (por ejemplo con oidc.NewVerifier y claves estaticas).
func (v *OIDCVerifier) Register(name string, verifier *oidc.IDTokenVerifier) {
	v.verifiers[normalizeProvider(name)] = verifier
}

func (v *OIDCVerifier) Providers() []string {
	names := make([]string, 0, len(v.verifiers))
	for name := range v.verifiers {
		names = append(names, name)
	}
	return names
}

type idTokenClaims struct {
	Email         string `json:"email"`
	EmailVerified *bool  `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

func (v *OIDCVerifier) Verify(ctx context.Context, provider, rawIDToken string) (service.OAuthAssertion, error) {
	provider = normalizeProvider(provider)
	verifier, ok := v.verifiers[provider]
	if !ok {
		return service.OAuthAssertion{}, ErrUnknownProvider
	}

	token, err := verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return service.OAuthAssertion{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	var claims idTokenClaims
	if err := token.Claims(&claims); err != nil {
		return service.OAuthAssertion{}, fmt.Errorf("%w: %v", ErrInvalidIDToken, err)
	}
	return assertionFromClaims(provider, claims)
}

// assertionFromClaims rechaza emails que el proveedor no marca como verificados:
// el email es la clave de identidad.
func assertionFromClaims(provider string, claims idTokenClaims) (service.OAuthAssertion, error) {
	if claims.EmailVerified != nil && !*claims.EmailVerified {
		return service.OAuthAssertion{}, ErrEmailNotVerified
	}
	if strings.TrimSpace(claims.Email) == "" {
		return service.OAuthAssertion{}, fmt.Errorf("%w: missing email claim", ErrInvalidIDToken)
	}
	return service.OAuthAssertion{
		Provider: provider,
		Email:    claims.Email,
		Name:     claims.Name,
		Image:    claims.Picture,
	}, nil
}

func normalizeProvider(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
