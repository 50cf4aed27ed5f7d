package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"postdeck/internal/domain"
)

// SessionIssuer emite y valida los tokens de sesion. La sesion viaja en el token;
// solo los refresh tokens tienen estado (jti en RefreshTokenStore).
type SessionIssuer struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	issuer     string
	store      RefreshTokenStore
}

type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// Claims lleva el ID de usuario solo en "sub".
type Claims struct {
	Name      string `json:"name,omitempty"`
	Email     string `json:"email,omitempty"`
	Picture   string `json:"picture,omitempty"`
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
	defaultIssuer    = "postdeck"
)

var (
	ErrJWTInvalid = errors.New("jwt invalid")
	ErrJWTExpired = errors.New("jwt expired")
)

func NewSessionIssuer(secret, issuer string, accessTTL, refreshTTL time.Duration, store RefreshTokenStore) *SessionIssuer {
	if accessTTL <= 0 {
		accessTTL = 15 * time.Minute
	}
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	if strings.TrimSpace(issuer) == "" {
		issuer = defaultIssuer
	}
	if store == nil {
		store = NewMemoryRefreshTokenStore()
	}
	return &SessionIssuer{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		issuer:     issuer,
		store:      store,
	}
}

// Issue acuña el par de tokens para una identidad recien autorizada.
func (s *SessionIssuer) Issue(ctx context.Context, identity domain.Identity) (TokenPair, error) {
	return s.issue(ctx, sessionUserFromIdentity(identity))
}

func (s *SessionIssuer) issue(ctx context.Context, user domain.SessionUser) (TokenPair, error) {
	if len(s.secret) == 0 || strings.TrimSpace(user.ID) == "" {
		return TokenPair{}, ErrJWTInvalid
	}
	now := time.Now().UTC()
	access, err := s.sign(user, now, s.accessTTL, tokenTypeAccess, "")
	if err != nil {
		return TokenPair{}, err
	}
	jti := uuid.NewString()
	refresh, err := s.sign(user, now, s.refreshTTL, tokenTypeRefresh, jti)
	if err != nil {
		return TokenPair{}, err
	}
	if err := s.store.Store(ctx, jti, user.ID, s.refreshTTL); err != nil {
		return TokenPair{}, err
	}
	return TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(s.accessTTL.Seconds()),
	}, nil
}

// Session valida un access token y expande el ID de usuario desde "sub".
func (s *SessionIssuer) Session(accessToken string) (domain.Session, error) {
	claims, err := s.parse(accessToken, tokenTypeAccess)
	if err != nil {
		return domain.Session{}, err
	}
	return sessionFromClaims(claims), nil
}

// Refresh rota el refresh token: el anterior queda revocado.
func (s *SessionIssuer) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return TokenPair{}, err
	}
	if claims.ID == "" {
		return TokenPair{}, ErrJWTInvalid
	}
	consumed, err := s.store.Consume(ctx, claims.ID)
	if err != nil || !consumed {
		return TokenPair{}, ErrJWTInvalid
	}
	return s.issue(ctx, sessionFromClaims(claims).User)
}

func (s *SessionIssuer) Revoke(ctx context.Context, refreshToken string) error {
	claims, err := s.parse(refreshToken, tokenTypeRefresh)
	if err != nil {
		return err
	}
	if claims.ID == "" {
		return ErrJWTInvalid
	}
	return s.store.Revoke(ctx, claims.ID)
}

func (s *SessionIssuer) sign(user domain.SessionUser, now time.Time, ttl time.Duration, tokenType, jti string) (string, error) {
	claims := Claims{
		Name:      user.Name,
		Email:     user.Email,
		Picture:   user.Image,
		TokenType: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Issuer:    s.issuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s *SessionIssuer) parse(tokenString, tokenType string) (Claims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenString) == "" {
		return Claims{}, ErrJWTInvalid
	}
	var claims Claims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenString, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrJWTExpired
		}
		return Claims{}, ErrJWTInvalid
	}
	if claims.TokenType != tokenType || strings.TrimSpace(claims.Subject) == "" {
		return Claims{}, ErrJWTInvalid
	}
	return claims, nil
}

func sessionFromClaims(claims Claims) domain.Session {
	session := domain.Session{
		User: domain.SessionUser{
			ID:    claims.Subject,
			Name:  claims.Name,
			Email: claims.Email,
			Image: claims.Picture,
		},
	}
	if claims.ExpiresAt != nil {
		session.ExpiresAt = claims.ExpiresAt.Time
	}
	return session
}

func sessionUserFromIdentity(identity domain.Identity) domain.SessionUser {
	name := identity.Profile.Name
	if name == "" {
		name = identity.User.DisplayName
	}
	return domain.SessionUser{
		ID:    identity.User.ID,
		Name:  name,
		Email: identity.User.Email,
		Image: identity.Profile.ProfilePicture,
	}
}
