package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"postdeck/internal/domain"
	"postdeck/internal/email"
	"postdeck/internal/repository"
)

var (
	ErrInvalidInput       = errors.New("invalid input")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrConfiguration      = errors.New("free plan not configured")
	ErrStoreUnavailable   = errors.New("identity store unavailable")
)

// AuthOptions es la configuracion inmutable de los flujos de sign-in.
type AuthOptions struct {
	// SignupOnLogin convierte un login con email desconocido en un alta.
	SignupOnLogin bool
	// StoreTimeout acota cada intento de autorizacion; 0 desactiva el limite.
	StoreTimeout time.Duration
	Now          func() time.Time
}

// DefaultAuthOptions reproduce el comportamiento historico: el login crea la cuenta.
func DefaultAuthOptions() AuthOptions {
	return AuthOptions{SignupOnLogin: true, StoreTimeout: 5 * time.Second}
}

// AuthService convierte credenciales o aserciones OAuth en una identidad completa.
type AuthService struct {
	logger     *zap.Logger
	users      repository.UserRepository
	profiles   repository.ProfileRepository
	plans      repository.PlanRepository
	identities repository.IdentityRepository
	cipher     PasswordCipher
	mailer     email.Sender
	opts       AuthOptions

	// dummyHash iguala el costo de un login fallido cuando no hay hash que comparar.
	dummyHash string
	mail      sync.WaitGroup
}

const (
	dummyPassword  = "postdeck:no-such-account"
	welcomeTimeout = 15 * time.Second
)

func NewAuthService(
	logger *zap.Logger,
	users repository.UserRepository,
	profiles repository.ProfileRepository,
	plans repository.PlanRepository,
	identities repository.IdentityRepository,
	cipher PasswordCipher,
	mailer email.Sender,
	opts AuthOptions,
) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cipher == nil {
		cipher = NewBcryptCipher(defaultBcryptCost)
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}
	dummyHash, err := cipher.Hash(dummyPassword)
	if err != nil {
		logger.Warn("precompute dummy password hash failed", zap.Error(err))
	}
	return &AuthService{
		dummyHash:  dummyHash,
		logger:     logger,
		users:      users,
		profiles:   profiles,
		plans:      plans,
		identities: identities,
		cipher:     cipher,
		mailer:     mailer,
		opts:       opts,
	}
}

type CredentialSignupRequest struct {
	Email    string
	Password string
	FullName string
}

func (r CredentialSignupRequest) Validate() error {
	return validateCredentials(r.Email, r.Password)
}

type CredentialLoginRequest struct {
	Email    string
	Password string
}

func (r CredentialLoginRequest) Validate() error {
	return validateCredentials(r.Email, r.Password)
}

// OAuthAssertion es una identidad ya verificada por el proveedor.
type OAuthAssertion struct {
	Provider string
	Email    string
	Name     string
	Image    string
}

func (a OAuthAssertion) Validate() error {
	if strings.TrimSpace(a.Provider) == "" {
		return fmt.Errorf("%w: provider is required", ErrInvalidInput)
	}
	if !looksLikeEmail(normalizeEmail(a.Email)) {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return nil
}

func validateCredentials(emailAddr, password string) error {
	if password == "" {
		return fmt.Errorf("%w: password is required", ErrInvalidInput)
	}
	if !looksLikeEmail(normalizeEmail(emailAddr)) {
		return fmt.Errorf("%w: email is required", ErrInvalidInput)
	}
	return nil
}

// Signup crea la cuenta si el email es nuevo; si ya existe se comporta como Login.
func (s *AuthService) Signup(ctx context.Context, req CredentialSignupRequest) (domain.Identity, error) {
	if err := req.Validate(); err != nil {
		return domain.Identity{}, err
	}
	return s.authorize(ctx, normalizeEmail(req.Email), req.Password, strings.TrimSpace(req.FullName), true)
}

// Login verifica credenciales. Con SignupOnLogin un email desconocido se registra.
func (s *AuthService) Login(ctx context.Context, req CredentialLoginRequest) (domain.Identity, error) {
	if err := req.Validate(); err != nil {
		return domain.Identity{}, err
	}
	return s.authorize(ctx, normalizeEmail(req.Email), req.Password, "", s.opts.SignupOnLogin)
}

func (s *AuthService) authorize(ctx context.Context, emailAddr, password, fullName string, allowCreate bool) (domain.Identity, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	user, err := s.users.GetByEmail(ctx, emailAddr)
	if err == nil {
		return s.verifyAndLoad(ctx, user, password)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, storeErr("lookup user", err)
	}
	if !allowCreate {
		s.cipher.Verify(password, s.dummyHash)
		return domain.Identity{}, ErrInvalidCredentials
	}

	plan, err := s.freePlan(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	hash, err := s.cipher.Hash(password)
	if err != nil {
		if errors.Is(err, ErrPasswordTooLong) {
			return domain.Identity{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return domain.Identity{}, fmt.Errorf("hash password: %w", err)
	}

	user = domain.User{
		ID:           uuid.NewString(),
		Email:        emailAddr,
		DisplayName:  fullName,
		PasswordHash: hash,
		CreatedAt:    s.opts.Now(),
	}
	identity, err := s.provision(ctx, plan, user, true, fullName, "")
	if errors.Is(err, repository.ErrConflict) {
		s.logger.Info("concurrent signup detected, re-reading user", zap.String("email", emailAddr))
		existing, err := s.users.GetByEmail(ctx, emailAddr)
		if err != nil {
			return domain.Identity{}, storeErr("re-read user", err)
		}
		return s.verifyAndLoad(ctx, existing, password)
	}
	if err != nil {
		return domain.Identity{}, err
	}
	s.logger.Info("user signed up", zap.String("user_id", identity.User.ID))
	return identity, nil
}

func (s *AuthService) verifyAndLoad(ctx context.Context, user domain.User, password string) (domain.Identity, error) {
	if !user.HasPassword() {
		s.cipher.Verify(password, s.dummyHash)
		return domain.Identity{}, ErrInvalidCredentials
	}
	if !s.cipher.Verify(password, user.PasswordHash) {
		return domain.Identity{}, ErrInvalidCredentials
	}
	return s.loadIdentity(ctx, user)
}

// SignInOAuth asegura que la identidad federada tenga perfil y plan exactamente una vez.
// La verificacion criptografica de la asercion es responsabilidad del proveedor.
func (s *AuthService) SignInOAuth(ctx context.Context, a OAuthAssertion) (domain.Identity, error) {
	if err := a.Validate(); err != nil {
		return domain.Identity{}, err
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	emailAddr := normalizeEmail(a.Email)
	name := strings.TrimSpace(a.Name)
	image := strings.TrimSpace(a.Image)

	profile, err := s.profiles.GetByEmail(ctx, emailAddr)
	if err == nil {
		return s.identityFromProfile(ctx, profile)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, storeErr("lookup profile", err)
	}

	plan, err := s.freePlan(ctx)
	if err != nil {
		return domain.Identity{}, err
	}

	createUser := false
	user, err := s.users.GetByEmail(ctx, emailAddr)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		createUser = true
		user = domain.User{
			ID:          uuid.NewString(),
			Email:       emailAddr,
			DisplayName: name,
			CreatedAt:   s.opts.Now(),
		}
	case err != nil:
		return domain.Identity{}, storeErr("lookup user", err)
	}

	identity, err := s.provision(ctx, plan, user, createUser, name, image)
	if errors.Is(err, repository.ErrConflict) {
		s.logger.Info("concurrent oauth provisioning detected, re-reading profile",
			zap.String("email", emailAddr),
			zap.String("provider", a.Provider),
		)
		profile, err := s.profiles.GetByEmail(ctx, emailAddr)
		if err != nil {
			return domain.Identity{}, storeErr("re-read profile", err)
		}
		return s.identityFromProfile(ctx, profile)
	}
	if err != nil {
		return domain.Identity{}, err
	}
	s.logger.Info("oauth identity provisioned",
		zap.String("user_id", identity.User.ID),
		zap.String("provider", a.Provider),
	)
	return identity, nil
}

// provision escribe User (opcional), Profile y PlanHistory en una unica unidad.
func (s *AuthService) provision(ctx context.Context, plan domain.Plan, user domain.User, createUser bool, name, image string) (domain.Identity, error) {
	now := s.opts.Now()
	p := domain.Provisioning{
		Profile: domain.Profile{
			ID:             uuid.NewString(),
			UserID:         user.ID,
			Email:          user.Email,
			Name:           name,
			ProfilePicture: image,
			PlanID:         plan.ID,
			PurchaseDate:   now,
			ExpiryDate:     nil,
			IsExpired:      false,
		},
		History: domain.PlanHistory{
			ID:           uuid.NewString(),
			UserID:       user.ID,
			PlanID:       plan.ID,
			PurchaseDate: now,
			ExpiryDate:   nil,
			PriceUSD:     plan.PriceUSD,
			IsFree:       true,
			IsCancelled:  false,
		},
	}
	if createUser {
		p.User = &user
	}

	if err := s.identities.Provision(ctx, p); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.Identity{}, err
		}
		return domain.Identity{}, storeErr("provision identity", err)
	}

	s.sendWelcome(ctx, user.Email, name)
	return domain.Identity{User: user, Profile: p.Profile, Plan: plan}, nil
}

// loadIdentity completa el triple de un usuario existente. Un usuario sin perfil
// (dato previo a este flujo) se provisiona en ese momento.
func (s *AuthService) loadIdentity(ctx context.Context, user domain.User) (domain.Identity, error) {
	profile, err := s.profiles.GetByUserID(ctx, user.ID)
	if err == nil {
		return s.withPlan(ctx, user, profile)
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Identity{}, storeErr("lookup profile", err)
	}

	plan, err := s.freePlan(ctx)
	if err != nil {
		return domain.Identity{}, err
	}
	identity, err := s.provision(ctx, plan, user, false, user.DisplayName, "")
	if errors.Is(err, repository.ErrConflict) {
		profile, err := s.profiles.GetByUserID(ctx, user.ID)
		if err != nil {
			return domain.Identity{}, storeErr("re-read profile", err)
		}
		return s.withPlan(ctx, user, profile)
	}
	return identity, err
}

func (s *AuthService) identityFromProfile(ctx context.Context, profile domain.Profile) (domain.Identity, error) {
	user, err := s.users.GetByID(ctx, profile.UserID)
	if err != nil {
		return domain.Identity{}, storeErr("lookup profile owner", err)
	}
	return s.withPlan(ctx, user, profile)
}

func (s *AuthService) withPlan(ctx context.Context, user domain.User, profile domain.Profile) (domain.Identity, error) {
	plan, err := s.plans.GetByID(ctx, profile.PlanID)
	if err != nil {
		return domain.Identity{}, storeErr("lookup plan", err)
	}
	return domain.Identity{User: user, Profile: profile, Plan: plan}, nil
}

// freePlan exige exactamente un plan con is_free.
func (s *AuthService) freePlan(ctx context.Context) (domain.Plan, error) {
	plans, err := s.plans.ListFree(ctx)
	if err != nil {
		return domain.Plan{}, storeErr("lookup free plan", err)
	}
	if len(plans) != 1 {
		s.logger.Error("free plan misconfigured", zap.Int("free_plans", len(plans)))
		return domain.Plan{}, ErrConfiguration
	}
	return plans[0], nil
}

// sendWelcome corre fuera del camino de autorizacion con su propio deadline.
func (s *AuthService) sendWelcome(ctx context.Context, to, name string) {
	if s.mailer == nil {
		return
	}
	s.mail.Add(1)
	go func() {
		defer s.mail.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), welcomeTimeout)
		defer cancel()
		if err := s.mailer.SendWelcome(ctx, to, name); err != nil {
			s.logger.Warn("send welcome email failed", zap.Error(err), zap.String("email", to))
		}
	}()
}

// Wait bloquea hasta que terminan los envios de bienvenida pendientes.
func (s *AuthService) Wait() {
	s.mail.Wait()
}

func (s *AuthService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}

func storeErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, err)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func looksLikeEmail(email string) bool {
	at := strings.LastIndex(email, "@")
	return at > 0 && at < len(email)-1
}
