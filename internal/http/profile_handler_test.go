package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"

	"postdeck/internal/domain"
)

type mockProfileRepo struct {
	byUserID map[string]domain.Profile
	err      error
}

func newMockProfileRepo() *mockProfileRepo {
	return &mockProfileRepo{byUserID: make(map[string]domain.Profile)}
}

func (m *mockProfileRepo) GetByEmail(_ context.Context, email string) (domain.Profile, error) {
	for _, p := range m.byUserID {
		if p.Email == email {
			return p, nil
		}
	}
	return domain.Profile{}, pgx.ErrNoRows
}

func (m *mockProfileRepo) GetByUserID(_ context.Context, userID string) (domain.Profile, error) {
	if m.err != nil {
		return domain.Profile{}, m.err
	}
	p, ok := m.byUserID[userID]
	if !ok {
		return domain.Profile{}, pgx.ErrNoRows
	}
	return p, nil
}

type mockPlanRepo struct {
	plans map[string]domain.Plan
}

func newMockPlanRepo() *mockPlanRepo {
	return &mockPlanRepo{plans: map[string]domain.Plan{
		"free": {ID: "free", Name: "Free", IsFree: true},
	}}
}

func (m *mockPlanRepo) ListFree(_ context.Context) ([]domain.Plan, error) {
	var out []domain.Plan
	for _, p := range m.plans {
		if p.IsFree {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *mockPlanRepo) GetByID(_ context.Context, id string) (domain.Plan, error) {
	p, ok := m.plans[id]
	if !ok {
		return domain.Plan{}, pgx.ErrNoRows
	}
	return p, nil
}

type mockHistoryRepo struct {
	entries []domain.PlanHistory
}

func (m *mockHistoryRepo) ListByUserID(_ context.Context, userID string) ([]domain.PlanHistory, error) {
	var out []domain.PlanHistory
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func setupProfileRouter(profiles *mockProfileRepo, history *mockHistoryRepo) (http.Handler, string) {
	issuer := newTestIssuer()
	h := NewProfileHandler(zapNop(), profiles, newMockPlanRepo(), history)
	r := NewRouter(zapNop(), NewAuthHandler(zapNop(), &mockAuthenticator{}, nil, issuer), h, issuer, nil)
	pair, _ := issuer.Issue(context.Background(), testIdentity())
	return r, pair.AccessToken
}

func TestProfileHandlerGetProfile_Success(t *testing.T) {
	now := time.Now().UTC()
	profiles := newMockProfileRepo()
	profiles.byUserID["u1"] = testIdentity().Profile
	history := &mockHistoryRepo{entries: []domain.PlanHistory{
		{ID: "h1", UserID: "u1", PlanID: "free", PurchaseDate: now, IsFree: true},
		{ID: "h2", UserID: "u2", PlanID: "free", PurchaseDate: now, IsFree: true},
	}}
	r, token := setupProfileRouter(profiles, history)

	rec := performAuthorized(r, http.MethodGet, "/profile", token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Profile domain.Profile       `json:"profile"`
		Plan    domain.Plan          `json:"plan"`
		History []domain.PlanHistory `json:"history"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Profile.UserID != "u1" || !resp.Plan.IsFree {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if len(resp.History) != 1 || resp.History[0].ID != "h1" {
		t.Fatalf("expected only own history, got %+v", resp.History)
	}
}

func TestProfileHandlerGetProfile_NotFound(t *testing.T) {
	r, token := setupProfileRouter(newMockProfileRepo(), &mockHistoryRepo{})

	rec := performAuthorized(r, http.MethodGet, "/profile", token)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestProfileHandlerGetProfile_StoreError(t *testing.T) {
	profiles := newMockProfileRepo()
	profiles.err = errors.New("connection refused")
	r, token := setupProfileRouter(profiles, &mockHistoryRepo{})

	rec := performAuthorized(r, http.MethodGet, "/profile", token)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func TestProfileHandlerGetProfile_RequiresSession(t *testing.T) {
	r, _ := setupProfileRouter(newMockProfileRepo(), &mockHistoryRepo{})

	rec := performRequest(r, http.MethodGet, "/profile", nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestProfileHandlerGetProfile_MissingPlan(t *testing.T) {
	profiles := newMockProfileRepo()
	profile := testIdentity().Profile
	profile.PlanID = "retired"
	profiles.byUserID["u1"] = profile
	r, token := setupProfileRouter(profiles, &mockHistoryRepo{})

	rec := performAuthorized(r, http.MethodGet, "/profile", token)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}
