package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/danielgtaylor/huma/v2/humatest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mycellarapp/cellar-server/internal/auth"
	"github.com/mycellarapp/cellar-server/internal/domain"
	"github.com/mycellarapp/cellar-server/internal/kv"
	"github.com/mycellarapp/cellar-server/internal/search"
	"github.com/mycellarapp/cellar-server/internal/service"
	"github.com/mycellarapp/cellar-server/internal/sse"
	"github.com/mycellarapp/cellar-server/internal/store/sqlite"
)

const testTokenKey = "707172737475767778797a7b7c7d7e7f808182838485868788898a8b8c8d8e8f"

type fakeMailer struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *fakeMailer) SendVerificationCode(_ context.Context, to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[to] = code
	return nil
}

func (m *fakeMailer) SendPasswordReset(_ context.Context, _, _ string) error {
	return nil
}

func (m *fakeMailer) code(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

// stubGenerator answers every prompt with reply.
type stubGenerator struct {
	reply string
}

func (g *stubGenerator) Generate(_ context.Context, _, _ string) (string, error) {
	return g.reply, nil
}

type testServer struct {
	api    humatest.TestAPI
	server *Server
	store  *sqlite.Store
	tokens *auth.TokenService
	mailer *fakeMailer
	ai     *stubGenerator
}

func setupTestServer(t *testing.T, opts Options) *testServer {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	st, err := sqlite.Open(ctx, filepath.Join(t.TempDir(), "cellar.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	prefs, err := kv.Open("", logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = prefs.Close() })

	index, err := search.NewSearchIndex(search.Options{Logger: logger})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	tokens, err := auth.NewTokenService(testTokenKey, time.Hour)
	require.NoError(t, err)

	events := sse.NewManager(logger)
	mailer := &fakeMailer{codes: make(map[string]string)}
	ai := &stubGenerator{reply: "Drink between 2024 and 2030."}

	notify := service.NewNotifier(events, logger)
	wines := service.NewWineService(st, index, notify, logger)
	services := &Services{
		Accounts:    service.NewAccountService(st, prefs, tokens, mailer, service.AccountOptions{PublicURL: "https://cellar.example.com"}, logger),
		Cellars:     service.NewCellarService(st, prefs, index, notify, logger),
		Wines:       wines,
		Experiences: service.NewExperienceService(wines, logger),
		Transfer:    service.NewTransferService(wines, logger),
		Pairing:     service.NewPairingService(ai, wines, logger),
		Search:      service.NewSearchService(index, st, logger),
	}

	server := NewServer(services, events, opts, logger)
	t.Cleanup(server.Close)

	return &testServer{
		api:    humatest.Wrap(t, server.API()),
		server: server,
		store:  st,
		tokens: tokens,
		mailer: mailer,
		ai:     ai,
	}
}

// login creates a user directly in the store and returns an auth header.
func (ts *testServer) login(t *testing.T, userID string) string {
	t.Helper()
	now := time.Now()
	user := &domain.User{
		ID:           userID,
		Email:        userID + "@example.com",
		PasswordHash: "unused",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, ts.store.CreateUser(context.Background(), user))

	token, _, err := ts.tokens.Issue(user)
	require.NoError(t, err)
	return "Authorization: Bearer " + token
}

type envelope[T any] struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Data    T      `json:"data"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decode[T any](t *testing.T, resp *httptest.ResponseRecorder) envelope[T] {
	t.Helper()
	var env envelope[T]
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env), resp.Body.String())
	assert.Equal(t, 1, env.Version)
	return env
}

// bottle is a complete wine body at location.
func bottle(producer, location string) map[string]any {
	return map[string]any{"producer": producer, "region": "Burgundy", "color": "red", "location": location}
}

func TestHealthCheck(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/health")
	require.Equal(t, 200, resp.Code)

	env := decode[HealthResponse](t, resp)
	assert.True(t, env.Success)
	assert.Equal(t, "healthy", env.Data.Status)
	assert.Contains(t, env.Data.Components, "search")
}

func TestAuth_RequiresToken(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Get("/api/v1/wines")
	assert.Equal(t, 401, resp.Code)
	env := decode[any](t, resp)
	assert.False(t, env.Success)
	assert.Equal(t, "UNAUTHORIZED", env.Code)

	resp = ts.api.Get("/api/v1/wines", "Authorization: Bearer not-a-token")
	assert.Equal(t, 401, resp.Code)
	assert.Equal(t, "UNAUTHORIZED", decode[any](t, resp).Code)
}

func TestAuth_RegisterVerifyMe(t *testing.T) {
	ts := setupTestServer(t, Options{})

	resp := ts.api.Post("/api/v1/auth/register", map[string]any{
		"email":    "Ana@Example.com",
		"password": "correct horse",
	})
	require.Equal(t, 200, resp.Code, resp.Body.String())

	code := ts.mailer.code("ana@example.com")
	require.Len(t, code, 6)

	resp = ts.api.Post("/api/v1/auth/register/verify", map[string]any{
		"email": "ana@example.com",
		"code":  code,
	})
	require.Equal(t, 200, resp.Code, resp.Body.String())
	result := decode[service.AuthResult](t, resp).Data
	require.NotEmpty(t, result.AccessToken)

	resp = ts.api.Get("/api/v1/auth/me", "Authorization: Bearer "+result.AccessToken)
	require.Equal(t, 200, resp.Code)
	assert.Equal(t, result.User.ID, decode[domain.User](t, resp).Data.ID)

	resp = ts.api.Post("/api/v1/auth/login", map[string]any{
		"email":    "ana@example.com",
		"password": "wrong password",
	})
	assert.Equal(t, 401, resp.Code)
	assert.Equal(t, "INVALID_CREDENTIALS", decode[any](t, resp).Code)
}

func TestAuth_RateLimited(t *testing.T) {
	ts := setupTestServer(t, Options{AuthRequests: 1, AuthWindow: time.Hour, AuthBurst: 1})

	body := map[string]any{"email": "nobody@example.com", "password": "whatever"}
	first := ts.api.Post("/api/v1/auth/login", body)
	assert.Equal(t, 401, first.Code)

	second := ts.api.Post("/api/v1/auth/login", body)
	assert.Equal(t, 429, second.Code)
	assert.Equal(t, "RATE_LIMITED", decode[any](t, second).Code)
}

func TestWineLifecycle(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	resp := ts.api.Post("/api/v1/cellars", authz, map[string]any{"id": " Garage ", "name": "Garage"})
	require.Equal(t, 201, resp.Code, resp.Body.String())
	assert.Equal(t, "garage", decode[domain.Cellar](t, resp).Data.ID)

	resp = ts.api.Get("/api/v1/cellars/active", authz)
	assert.Equal(t, "garage", decode[ActiveCellarResponse](t, resp).Data.ID)

	resp = ts.api.Post("/api/v1/wines", authz, map[string]any{
		"producer":              "Domaine A",
		"region":                "Burgundy",
		"name":                  "Cuvée",
		"year":                  2015,
		"drinkingWindowEndYear": "2020",
		"color":                 "Red",
		"location":              "R1",
	})
	require.Equal(t, 201, resp.Code, resp.Body.String())
	wine := decode[domain.Wine](t, resp).Data
	assert.Equal(t, "garage", wine.CellarID)
	require.NotNil(t, wine.Year)
	assert.Equal(t, 2015, *wine.Year)
	require.NotNil(t, wine.DrinkingWindowEndYear)
	assert.Equal(t, domain.ColorRed, wine.Color)

	resp = ts.api.Post("/api/v1/wines", authz, bottle("B", " r1 "))
	assert.Equal(t, 409, resp.Code)
	assert.Equal(t, "DUPLICATE_LOCATION", decode[any](t, resp).Code)

	resp = ts.api.Get("/api/v1/wines", authz)
	require.Len(t, decode[[]domain.Wine](t, resp).Data, 1)

	resp = ts.api.Get("/api/v1/wines?where=year%20%3E%202016", authz)
	require.Equal(t, 200, resp.Code, resp.Body.String())
	assert.Empty(t, decode[[]domain.Wine](t, resp).Data)

	resp = ts.api.Get("/api/v1/wines?where=year%20%3E", authz)
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp).Code)

	resp = ts.api.Post("/api/v1/wines/"+wine.ID+"/experience", authz, map[string]any{
		"tastingNotes": "silky",
		"rating":       4,
		"consumedDate": "2024-02-03",
	})
	require.Equal(t, 200, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/wines/"+wine.ID, authz)
	assert.Equal(t, 404, resp.Code)

	resp = ts.api.Get("/api/v1/experienced", authz)
	exps := decode[[]domain.ExperiencedWine](t, resp).Data
	require.Len(t, exps, 1)
	assert.Equal(t, 4, exps[0].Rating)
	assert.Equal(t, wine.ID, exps[0].ID)

	resp = ts.api.Post("/api/v1/experienced/"+wine.ID+"/restore", authz)
	require.Equal(t, 200, resp.Code, resp.Body.String())
	assert.Equal(t, "R1", decode[domain.Wine](t, resp).Data.Location)

	resp = ts.api.Get("/api/v1/experienced", authz)
	assert.Empty(t, decode[[]domain.ExperiencedWine](t, resp).Data)
}

func TestRestore_PartialBodyKeepsFields(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	resp := ts.api.Post("/api/v1/wines", authz, map[string]any{
		"producer": "Domaine A",
		"region":   "Burgundy",
		"color":    "white",
		"location": "R1",
		"year":     2015,
	})
	require.Equal(t, 201, resp.Code, resp.Body.String())
	id := decode[domain.Wine](t, resp).Data.ID

	resp = ts.api.Post("/api/v1/wines/"+id+"/experience", authz, map[string]any{"rating": 3})
	require.Equal(t, 200, resp.Code, resp.Body.String())

	resp = ts.api.Post("/api/v1/experienced/"+id+"/restore", authz, map[string]any{"location": "R9"})
	require.Equal(t, 200, resp.Code, resp.Body.String())

	restored := decode[domain.Wine](t, resp).Data
	assert.Equal(t, "R9", restored.Location)
	assert.Equal(t, "Domaine A", restored.Producer)
	assert.Equal(t, "Burgundy", restored.Region)
	assert.Equal(t, domain.ColorWhite, restored.Color)
	require.NotNil(t, restored.Year)
	assert.Equal(t, 2015, *restored.Year)
}

func TestWines_RejectInvalidFields(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	purple := bottle("A", "R1")
	purple["color"] = "purple"
	resp := ts.api.Post("/api/v1/wines", authz, purple)
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp).Code)

	resp = ts.api.Post("/api/v1/wines", authz, map[string]any{"producer": "A", "color": "red"})
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp).Code)

	resp = ts.api.Get("/api/v1/wines?all=true", authz)
	assert.Empty(t, decode[[]domain.Wine](t, resp).Data)
}

func TestExperience_RejectsBadRating(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	resp := ts.api.Post("/api/v1/wines", authz, bottle("A", "R1"))
	require.Equal(t, 201, resp.Code)
	id := decode[domain.Wine](t, resp).Data.ID

	resp = ts.api.Post("/api/v1/wines/"+id+"/experience", authz, map[string]any{"rating": 9})
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "VALIDATION", decode[any](t, resp).Code)
}

func TestCellarDelete(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	require.Equal(t, 201, ts.api.Post("/api/v1/cellars", authz, map[string]any{"id": "kitchen"}).Code)
	require.Equal(t, 201, ts.api.Post("/api/v1/cellars", authz, map[string]any{"id": "garage"}).Code)
	require.Equal(t, 201, ts.api.Post("/api/v1/wines", authz, bottle("A", "R1")).Code)

	resp := ts.api.Delete("/api/v1/cellars/garage", authz)
	assert.Equal(t, 409, resp.Code)
	assert.Equal(t, "CELLAR_NOT_EMPTY", decode[any](t, resp).Code)

	resp = ts.api.Delete("/api/v1/cellars/garage?reassignTo=garage", authz)
	assert.Equal(t, 400, resp.Code)
	assert.Equal(t, "CANNOT_REASSIGN_TO_SELF", decode[any](t, resp).Code)

	resp = ts.api.Delete("/api/v1/cellars/default", authz)
	assert.Equal(t, "INVALID_ID", decode[any](t, resp).Code)

	resp = ts.api.Delete("/api/v1/cellars/garage?reassignTo=kitchen", authz)
	require.Equal(t, 200, resp.Code, resp.Body.String())

	resp = ts.api.Get("/api/v1/wines?cellar=kitchen", authz)
	assert.Len(t, decode[[]domain.Wine](t, resp).Data, 1)

	resp = ts.api.Get("/api/v1/cellars", authz)
	cellars := decode[[]domain.Cellar](t, resp).Data
	require.Len(t, cellars, 1)
	assert.Equal(t, "kitchen", cellars[0].ID)
}

func TestCellarReassign(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	require.Equal(t, 201, ts.api.Post("/api/v1/wines", authz, bottle("A", "R1")).Code)
	require.Equal(t, 201, ts.api.Post("/api/v1/cellars", authz, map[string]any{"id": "garage"}).Code)

	resp := ts.api.Post("/api/v1/cellars/reassign", authz, map[string]any{"from": "default", "to": "garage"})
	require.Equal(t, 200, resp.Code, resp.Body.String())
	assert.Equal(t, 1, decode[domain.ReassignResult](t, resp).Data.MovedWines)

	resp = ts.api.Put("/api/v1/cellars/active", authz, map[string]any{"id": "nowhere"})
	assert.Equal(t, 404, resp.Code)
}

func TestImportExport(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	csv := "Name;Producer;Year;Region;Color;Location\n" +
		"Cuvée;Domaine A;2015;Burgundy;red;R1\n" +
		"Cuvée;Domaine B;2016;Burgundy;red;r1\n" +
		"Blanc;Domaine C;;Loire;white;R2\n"
	resp := ts.api.Post("/api/v1/import", authz, "Content-Type: text/csv", strings.NewReader(csv))
	require.Equal(t, 200, resp.Code, resp.Body.String())
	result := decode[service.ImportResult](t, resp).Data
	assert.Equal(t, 2, result.Imported)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Line 3")

	resp = ts.api.Get("/api/v1/export/wines", authz)
	require.Equal(t, 200, resp.Code)
	assert.Contains(t, resp.Header().Get("Content-Disposition"), "my_cellar_")
	assert.True(t, strings.HasPrefix(resp.Body.String(), "Name;Producer;Year"))
	assert.Contains(t, resp.Body.String(), "Domaine C")
}

func TestSearch(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")
	other := ts.login(t, "user-2")

	require.Equal(t, 201, ts.api.Post("/api/v1/wines", authz, map[string]any{"producer": "Chateau Margaux", "region": "Bordeaux", "color": "red", "location": "A1"}).Code)
	require.Equal(t, 201, ts.api.Post("/api/v1/wines", other, map[string]any{"producer": "Chateau Margaux", "region": "Margaux", "color": "red", "location": "A1"}).Code)

	resp := ts.api.Get("/api/v1/search?q=margaux", authz)
	require.Equal(t, 200, resp.Code, resp.Body.String())
	res := decode[search.SearchResult](t, resp).Data
	assert.Equal(t, uint64(1), res.Total)
}

func TestDrinkingWindow(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	resp := ts.api.Post("/api/v1/ai/drinking-window", authz, map[string]any{
		"wine": map[string]any{"producer": "A", "year": 2018},
	})
	require.Equal(t, 200, resp.Code, resp.Body.String())
	window := decode[service.DrinkingWindow](t, resp).Data
	assert.Equal(t, 2024, window.Start)
	assert.Equal(t, 2030, window.End)

	resp = ts.api.Post("/api/v1/ai/generate", authz, map[string]any{"prompt": "  "})
	assert.Equal(t, 400, resp.Code)
}

func TestParseLabel(t *testing.T) {
	ts := setupTestServer(t, Options{})
	authz := ts.login(t, "user-1")

	resp := ts.api.Post("/api/v1/labels/parse", authz, map[string]any{
		"text": "Domaine Leflaive\nPuligny-Montrachet\n2017\nBourgogne blanc",
	})
	require.Equal(t, 200, resp.Code, resp.Body.String())
	assert.Equal(t, "2017", decode[map[string]any](t, resp).Data["year"])
}
