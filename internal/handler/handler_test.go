package handler

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/quickhabit/habits/internal/service"
	"github.com/quickhabit/habits/internal/storetest"
)

type testAPI struct {
	t *testing.T
	e *echo.Echo
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	users := storetest.NewUsers()
	habits := storetest.NewHabits()
	auth := service.NewAuthService(users, service.AuthConfig{
		JWTSecret:  "test-secret",
		BcryptCost: bcrypt.MinCost,
	})

	e := NewRouter(RouterConfig{Authenticator: auth}, Handlers{
		Auth:   NewAuthHandler(auth),
		Users:  NewUserHandler(service.NewUserService(users)),
		Habits: NewHabitHandler(service.NewHabitService(habits)),
		Health: NewHealthHandler(nil, nil),
	})
	return &testAPI{t: t, e: e}
}

type response struct {
	Code int
	Body struct {
		Data  json.RawMessage `json:"data"`
		Meta  *PaginationMeta `json:"meta"`
		Error *APIError       `json:"error"`
	}
}

func (a *testAPI) do(method, path, token string, body any) response {
	a.t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			a.t.Fatalf("marshal request: %v", err)
		}
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)

	var res response
	res.Code = rec.Code
	if rec.Body.Len() > 0 {
		if err := json.Unmarshal(rec.Body.Bytes(), &res.Body); err != nil {
			a.t.Fatalf("%s %s: decode response %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return res
}

func (a *testAPI) expect(res response, status int) {
	a.t.Helper()
	if res.Code != status {
		a.t.Fatalf("expected status %d, got %d (error: %+v)", status, res.Code, res.Body.Error)
	}
}

func (a *testAPI) signUp(email string) string {
	a.t.Helper()

	creds := map[string]string{"email": email, "password": "s3cret-pass"}
	a.expect(a.do(http.MethodPost, "/api/users/register/", "", creds), http.StatusCreated)

	res := a.do(http.MethodPost, "/api/token/", "", creds)
	a.expect(res, http.StatusOK)

	var tokens service.TokenPair
	if err := json.Unmarshal(res.Body.Data, &tokens); err != nil {
		a.t.Fatalf("decode tokens: %v", err)
	}
	if tokens.AccessToken == "" || tokens.RefreshToken == "" {
		a.t.Fatalf("expected token pair, got %+v", tokens)
	}
	return tokens.AccessToken
}

type habitResponse struct {
	ID            int64   `json:"id"`
	OwnerID       int64   `json:"owner_id"`
	Time          string  `json:"time"`
	Action        string  `json:"action"`
	RelatedHabit  *int64  `json:"related_habit"`
	Reward        *string `json:"reward"`
	Frequency     int     `json:"frequency"`
	ExecutionTime int     `json:"execution_time"`
}

func (a *testAPI) createHabit(token string, body map[string]any) habitResponse {
	a.t.Helper()

	res := a.do(http.MethodPost, "/api/habits/", token, body)
	a.expect(res, http.StatusCreated)

	var h habitResponse
	if err := json.Unmarshal(res.Body.Data, &h); err != nil {
		a.t.Fatalf("decode habit: %v", err)
	}
	return h
}

func bathHabit() map[string]any {
	return map[string]any{
		"place":          "home",
		"time":           "20:00",
		"action":         "bath",
		"frequency":      1,
		"execution_time": 10,
		"is_pleasant":    true,
	}
}

func TestHabitLifecycle(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signUp("a@x.com")
	bob := api.signUp("b@x.com")

	h := api.createHabit(alice, bathHabit())
	if h.Time != "20:00:00" || h.Action != "bath" {
		t.Errorf("unexpected habit %+v", h)
	}
	path := fmt.Sprintf("/api/habits/%d/", h.ID)

	api.expect(api.do(http.MethodGet, path, bob, nil), http.StatusForbidden)
	api.expect(api.do(http.MethodPatch, path, bob, map[string]any{"action": "UPD"}), http.StatusForbidden)
	api.expect(api.do(http.MethodDelete, path, bob, nil), http.StatusForbidden)

	api.expect(api.do(http.MethodGet, path, alice, nil), http.StatusOK)
	res := api.do(http.MethodPatch, path, alice, map[string]any{"action": "UPD"})
	api.expect(res, http.StatusOK)
	var updated habitResponse
	if err := json.Unmarshal(res.Body.Data, &updated); err != nil {
		t.Fatalf("decode habit: %v", err)
	}
	if updated.Action != "UPD" || updated.Frequency != 1 {
		t.Errorf("expected partial update, got %+v", updated)
	}

	api.expect(api.do(http.MethodDelete, path, alice, nil), http.StatusNoContent)
	api.expect(api.do(http.MethodGet, path, alice, nil), http.StatusNotFound)
	api.expect(api.do(http.MethodGet, path, bob, nil), http.StatusNotFound)
}

func TestHabitCreate_Validation(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("a@x.com")
	nice := api.createHabit(token, bathHabit())

	cases := []struct {
		name  string
		patch map[string]any
		field string
	}{
		{"frequency 0", map[string]any{"frequency": 0, "is_pleasant": false}, "frequency"},
		{"frequency 8", map[string]any{"frequency": 8}, "frequency"},
		{"execution time -1", map[string]any{"execution_time": -1}, "execution_time"},
		{"execution time 121", map[string]any{"execution_time": 121}, "execution_time"},
		{"missing time", map[string]any{"time": nil}, "time"},
		{"reward and related", map[string]any{"is_pleasant": false, "reward": "cake", "related_habit": nice.ID}, "reward"},
		{"pleasant with reward", map[string]any{"reward": "cake"}, "is_pleasant"},
		{"pleasant with related", map[string]any{"related_habit": nice.ID}, "is_pleasant"},
		{"unknown related", map[string]any{"is_pleasant": false, "related_habit": 999}, "related_habit"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body := bathHabit()
			for k, v := range tc.patch {
				if v == nil {
					delete(body, k)
					continue
				}
				body[k] = v
			}

			res := api.do(http.MethodPost, "/api/habits/", token, body)
			if res.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", res.Code)
			}
			if res.Body.Error == nil || len(res.Body.Error.Details) == 0 {
				t.Fatalf("expected field details, got %+v", res.Body.Error)
			}
			if got := res.Body.Error.Details[0].Field; got != tc.field {
				t.Errorf("expected error on %q, got %q", tc.field, got)
			}
		})
	}

	for _, freq := range []int{1, 7} {
		body := bathHabit()
		body["frequency"] = freq
		api.createHabit(token, body)
	}
}

func TestHabitUpdate_ClearsNullableFields(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("a@x.com")
	nice := api.createHabit(token, bathHabit())

	body := bathHabit()
	body["is_pleasant"] = false
	body["reward"] = "cake"
	h := api.createHabit(token, body)
	path := fmt.Sprintf("/api/habits/%d/", h.ID)

	api.expect(api.do(http.MethodPatch, path, token, map[string]any{"related_habit": nice.ID}), http.StatusBadRequest)

	res := api.do(http.MethodPatch, path, token, map[string]any{"related_habit": nice.ID, "reward": nil})
	api.expect(res, http.StatusOK)
	var updated habitResponse
	if err := json.Unmarshal(res.Body.Data, &updated); err != nil {
		t.Fatalf("decode habit: %v", err)
	}
	if updated.Reward != nil || updated.RelatedHabit == nil || *updated.RelatedHabit != nice.ID {
		t.Errorf("expected reward cleared and related habit set, got %+v", updated)
	}

	api.expect(api.do(http.MethodPatch, path, token, map[string]any{"frequency": nil}), http.StatusBadRequest)
}

func TestHabitUpdate_ReferencedHabitStaysPleasant(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("a@x.com")
	nice := api.createHabit(token, bathHabit())

	body := bathHabit()
	body["is_pleasant"] = false
	body["related_habit"] = nice.ID
	api.createHabit(token, body)

	path := fmt.Sprintf("/api/habits/%d/", nice.ID)
	res := api.do(http.MethodPatch, path, token, map[string]any{"is_pleasant": false})
	api.expect(res, http.StatusBadRequest)
	if res.Body.Error == nil || !strings.Contains(fmt.Sprint(res.Body.Error.Details), "is_pleasant") {
		t.Errorf("expected is_pleasant in error details, got %+v", res.Body.Error)
	}
}

func TestHabitListings(t *testing.T) {
	api := newTestAPI(t)
	alice := api.signUp("a@x.com")
	bob := api.signUp("b@x.com")

	for i := 0; i < 3; i++ {
		body := bathHabit()
		body["is_public"] = i > 0
		api.createHabit(alice, body)
	}
	public := bathHabit()
	public["is_public"] = true
	api.createHabit(bob, public)

	res := api.do(http.MethodGet, "/api/habits/?page_size=2", alice, nil)
	api.expect(res, http.StatusOK)
	if res.Body.Meta == nil || res.Body.Meta.Count != 3 || !res.Body.Meta.HasNext {
		t.Errorf("expected 3 own habits across pages, got %+v", res.Body.Meta)
	}

	res = api.do(http.MethodGet, "/api/habits/", bob, nil)
	api.expect(res, http.StatusOK)
	if res.Body.Meta.Count != 1 {
		t.Errorf("expected 1 habit for bob, got %d", res.Body.Meta.Count)
	}

	res = api.do(http.MethodGet, "/api/habits/public/", bob, nil)
	api.expect(res, http.StatusOK)
	if res.Body.Meta.Count != 3 || res.Body.Meta.HasNext {
		t.Errorf("expected 3 public habits, got %+v", res.Body.Meta)
	}
}

func TestAuthRequired(t *testing.T) {
	api := newTestAPI(t)

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/habits/"},
		{http.MethodPost, "/api/habits/"},
		{http.MethodGet, "/api/habits/public/"},
		{http.MethodGet, "/api/habits/1/"},
		{http.MethodGet, "/api/users/me/"},
		{http.MethodDelete, "/api/users/me/"},
	} {
		res := api.do(tc.method, tc.path, "", nil)
		if res.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", tc.method, tc.path, res.Code)
		}
	}

	res := api.do(http.MethodGet, "/api/habits/", "not-a-jwt", nil)
	api.expect(res, http.StatusUnauthorized)
}

func TestRegisterAndTokens(t *testing.T) {
	api := newTestAPI(t)
	api.signUp("a@x.com")

	res := api.do(http.MethodPost, "/api/users/register/", "", map[string]string{"email": "A@x.com", "password": "other"})
	api.expect(res, http.StatusBadRequest)
	if res.Body.Error.Details[0].Field != "email" {
		t.Errorf("expected email error, got %+v", res.Body.Error)
	}

	api.expect(api.do(http.MethodPost, "/api/users/register/", "", map[string]string{"email": "nope"}), http.StatusBadRequest)
	api.expect(api.do(http.MethodPost, "/api/users/register/", "", "{"), http.StatusBadRequest)

	api.expect(api.do(http.MethodPost, "/api/token/", "", map[string]string{"email": "a@x.com", "password": "wrong"}), http.StatusUnauthorized)
	api.expect(api.do(http.MethodPost, "/api/token/", "", map[string]string{"email": "z@x.com", "password": "wrong"}), http.StatusUnauthorized)

	res = api.do(http.MethodPost, "/api/token/", "", map[string]string{"email": "a@x.com", "password": "s3cret-pass"})
	api.expect(res, http.StatusOK)
	var tokens service.TokenPair
	if err := json.Unmarshal(res.Body.Data, &tokens); err != nil {
		t.Fatalf("decode tokens: %v", err)
	}

	api.expect(api.do(http.MethodPost, "/api/token/refresh/", "", map[string]string{"refresh_token": tokens.RefreshToken}), http.StatusOK)
	api.expect(api.do(http.MethodPost, "/api/token/refresh/", "", map[string]string{"refresh_token": tokens.AccessToken}), http.StatusUnauthorized)
	api.expect(api.do(http.MethodGet, "/api/habits/", tokens.RefreshToken, nil), http.StatusUnauthorized)
}

func TestMe(t *testing.T) {
	api := newTestAPI(t)
	token := api.signUp("a@x.com")
	other := api.signUp("b@x.com")

	res := api.do(http.MethodPatch, "/api/users/me/", token, map[string]any{"first_name": "Ann", "telegram_chat_id": 42})
	api.expect(res, http.StatusOK)
	if !strings.Contains(string(res.Body.Data), `"telegram_chat_id":42`) || strings.Contains(string(res.Body.Data), "password") {
		t.Errorf("unexpected profile %s", res.Body.Data)
	}

	res = api.do(http.MethodPatch, "/api/users/me/", other, map[string]any{"telegram_chat_id": 42})
	api.expect(res, http.StatusBadRequest)
	if res.Body.Error.Details[0].Field != "telegram_chat_id" {
		t.Errorf("expected telegram_chat_id error, got %+v", res.Body.Error)
	}

	res = api.do(http.MethodPatch, "/api/users/me/", token, map[string]any{"telegram_chat_id": nil})
	api.expect(res, http.StatusOK)
	if !strings.Contains(string(res.Body.Data), `"telegram_chat_id":null`) {
		t.Errorf("expected chat id cleared, got %s", res.Body.Data)
	}

	api.expect(api.do(http.MethodDelete, "/api/users/me/", token, nil), http.StatusNoContent)
	api.expect(api.do(http.MethodGet, "/api/users/me/", token, nil), http.StatusUnauthorized)
}

func TestOAuthDisabled(t *testing.T) {
	api := newTestAPI(t)

	api.expect(api.do(http.MethodGet, "/api/auth/google/", "", nil), http.StatusNotFound)
	api.expect(api.do(http.MethodGet, "/api/auth/github/callback/?code=x&state=y", "", nil), http.StatusNotFound)
}

func TestHealth(t *testing.T) {
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	api.e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get(echo.HeaderXRequestID) == "" {
		t.Error("expected request id header")
	}
}
