package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/openlearn/auth-service/internal/api"
	"github.com/openlearn/auth-service/internal/model"
	"github.com/openlearn/auth-service/internal/repository"
	"github.com/openlearn/auth-service/internal/token"
)

type staticLoader struct {
	users map[uint64]model.User
}

func (l staticLoader) Principal(_ context.Context, id uint64) (model.User, error) {
	u, ok := l.users[id]
	if !ok {
		return model.User{}, repository.ErrUserNotFound
	}
	return u, nil
}

func newTestCodec(accessTTL time.Duration) *token.Codec {
	return token.NewCodec(token.Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
		Issuer:        "auth-test",
		Audience:      "app-test",
		AccessTTL:     accessTTL,
		RefreshTTL:    time.Hour,
	})
}

// invoke runs the middleware chain against a GET request with the given
// Authorization header and returns the recorder plus the envelope.
func invoke(t *testing.T, mw echo.MiddlewareFunc, authHeader string, next echo.HandlerFunc) (*httptest.ResponseRecorder, api.Envelope) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/v1/auth/me", nil)
	if authHeader != "" {
		req.Header.Set(echo.HeaderAuthorization, authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	if next == nil {
		next = func(c echo.Context) error { return c.NoContent(http.StatusOK) }
	}
	if err := mw(next)(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}

	var env api.Envelope
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &env)
	}
	return rec, env
}

func TestAuthenticateHappyPath(t *testing.T) {
	codec := newTestCodec(time.Minute)
	users := staticLoader{users: map[uint64]model.User{
		7: {ID: 7, Email: "alice@example.com", Role: model.RoleStudent, Provider: model.ProviderLocal},
	}}
	issued, err := codec.IssueAccess(7, "alice@example.com", model.RoleStudent)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	var got Principal
	next := func(c echo.Context) error {
		p, ok := CurrentPrincipal(c)
		if !ok {
			t.Fatal("principal missing from context")
		}
		got = p
		return c.NoContent(http.StatusOK)
	}
	rec, _ := invoke(t, Authenticate(codec, users), "Bearer "+issued.Token, next)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if got.ID != 7 || got.Email != "alice@example.com" || got.Role != model.RoleStudent {
		t.Fatalf("principal = %+v", got)
	}
}

func TestAuthenticateFailureCodes(t *testing.T) {
	codec := newTestCodec(time.Minute)
	users := staticLoader{users: map[uint64]model.User{}}

	expiredCodec := newTestCodec(-time.Minute)
	expired, _ := expiredCodec.IssueAccess(7, "a@b.io", model.RoleStudent)

	valid, _ := codec.IssueAccess(7, "a@b.io", model.RoleStudent) // user 7 not in loader

	cases := []struct {
		name     string
		header   string
		wantCode string
	}{
		{"missing header", "", api.CodeUnauthorized},
		{"not bearer", "Basic abc", api.CodeUnauthorized},
		{"garbage token", "Bearer garbage", api.CodeTokenInvalid},
		{"expired token", "Bearer " + expired.Token, api.CodeTokenExpired},
		{"deleted principal", "Bearer " + valid.Token, api.CodeUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, env := invoke(t, Authenticate(codec, users), tc.header, nil)
			if rec.Code != http.StatusUnauthorized {
				t.Fatalf("status = %d", rec.Code)
			}
			if env.Code != tc.wantCode {
				t.Fatalf("code = %q, want %q", env.Code, tc.wantCode)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	e := echo.New()

	run := func(p *Principal, roles ...string) (*httptest.ResponseRecorder, api.Envelope) {
		req := httptest.NewRequest(http.MethodGet, "/v1/admin", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if p != nil {
			c.Set(principalKey, *p)
		}
		next := func(c echo.Context) error { return c.NoContent(http.StatusOK) }
		if err := RequireRole(roles...)(next)(c); err != nil {
			t.Fatalf("middleware error: %v", err)
		}
		var env api.Envelope
		if rec.Body.Len() > 0 {
			_ = json.Unmarshal(rec.Body.Bytes(), &env)
		}
		return rec, env
	}

	t.Run("allowed role", func(t *testing.T) {
		rec, _ := run(&Principal{ID: 1, Role: model.RoleAdmin}, model.RoleAdmin)
		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d", rec.Code)
		}
	})

	t.Run("wrong role is forbidden not unauthorized", func(t *testing.T) {
		rec, env := run(&Principal{ID: 1, Role: model.RoleStudent}, model.RoleAdmin)
		if rec.Code != http.StatusForbidden {
			t.Fatalf("status = %d", rec.Code)
		}
		if env.Code != api.CodeForbidden {
			t.Fatalf("code = %q", env.Code)
		}
	})

	t.Run("no principal is unauthorized", func(t *testing.T) {
		rec, env := run(nil, model.RoleAdmin)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d", rec.Code)
		}
		if env.Code != api.CodeUnauthorized {
			t.Fatalf("code = %q", env.Code)
		}
	})
}
