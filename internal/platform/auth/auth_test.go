package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

func signToken(t *testing.T, key []byte, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	s, err := token.SignedString(key)
	if err != nil {
		t.Fatalf("signing token: %v", err)
	}
	return s
}

func newAuthContext(authHeader string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/patients", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestJWTMiddleware_MissingHeader(t *testing.T) {
	c, _ := newAuthContext("")
	mw := JWTMiddleware(JWTConfig{SigningKey: []byte("secret")})
	err := mw(func(c echo.Context) error { return nil })(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestJWTMiddleware_MalformedHeader(t *testing.T) {
	c, _ := newAuthContext("Token abc")
	mw := JWTMiddleware(JWTConfig{SigningKey: []byte("secret")})
	err := mw(func(c echo.Context) error { return nil })(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 HTTPError, got %v", err)
	}
}

func TestJWTMiddleware_ValidToken(t *testing.T) {
	key := []byte("test-secret")
	tok := signToken(t, key, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		TenantID: "clinic_a",
		Roles:    []string{"physician"},
	})

	c, _ := newAuthContext("Bearer " + tok)
	mw := JWTMiddleware(JWTConfig{SigningKey: key})

	var gotUser string
	var gotRoles []string
	err := mw(func(c echo.Context) error {
		gotUser = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != "user-42" {
		t.Errorf("expected user-42, got %q", gotUser)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "physician" {
		t.Errorf("unexpected roles: %v", gotRoles)
	}
	if c.Get("jwt_tenant_id") != "clinic_a" {
		t.Errorf("expected jwt_tenant_id clinic_a, got %v", c.Get("jwt_tenant_id"))
	}
}

func TestJWTMiddleware_ExpiredToken(t *testing.T) {
	key := []byte("test-secret")
	tok := signToken(t, key, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	})

	c, _ := newAuthContext("Bearer " + tok)
	mw := JWTMiddleware(JWTConfig{SigningKey: key})
	err := mw(func(c echo.Context) error { return nil })(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for expired token, got %v", err)
	}
}

func TestJWTMiddleware_WrongKey(t *testing.T) {
	tok := signToken(t, []byte("key-one"), Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-42",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})

	c, _ := newAuthContext("Bearer " + tok)
	mw := JWTMiddleware(JWTConfig{SigningKey: []byte("key-two")})
	err := mw(func(c echo.Context) error { return nil })(c)

	he, ok := err.(*echo.HTTPError)
	if !ok || he.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %v", err)
	}
}

func TestDevAuthMiddleware_Defaults(t *testing.T) {
	c, _ := newAuthContext("")
	mw := DevAuthMiddleware()

	var gotUser string
	var gotRoles []string
	err := mw(func(c echo.Context) error {
		gotUser = UserIDFromContext(c.Request().Context())
		gotRoles = RolesFromContext(c.Request().Context())
		return nil
	})(c)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotUser != "dev-user" {
		t.Errorf("expected dev-user, got %q", gotUser)
	}
	if len(gotRoles) != 1 || gotRoles[0] != "admin" {
		t.Errorf("unexpected roles: %v", gotRoles)
	}
	if c.Get("jwt_tenant_id") != "default" {
		t.Errorf("expected default tenant, got %v", c.Get("jwt_tenant_id"))
	}
}

func TestRequireRole(t *testing.T) {
	cases := []struct {
		name      string
		userRoles []string
		required  []string
		wantCode  int
	}{
		{"exact match", []string{"nurse"}, []string{"nurse"}, 0},
		{"admin override", []string{"admin"}, []string{"auditor"}, 0},
		{"one of several", []string{"receptionist"}, []string{"nurse", "receptionist"}, 0},
		{"missing role", []string{"receptionist"}, []string{"physician"}, http.StatusForbidden},
		{"no roles", nil, []string{"physician"}, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			key := []byte("test-secret")
			tok := signToken(t, key, Claims{
				RegisteredClaims: jwt.RegisteredClaims{
					Subject:   "u1",
					ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				},
				Roles: tc.userRoles,
			})
			c, _ := newAuthContext("Bearer " + tok)

			chain := JWTMiddleware(JWTConfig{SigningKey: key})(
				RequireRole(tc.required...)(func(c echo.Context) error { return nil }),
			)
			err := chain(c)

			if tc.wantCode == 0 {
				if err != nil {
					t.Fatalf("expected success, got %v", err)
				}
				return
			}
			he, ok := err.(*echo.HTTPError)
			if !ok || he.Code != tc.wantCode {
				t.Fatalf("expected %d, got %v", tc.wantCode, err)
			}
		})
	}
}

func TestHasClinicalRole(t *testing.T) {
	cases := []struct {
		roles []string
		want  bool
	}{
		{[]string{"admin"}, true},
		{[]string{"physician"}, true},
		{[]string{"nurse"}, true},
		{[]string{"receptionist"}, false},
		{[]string{"receptionist", "nurse"}, true},
		{nil, false},
	}
	for _, tc := range cases {
		if got := HasClinicalRole(tc.roles); got != tc.want {
			t.Errorf("HasClinicalRole(%v) = %v, want %v", tc.roles, got, tc.want)
		}
	}
}
