package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

func newTestContext(method, target string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestRequestID_GeneratesNew(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/")

	handler := func(c echo.Context) error {
		rid, _ := c.Get("request_id").(string)
		if rid == "" {
			t.Error("expected request_id to be generated")
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("expected X-Request-ID response header")
	}
}

func TestRequestID_PreservesExisting(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/")
	c.Request().Header.Set(RequestIDHeader, "my-custom-id")

	handler := func(c echo.Context) error {
		rid, _ := c.Get("request_id").(string)
		if rid != "my-custom-id" {
			t.Errorf("expected my-custom-id, got %s", rid)
		}
		return c.String(http.StatusOK, "ok")
	}

	if err := RequestID()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "my-custom-id" {
		t.Errorf("expected my-custom-id echoed, got %s", got)
	}
}

func TestRecovery_CatchesPanic(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/")
	logger := zerolog.New(os.Stderr)

	handler := func(c echo.Context) error {
		panic("boom")
	}

	if err := Recovery(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"error"`) {
		t.Errorf("expected plain error body, got %s", rec.Body.String())
	}
}

func TestRecovery_PassesThrough(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/")
	logger := zerolog.New(os.Stderr)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := Recovery(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLogger_PropagatesError(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/")
	logger := zerolog.Nop()

	want := echo.NewHTTPError(http.StatusTeapot, "nope")
	handler := func(c echo.Context) error {
		return want
	}

	err := Logger(logger)(handler)(c)
	if err != want {
		t.Errorf("expected handler error to propagate, got %v", err)
	}
}

func TestLogger_MasksIdentifierPath(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/patients/K7M3X", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetPath("/api/patients/:identifier")
	c.SetParamNames("identifier")
	c.SetParamValues("K7M3X")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "K7M3X") {
		t.Errorf("identifier leaked into the request log: %s", out)
	}
	if !strings.Contains(out, "/api/patients/:identifier") {
		t.Errorf("expected route template in log, got %s", out)
	}
}

func TestLogger_IncludesTenant(t *testing.T) {
	c, _ := newTestContext(http.MethodGet, "/api/v1/patients")
	c.Set("tenant_id", "mercy-general")

	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}
	if err := Logger(logger)(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "mercy-general") {
		t.Errorf("expected tenant in log, got %s", buf.String())
	}
}

func TestSecurityHeaders(t *testing.T) {
	c, rec := newTestContext(http.MethodGet, "/")

	handler := func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	}

	if err := SecurityHeaders()(handler)(c); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	checks := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Cache-Control":          "no-store",
	}
	for k, want := range checks {
		if got := rec.Header().Get(k); got != want {
			t.Errorf("header %s: expected %q, got %q", k, want, got)
		}
	}
}
