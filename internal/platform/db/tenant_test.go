package db

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newTenantCtx(target string) echo.Context {
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec)
}

func TestExtractTenantID_FromHeader(t *testing.T) {
	c := newTenantCtx("/")
	c.Request().Header.Set("X-Tenant-ID", "hospital_abc")

	tid := extractTenantID(c, "default")
	if tid != "hospital_abc" {
		t.Errorf("expected hospital_abc, got %s", tid)
	}
}

func TestExtractTenantID_FromQuery(t *testing.T) {
	c := newTenantCtx("/?tenant_id=clinic_xyz")

	tid := extractTenantID(c, "default")
	if tid != "clinic_xyz" {
		t.Errorf("expected clinic_xyz, got %s", tid)
	}
}

func TestExtractTenantID_Default(t *testing.T) {
	c := newTenantCtx("/")

	tid := extractTenantID(c, "default")
	if tid != "default" {
		t.Errorf("expected default, got %s", tid)
	}
}

func TestExtractTenantID_JWTPriority(t *testing.T) {
	c := newTenantCtx("/?tenant_id=query")
	c.Request().Header.Set("X-Tenant-ID", "header")
	c.Set("jwt_tenant_id", "jwt")

	tid := extractTenantID(c, "default")
	if tid != "jwt" {
		t.Errorf("expected jwt (highest priority), got %s", tid)
	}
}

func TestTenantIDPattern(t *testing.T) {
	valid := []string{"abc", "hospital_1", "tenant_abc_123", "A1B2"}
	for _, v := range valid {
		if !tenantIDPattern.MatchString(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}

	invalid := []string{"", "a-b", "a b", "x;DROP TABLE patient", "tenant.1"}
	for _, v := range invalid {
		if tenantIDPattern.MatchString(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestCreateTenantSchema_InvalidID(t *testing.T) {
	err := CreateTenantSchema(context.Background(), nil, "bad-id;", "")
	if err == nil {
		t.Error("expected error for invalid tenant id")
	}
}

func TestConnFromContext_Nil(t *testing.T) {
	if ConnFromContext(context.Background()) != nil {
		t.Error("expected nil connection for empty context")
	}
}

func TestTenantFromContext(t *testing.T) {
	ctx := context.WithValue(context.Background(), TenantIDKey, "mercy_general")
	if got := TenantFromContext(ctx); got != "mercy_general" {
		t.Errorf("expected mercy_general, got %s", got)
	}
	if got := TenantFromContext(context.Background()); got != "" {
		t.Errorf("expected empty tenant, got %s", got)
	}
}

func TestTxFromContext_Nil(t *testing.T) {
	if TxFromContext(context.Background()) != nil {
		t.Error("expected nil tx for empty context")
	}
}

func TestTxFromContext_WrongType(t *testing.T) {
	ctx := context.WithValue(context.Background(), txKey, "not a tx")
	if TxFromContext(ctx) != nil {
		t.Error("expected nil tx for wrong value type")
	}
}
