package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/transflow/tms-backend/internal/core/domain"
)

type stubAuthService struct {
	registerFn func(ctx context.Context, username, password, email, role, tenantID string) (*domain.User, error)
	loginFn    func(ctx context.Context, username, password string) (string, *domain.User, error)
}

func (s *stubAuthService) Register(ctx context.Context, username, password, email, role, tenantID string) (*domain.User, error) {
	return s.registerFn(ctx, username, password, email, role, tenantID)
}

func (s *stubAuthService) Login(ctx context.Context, username, password string) (string, *domain.User, error) {
	return s.loginFn(ctx, username, password)
}

func newAuthContext(method, body string) (echo.Context, *httptest.ResponseRecorder) {
	e := echo.New()
	e.Validator = NewValidator()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func TestAuthHandler_Register_Success(t *testing.T) {
	stub := &stubAuthService{
		registerFn: func(_ context.Context, username, _, _, role, tenantID string) (*domain.User, error) {
			if username != "alice" || role != "dispatcher" || tenantID != "t1" {
				t.Fatalf("unexpected args: %s %s %s", username, role, tenantID)
			}
			return &domain.User{ID: "u1", Username: username, Role: role, TenantID: tenantID}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newAuthContext(http.MethodPost,
		`{"username":"alice","password":"s3cretpass","email":"alice@acme.test","role":"dispatcher","tenant_id":"t1"}`)

	if err := h.Register(c); err != nil {
		t.Fatalf("register: %v", err)
	}
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rec.Code)
	}

	var resp registerResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Username != "alice" || resp.TenantID != "t1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_Register_ValidationRejects(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		registerFn: func(context.Context, string, string, string, string, string) (*domain.User, error) {
			t.Fatal("service must not be reached")
			return nil, nil
		},
	})

	cases := []string{
		`{"username":"al","password":"s3cretpass","email":"a@b.c","role":"dispatcher","tenant_id":"t1"}`, // username too short
		`{"username":"alice","password":"short","email":"a@b.c","role":"dispatcher","tenant_id":"t1"}`,   // password too short
		`{"username":"alice","password":"s3cretpass","email":"nope","role":"dispatcher","tenant_id":"t1"}`,
		`{"username":"alice","password":"s3cretpass","email":"a@b.c","role":"superuser","tenant_id":"t1"}`,
		`{"username":"alice","password":"s3cretpass","email":"a@b.c","role":"dispatcher"}`, // no tenant
	}
	for i, body := range cases {
		c, _ := newAuthContext(http.MethodPost, body)
		err := h.Register(c)
		he, ok := err.(*echo.HTTPError)
		if !ok || he.Code != http.StatusBadRequest {
			t.Fatalf("case %d: expected 400, got %v", i, err)
		}
	}
}

func TestAuthHandler_Login_Success(t *testing.T) {
	stub := &stubAuthService{
		loginFn: func(_ context.Context, username, password string) (string, *domain.User, error) {
			if username != "alice" || password != "s3cretpass" {
				t.Fatalf("unexpected args: %s", username)
			}
			return "tok123", &domain.User{Username: "alice", Role: "finance", TenantID: "t1"}, nil
		},
	}
	h := NewAuthHandler(stub)

	c, rec := newAuthContext(http.MethodPost, `{"username":"alice","password":"s3cretpass"}`)
	if err := h.Login(c); err != nil {
		t.Fatalf("login: %v", err)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token != "tok123" || resp.TenantID != "t1" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestAuthHandler_Login_InvalidCredentials(t *testing.T) {
	h := NewAuthHandler(&stubAuthService{
		loginFn: func(context.Context, string, string) (string, *domain.User, error) {
			return "", nil, domain.ErrInvalidCredentials
		},
	})

	c, _ := newAuthContext(http.MethodPost, `{"username":"alice","password":"wrong"}`)
	if err := h.Login(c); err != domain.ErrInvalidCredentials {
		t.Fatalf("domain errors must flow to the error handler, got %v", err)
	}
}
