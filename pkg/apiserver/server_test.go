package apiserver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acorn-io/acorn-domains/pkg/backend"
	"github.com/acorn-io/acorn-domains/pkg/model"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const (
	domainID = "2f1c7e0a-8d47-4a53-9b57-0e3f3c1d9a11"
	token    = "s3cr3t-t0ken"
)

type fakeBackend struct {
	backend.Backend
	hash    string
	started []string
}

func (f *fakeBackend) CreateDomain(_ context.Context, req model.CreateDomainRequest) (model.DomainResponse, error) {
	if req.Domain == "bad..host" {
		return model.DomainResponse{}, &backend.InvalidDomainError{Errors: []string{"domain must not contain empty labels"}}
	}
	cfg := model.DomainConfiguration{ID: domainID, Domain: req.Domain, Status: model.DomainStatusPending}
	return model.DomainResponse{DomainConfiguration: cfg, Hostname: cfg.Hostname(), Token: token}, nil
}

func (f *fakeBackend) GetDomain(_ context.Context, id string) (model.DomainConfiguration, error) {
	if id != domainID {
		return model.DomainConfiguration{}, fmt.Errorf("%w: %s", backend.ErrNotFound, id)
	}
	return model.DomainConfiguration{ID: domainID, Domain: "acme.io", Subdomain: "www", Status: model.DomainStatusPending}, nil
}

func (f *fakeBackend) GetTokenHash(ctx context.Context, id string) (string, error) {
	if _, err := f.GetDomain(ctx, id); err != nil {
		return "", err
	}
	return f.hash, nil
}

func (f *fakeBackend) Instructions(context.Context, string) (model.InstructionsResponse, error) {
	return model.InstructionsResponse{Hostname: "www.acme.io", RecordType: model.RecordTypeCname}, nil
}

func (f *fakeBackend) ApplyRecord(context.Context, string) (model.RecordResponse, error) {
	return model.RecordResponse{}, backend.ErrPublisherDisabled
}

func (f *fakeBackend) ListRecords(context.Context, string) ([]model.RecordResponse, error) {
	return []model.RecordResponse{}, nil
}

func (f *fakeBackend) Validate(context.Context, string) (model.ValidationResponse, error) {
	return model.ValidationResponse{Hostname: "www.acme.io", IsValid: true, RecordType: model.RecordTypeCname}, nil
}

func (f *fakeBackend) StartVerification(_ context.Context, id string) (model.VerificationResponse, error) {
	f.started = append(f.started, id)
	return model.VerificationResponse{DomainID: id, IsRunning: true, MaxRetries: 5}, nil
}

func (f *fakeBackend) StopVerification(_ context.Context, id string) (model.VerificationResponse, error) {
	return model.VerificationResponse{DomainID: id, MaxRetries: 5}, nil
}

func (f *fakeBackend) VerificationStatus(_ context.Context, id string) (model.VerificationResponse, error) {
	return model.VerificationResponse{DomainID: id, MaxRetries: 5, Status: model.DomainStatusPending}, nil
}

func newTestRouter(t *testing.T) (http.Handler, *fakeBackend) {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	b := &fakeBackend{hash: string(hash)}
	return newRouter(logrus.WithField("test", t.Name()), b), b
}

func do(h http.Handler, method, path, auth string, body []byte) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if auth != "" {
		req.Header.Set("Authorization", "Bearer "+auth)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestPublicRoutes(t *testing.T) {
	h, _ := newTestRouter(t)

	for _, path := range []string{"/", "/healthz", "/metrics"} {
		if rec := do(h, http.MethodGet, path, "", nil); rec.Code != http.StatusOK {
			t.Errorf("GET %s = %d", path, rec.Code)
		}
	}
	if rec := do(h, http.MethodGet, "/nope", "", nil); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope = %d", rec.Code)
	}
}

func TestCreateDomainHandler(t *testing.T) {
	h, _ := newTestRouter(t)

	tests := []struct {
		name string
		body string
		code int
	}{
		{"created", `{"domain":"acme.io"}`, http.StatusCreated},
		{"invalid hostname", `{"domain":"bad..host"}`, http.StatusUnprocessableEntity},
		{"malformed body", `{"domain":`, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodPost, "/v1/domains", "", []byte(tt.body))
			if rec.Code != tt.code {
				t.Fatalf("code = %d, want %d: %s", rec.Code, tt.code, rec.Body.String())
			}
		})
	}

	rec := do(h, http.MethodPost, "/v1/domains", "", []byte(`{"domain":"acme.io"}`))
	var resp model.DomainResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Token != token || resp.ID != domainID {
		t.Errorf("resp = %+v", resp)
	}

	rec = do(h, http.MethodPost, "/v1/domains", "", []byte(`{"domain":"bad..host"}`))
	var errResp model.ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &errResp); err != nil {
		t.Fatal(err)
	}
	if errs, ok := errResp.Data.([]interface{}); !ok || len(errs) != 1 {
		t.Errorf("error data = %#v, want the list of hostname errors", errResp.Data)
	}
}

func TestTokenAuth(t *testing.T) {
	h, _ := newTestRouter(t)
	path := "/v1/domains/" + domainID

	tests := []struct {
		name string
		path string
		auth string
		code int
	}{
		{"no token", path, "", http.StatusForbidden},
		{"wrong token", path, "guess", http.StatusForbidden},
		{"unknown domain", "/v1/domains/other", token, http.StatusForbidden},
		{"valid token", path, token, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := do(h, http.MethodGet, tt.path, tt.auth, nil); rec.Code != tt.code {
				t.Errorf("code = %d, want %d", rec.Code, tt.code)
			}
		})
	}
}

func TestDomainRoutes(t *testing.T) {
	h, b := newTestRouter(t)
	base := "/v1/domains/" + domainID

	tests := []struct {
		method string
		path   string
		code   int
	}{
		{http.MethodGet, base, http.StatusOK},
		{http.MethodGet, base + "/instructions", http.StatusOK},
		{http.MethodPost, base + "/records", http.StatusNotImplemented},
		{http.MethodGet, base + "/records", http.StatusOK},
		{http.MethodGet, base + "/validation", http.StatusOK},
		{http.MethodPost, base + "/verification", http.StatusAccepted},
		{http.MethodGet, base + "/verification", http.StatusOK},
		{http.MethodDelete, base + "/verification", http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := do(h, tt.method, tt.path, token, nil)
			if rec.Code != tt.code {
				t.Errorf("code = %d, want %d: %s", rec.Code, tt.code, rec.Body.String())
			}
		})
	}

	if len(b.started) != 1 || b.started[0] != domainID {
		t.Errorf("started = %v", b.started)
	}

	rec := do(h, http.MethodGet, base, token, nil)
	var resp model.DomainResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Hostname != "www.acme.io" || resp.Token != "" {
		t.Errorf("resp = %+v", resp)
	}
}

func TestLoggingMiddleware(t *testing.T) {
	log := logrus.WithField("test", t.Name())

	t.Run("request id", func(t *testing.T) {
		h := loggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Header().Get(requestIDHeader) == "" {
			t.Error("expected a generated request id")
		}

		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "abc")
		rec = httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if got := rec.Header().Get(requestIDHeader); got != "abc" {
			t.Errorf("request id = %q, want the caller's", got)
		}
	})

	t.Run("panic", func(t *testing.T) {
		h := loggingMiddleware(log)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusInternalServerError {
			t.Errorf("code = %d", rec.Code)
		}
	})
}

func TestRealIP(t *testing.T) {
	tests := []struct {
		name   string
		header string
		value  string
		want   string
	}{
		{"forwarded", "X-Forwarded-For", "198.51.100.7, 10.0.0.1", "198.51.100.7"},
		{"real ip", "X-Real-IP", "198.51.100.8", "198.51.100.8"},
		{"remote addr", "", "", "192.0.2.1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set(tt.header, tt.value)
			}
			if got := realIP(req); got != tt.want {
				t.Errorf("realIP = %q, want %q", got, tt.want)
			}
		})
	}
}
