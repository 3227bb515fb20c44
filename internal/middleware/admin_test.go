package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestAdminAuth(t *testing.T) {
	tests := []struct {
		name       string
		token      string
		authHeader string
		wantStatus int
	}{
		{"valid token", "operator-secret", "Bearer operator-secret", http.StatusOK},
		{"wrong token", "operator-secret", "Bearer guess", http.StatusUnauthorized},
		{"missing header", "operator-secret", "", http.StatusUnauthorized},
		{"raw token without scheme matches", "operator-secret", "operator-secret", http.StatusOK},
		{"unconfigured token rejects everything", "", "Bearer anything", http.StatusUnauthorized},
		{"unconfigured token rejects empty header", "", "", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := AdminAuth(tt.token)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest("GET", "/admin/billing/dead-letters", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("expected %d, got %d", tt.wantStatus, rec.Code)
			}
			if tt.wantStatus == http.StatusUnauthorized && !strings.Contains(rec.Body.String(), "UNAUTHORIZED") {
				t.Errorf("unexpected rejection body: %s", rec.Body.String())
			}
		})
	}
}
