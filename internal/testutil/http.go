package testutil

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dalemusser/taskhub/internal/app/system/auth"
	"github.com/dalemusser/taskhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// TestUser represents user data for testing HTTP handlers.
type TestUser struct {
	ID               string
	Name             string
	Email            string
	Role             string
	OrganizationID   string
	OrganizationName string
}

// FromModel builds a TestUser from a stored user.
func FromModel(u models.User) TestUser {
	tu := TestUser{ID: u.ID.Hex(), Name: u.FullName, Email: u.Email, Role: u.Role}
	if u.OrganizationID != nil {
		tu.OrganizationID = u.OrganizationID.Hex()
	}
	return tu
}

func AdminUser(orgID primitive.ObjectID) TestUser {
	return TestUser{
		ID:             primitive.NewObjectID().Hex(),
		Name:           "Test Admin",
		Email:          "admin@test.com",
		Role:           models.RoleAdmin,
		OrganizationID: orgID.Hex(),
	}
}

func ManagerUser(orgID primitive.ObjectID) TestUser {
	return TestUser{
		ID:             primitive.NewObjectID().Hex(),
		Name:           "Test Manager",
		Email:          "manager@test.com",
		Role:           models.RoleManager,
		OrganizationID: orgID.Hex(),
	}
}

func EmployeeUser(orgID primitive.ObjectID) TestUser {
	return TestUser{
		ID:             primitive.NewObjectID().Hex(),
		Name:           "Test Employee",
		Email:          "employee@test.com",
		Role:           models.RoleEmployee,
		OrganizationID: orgID.Hex(),
	}
}

// WithUser adds a user to the request context, bypassing the session middleware.
func WithUser(r *http.Request, user TestUser) *http.Request {
	return auth.WithTestUser(r, &auth.SessionUser{
		ID:               user.ID,
		Name:             user.Name,
		Email:            user.Email,
		Role:             user.Role,
		OrganizationID:   user.OrganizationID,
		OrganizationName: user.OrganizationName,
	})
}

func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}

// NewAuthenticatedRequest creates an HTTP request with a user in context.
func NewAuthenticatedRequest(method, target string, user TestUser) *http.Request {
	return WithUser(httptest.NewRequest(method, target, nil), user)
}

// NewJSONRequest creates a request with body encoded as JSON. A zero
// TestUser leaves the request anonymous.
func NewJSONRequest(t *testing.T, method, target string, body any, user TestUser) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user.ID == "" {
		return req
	}
	return WithUser(req, user)
}

// ResponseRecorder wraps httptest.ResponseRecorder with helper methods.
type ResponseRecorder struct {
	*httptest.ResponseRecorder
}

func NewRecorder() *ResponseRecorder {
	return &ResponseRecorder{httptest.NewRecorder()}
}

func (r *ResponseRecorder) AssertStatus(t interface{ Errorf(string, ...any) }, expected int) {
	if r.Code != expected {
		t.Errorf("status code: got %d, want %d (body %q)", r.Code, expected, r.Body.String())
	}
}

func (r *ResponseRecorder) AssertContains(t interface{ Errorf(string, ...any) }, expected string) {
	if !strings.Contains(r.Body.String(), expected) {
		t.Errorf("response body does not contain %q", expected)
	}
}

// DecodeJSON decodes the response body into v.
func (r *ResponseRecorder) DecodeJSON(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(r.Body.Bytes(), v); err != nil {
		t.Fatalf("decode response %q: %v", r.Body.String(), err)
	}
}
