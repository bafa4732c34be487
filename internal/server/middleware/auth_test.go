package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"presensi-praktikum/internal/security"
)

func newAuthApp(t *testing.T, verifier Verifier, disabled bool) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Get("/whoami", Auth(verifier, disabled), func(c *fiber.Ctx) error {
		return c.SendString(UserID(c))
	})
	return app
}

func TestAuth_ValidToken(t *testing.T) {
	verifier, err := security.NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	token, err := security.MintTestToken("user-7", 15*time.Minute)
	if err != nil {
		t.Fatalf("MintTestToken: %v", err)
	}
	app := newAuthApp(t, verifier, false)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	body := make([]byte, 32)
	n, _ := resp.Body.Read(body)
	if got := string(body[:n]); got != "user-7" {
		t.Errorf("user = %q, want user-7", got)
	}
}

func TestAuth_MissingAndInvalidToken(t *testing.T) {
	verifier, err := security.NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	app := newAuthApp(t, verifier, false)

	for _, header := range []string{"", "Bearer ", "Bearer garbage", "Basic abc"} {
		req := httptest.NewRequest("GET", "/whoami", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("Test: %v", err)
		}
		if resp.StatusCode != fiber.StatusUnauthorized {
			t.Errorf("header %q: status = %d, want 401", header, resp.StatusCode)
		}
	}
}

func TestAuth_ExpiredToken(t *testing.T) {
	verifier, err := security.NewTestVerifier()
	if err != nil {
		t.Fatalf("NewTestVerifier: %v", err)
	}
	token, err := security.MintTestToken("user-7", -time.Minute)
	if err != nil {
		t.Fatalf("MintTestToken: %v", err)
	}
	app := newAuthApp(t, verifier, false)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", resp.StatusCode)
	}
}

func TestAuth_DisabledTrustsHeader(t *testing.T) {
	app := newAuthApp(t, nil, true)

	req := httptest.NewRequest("GET", "/whoami", nil)
	req.Header.Set("X-User-ID", "dev-user")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	// Without the header the request is still rejected.
	resp, err = app.Test(httptest.NewRequest("GET", "/whoami", nil))
	if err != nil {
		t.Fatalf("Test: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("status = %d, want 401 without X-User-ID", resp.StatusCode)
	}
}

func TestClientIP_Default(t *testing.T) {
	if got := ClientIP(t.Context()); got != "unknown" {
		t.Errorf("ClientIP = %q, want unknown", got)
	}
}
