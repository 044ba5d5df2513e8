package console

import (
	"context"
	"errors"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
)

func TestDecodeReply(t *testing.T) {
	t.Run("server error is a transport failure", func(t *testing.T) {
		err := decodeReply(http.StatusBadGateway, []byte("upstream down"), nil, nil)
		var transport *TransportError
		if !errors.As(err, &transport) || Reason(err) != TransportMessage {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("error envelope maps to sentinel", func(t *testing.T) {
		body := []byte(`{"error":{"code":"TENANT_NOT_FOUND","message":"tenant not found"}}`)
		err := decodeReply(http.StatusNotFound, body, nil, nil)
		if !errors.Is(err, ErrTenantNotFound) || Reason(err) != "tenant not found" {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("accepted status decodes contract body", func(t *testing.T) {
		var out dto.PinVerifyResponse
		body := []byte(`{"success":false,"error":"Incorrect PIN","attempts_remaining":2}`)
		if err := decodeReply(http.StatusUnauthorized, body, &out, []int{http.StatusUnauthorized}); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if out.Success || out.Error != "Incorrect PIN" || out.AttemptsRemaining == nil || *out.AttemptsRemaining != 2 {
			t.Fatalf("unexpected body %+v", out)
		}
	})

	t.Run("unexpected status without envelope", func(t *testing.T) {
		var remote *RemoteError
		err := decodeReply(http.StatusTeapot, nil, nil, nil)
		if !errors.As(err, &remote) || remote.Status != http.StatusTeapot {
			t.Fatalf("got %v", err)
		}
	})

	t.Run("garbled body is a transport failure", func(t *testing.T) {
		var out dto.ProfileResponse
		err := decodeReply(http.StatusOK, []byte("<html>"), &out, nil)
		var transport *TransportError
		if !errors.As(err, &transport) {
			t.Fatalf("got %v", err)
		}
	})
}

func startServer(t *testing.T, app *fiber.App) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })
	return "http://" + ln.Addr().String()
}

func TestHTTPRemoteRoundTrip(t *testing.T) {
	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Get("/auth/links/:tenant/:staff", func(c *fiber.Ctx) error {
		return c.JSON(dto.ResolveResponse{
			TenantID:   "tenant-1",
			TenantName: c.Params("tenant"),
			Staff:      &dto.StaffDescriptor{ID: "staff-1", Name: "John Doe", StaffCode: c.Params("staff")},
		})
	})
	app.Post("/auth/pin/verify", func(c *fiber.Ctx) error {
		var req dto.PinVerifyRequest
		if err := c.BodyParser(&req); err != nil {
			return err
		}
		if req.PIN != "482913" {
			return c.Status(fiber.StatusLocked).JSON(dto.PinVerifyResponse{Locked: true, Error: "Account locked."})
		}
		return c.JSON(dto.PinVerifyResponse{Success: true, Session: &dto.SessionToken{AccessToken: "tok"}, RedirectTo: "/delivery"})
	})
	app.Get("/auth/profile", func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "Bearer tok" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": fiber.Map{"code": "SESSION_TERMINATED", "message": "session terminated"},
			})
		}
		return c.JSON(dto.ProfileResponse{ID: "staff-1", Role: "DELIVERY"})
	})
	app.Post("/auth/logout", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})

	remote := NewHTTPRemote(startServer(t, app), 2*time.Second, nil)
	ctx := context.Background()

	resolved, err := remote.ResolveLink(ctx, Link{Tenant: "acme", Staff: "jd01"})
	if err != nil || resolved.Staff == nil || resolved.Staff.StaffCode != "jd01" {
		t.Fatalf("resolve = %+v %v", resolved, err)
	}

	locked, err := remote.VerifyPIN(ctx, dto.PinVerifyRequest{PIN: "000000", TenantID: "tenant-1"})
	if err != nil || !locked.Locked {
		t.Fatalf("locked verify = %+v %v", locked, err)
	}
	ok, err := remote.VerifyPIN(ctx, dto.PinVerifyRequest{PIN: "482913", TenantID: "tenant-1"})
	if err != nil || !ok.Success || ok.Session.AccessToken != "tok" {
		t.Fatalf("verify = %+v %v", ok, err)
	}

	if _, err := remote.Profile(ctx, "expired"); !errors.Is(err, ErrSessionTerminated) {
		t.Fatalf("expected ErrSessionTerminated, got %v", err)
	}
	if p, err := remote.Profile(ctx, "tok"); err != nil || p.ID != "staff-1" {
		t.Fatalf("profile = %+v %v", p, err)
	}
	if err := remote.Logout(ctx, "tok", "refresh"); err != nil {
		t.Fatalf("logout: %v", err)
	}
}

func TestHTTPRemoteUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	remote := NewHTTPRemote("http://"+addr, time.Second, nil)
	_, err = remote.Profile(context.Background(), "tok")
	if Reason(err) != TransportMessage {
		t.Fatalf("expected transport failure, got %v", err)
	}
}

func TestHTTPRemoteExpiredContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPRemote("http://127.0.0.1:1", time.Second, nil).Profile(ctx, "tok")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
