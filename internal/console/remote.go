package console

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/fieldops-console/internal/api/dto"
)

// Remote is the verification service as seen by the console.
type Remote interface {
	ResolveLink(ctx context.Context, link Link) (*dto.ResolveResponse, error)
	VerifyPIN(ctx context.Context, req dto.PinVerifyRequest) (*dto.PinVerifyResponse, error)
	OwnerLogin(ctx context.Context, req dto.OwnerLoginRequest) (*dto.AuthResponse, error)
	Profile(ctx context.Context, accessToken string) (*dto.ProfileResponse, error)
	RotatePIN(ctx context.Context, accessToken string, req dto.PinRotateRequest) (*dto.PinRotateResponse, error)
	PINStatus(ctx context.Context, accessToken string) (*dto.PinStatusResponse, error)
	Logout(ctx context.Context, accessToken, refreshToken string) error
}

// HTTPRemote talks to the verification service over HTTP using fiber's client.
type HTTPRemote struct {
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewHTTPRemote builds a remote for baseURL. Timeouts belong to the transport;
// a zero timeout falls back to 10 seconds.
func NewHTTPRemote(baseURL string, timeout time.Duration, logger *zap.Logger) *HTTPRemote {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPRemote{baseURL: strings.TrimRight(baseURL, "/"), timeout: timeout, logger: logger}
}

func (r *HTTPRemote) ResolveLink(ctx context.Context, link Link) (*dto.ResolveResponse, error) {
	path := "/auth/links/" + url.PathEscape(link.Tenant)
	if link.Staff != "" {
		path += "/" + url.PathEscape(link.Staff)
	}
	var out dto.ResolveResponse
	if err := r.do(ctx, fiber.MethodGet, path, "", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// VerifyPIN returns rejected attempts as a response, not an error.
func (r *HTTPRemote) VerifyPIN(ctx context.Context, req dto.PinVerifyRequest) (*dto.PinVerifyResponse, error) {
	var out dto.PinVerifyResponse
	if err := r.do(ctx, fiber.MethodPost, "/auth/pin/verify", "", req, &out, http.StatusUnauthorized, http.StatusLocked); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPRemote) OwnerLogin(ctx context.Context, req dto.OwnerLoginRequest) (*dto.AuthResponse, error) {
	var out dto.AuthResponse
	if err := r.do(ctx, fiber.MethodPost, "/auth/owner/login", "", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPRemote) Profile(ctx context.Context, accessToken string) (*dto.ProfileResponse, error) {
	var out dto.ProfileResponse
	if err := r.do(ctx, fiber.MethodGet, "/auth/profile", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RotatePIN returns service-reported rotation failures as a response.
func (r *HTTPRemote) RotatePIN(ctx context.Context, accessToken string, req dto.PinRotateRequest) (*dto.PinRotateResponse, error) {
	var out dto.PinRotateResponse
	err := r.do(ctx, fiber.MethodPost, "/auth/pin/rotate", accessToken, req, &out,
		http.StatusBadRequest, http.StatusForbidden, http.StatusLocked)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPRemote) PINStatus(ctx context.Context, accessToken string) (*dto.PinStatusResponse, error) {
	var out dto.PinStatusResponse
	if err := r.do(ctx, fiber.MethodGet, "/auth/pin/status", accessToken, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *HTTPRemote) Logout(ctx context.Context, accessToken, refreshToken string) error {
	return r.do(ctx, fiber.MethodPost, "/auth/logout", accessToken, dto.LogoutRequest{RefreshToken: refreshToken}, nil)
}

// do performs one round trip. 2xx replies and the extra accepted statuses are
// decoded into out unless they carry the service error envelope.
func (r *HTTPRemote) do(ctx context.Context, method, path, token string, payload, out any, accept ...int) error {
	timeout := r.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return &TransportError{Err: context.DeadlineExceeded}
		}
		if remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return &TransportError{Err: err}
	}

	agent := fiber.AcquireAgent()
	req := agent.Request()
	req.Header.SetMethod(method)
	req.SetRequestURI(r.baseURL + path)
	if err := agent.Parse(); err != nil {
		fiber.ReleaseAgent(agent)
		return &TransportError{Err: err}
	}
	agent.Timeout(timeout)
	if token != "" {
		agent.Set(fiber.HeaderAuthorization, "Bearer "+token)
	}
	if payload != nil {
		agent.JSON(payload)
	}

	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		err := errors.Join(errs...)
		r.logger.Debug("remote call failed", zap.String("method", method), zap.String("path", path), zap.Error(err))
		return &TransportError{Err: err}
	}
	return decodeReply(status, body, out, accept)
}

type errorEnvelope struct {
	Error json.RawMessage `json:"error"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func decodeReply(status int, body []byte, out any, accept []int) error {
	if status >= http.StatusInternalServerError {
		return &TransportError{Err: errors.New(http.StatusText(status))}
	}

	var env errorEnvelope
	if len(body) > 0 && json.Unmarshal(body, &env) == nil && len(env.Error) > 0 && env.Error[0] == '{' {
		var eb errorBody
		if err := json.Unmarshal(env.Error, &eb); err != nil {
			return &TransportError{Err: err}
		}
		return &RemoteError{Status: status, Code: eb.Code, Message: eb.Message}
	}

	if !accepted(status, accept) {
		return &RemoteError{Status: status, Message: http.StatusText(status)}
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &TransportError{Err: err}
	}
	return nil
}

func accepted(status int, accept []int) bool {
	if status >= 200 && status < 300 {
		return true
	}
	for _, s := range accept {
		if s == status {
			return true
		}
	}
	return false
}
