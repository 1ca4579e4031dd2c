package dto

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-locks/app/entity"
)

func TestLockStatusRequestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  LockStatusRequest
		err  error
	}{
		{name: "missing name", req: LockStatusRequest{}, err: ErrMissingName},
		{name: "parent dir", req: LockStatusRequest{Name: ".."}, err: ErrInvalidName},
		{name: "current dir", req: LockStatusRequest{Name: "."}, err: ErrInvalidName},
		{name: "slash", req: LockStatusRequest{Name: "../etc/passwd"}, err: ErrInvalidName},
		{name: "backslash", req: LockStatusRequest{Name: `..\boot.ini`}, err: ErrInvalidName},
		{name: "valid", req: LockStatusRequest{Name: "app.pid"}, err: nil},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.req.Validate()
			if err != tc.err {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
		})
	}
}

func TestFromEchoContextNormalizes(t *testing.T) {
	t.Parallel()

	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	ctx := e.NewContext(req, rec)
	ctx.SetPath("/locks/:name")
	ctx.SetParamNames("name")
	ctx.SetParamValues(" app.pid ")

	dto, err := FromEchoContext(ctx)
	if err != nil {
		t.Fatalf("FromEchoContext returned error: %v", err)
	}
	if dto.Name != "app.pid" {
		t.Fatalf("unexpected normalization: %+v", dto)
	}
}

func TestNewLockStatusResponse(t *testing.T) {
	t.Parallel()

	resp := NewLockStatusResponse(entity.LockStatus{Name: "app.pid", Path: "/run/app.pid", State: entity.LockStateHeld, PID: 42})
	if !resp.Held || resp.PID != 42 || resp.State != "held" || resp.Path != "/run/app.pid" {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
