package dto

import (
	"errors"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/vibast-solutions/ms-go-locks/app/entity"
)

var (
	ErrMissingName = errors.New("name is required")
	ErrInvalidName = errors.New("name must be a file name inside the lock directory")
)

type LockStatusRequest struct {
	Name string `param:"name"`
}

// FromEchoContext binds and normalizes a request from Echo.
func FromEchoContext(ctx echo.Context) (LockStatusRequest, error) {
	var req LockStatusRequest
	if err := ctx.Bind(&req); err != nil {
		return LockStatusRequest{}, err
	}
	req.normalize()
	return req, nil
}

// Validate rejects names that would escape the lock directory.
func (r *LockStatusRequest) Validate() error {
	if r.Name == "" {
		return ErrMissingName
	}
	if r.Name == "." || r.Name == ".." || strings.ContainsAny(r.Name, `/\`) {
		return ErrInvalidName
	}
	return nil
}

func (r *LockStatusRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
}

type LockStatusResponse struct {
	Name  string `json:"name"`
	Path  string `json:"path"`
	State string `json:"state"`
	Held  bool   `json:"held"`
	PID   int    `json:"pid,omitempty"`
}

// NewLockStatusResponse maps an inspected status to its JSON shape.
func NewLockStatusResponse(s entity.LockStatus) LockStatusResponse {
	return LockStatusResponse{
		Name:  s.Name,
		Path:  s.Path,
		State: s.State,
		Held:  s.Held(),
		PID:   s.PID,
	}
}
