package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"github.com/vibast-solutions/ms-go-locks/app/dto"
	"github.com/vibast-solutions/ms-go-locks/app/service"
)

type LockController struct {
	inspector *service.Inspector
	log       logrus.FieldLogger
}

// NewLockController constructs the HTTP lock inspection controller.
func NewLockController(inspector *service.Inspector, log logrus.FieldLogger) *LockController {
	return &LockController{inspector: inspector, log: log}
}

// Status reports whether a lock file in the lock directory is held and by
// which process.
func (c *LockController) Status(ctx echo.Context) error {
	req, err := dto.FromEchoContext(ctx)
	if err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request"})
	}
	if err := req.Validate(); err != nil {
		return ctx.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	status, err := c.inspector.Inspect(ctx.Request().Context(), req.Name)
	if err != nil {
		if errors.Is(err, service.ErrLockNotFound) {
			return ctx.JSON(http.StatusNotFound, map[string]string{"error": "lock not found"})
		}
		c.log.WithField("lock", req.Name).Errorf("inspect lock: %v", err)
		return ctx.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to inspect lock"})
	}

	return ctx.JSON(http.StatusOK, dto.NewLockStatusResponse(status))
}
