// Package handlers implements the HTTP endpoints of the ChemSight API on gin.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/ChemSight/pkg/errors"
)

// ErrorResponse is the body of every error response.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// writeAppError maps err to its HTTP status. Server-side failures are
// masked; client errors carry their message and detail.
func writeAppError(c *gin.Context, err error) {
	_ = c.Error(err)
	code := errors.GetCode(err)
	status := errors.HTTPStatusForCode(code)
	if status >= http.StatusInternalServerError && status != http.StatusServiceUnavailable {
		c.AbortWithStatusJSON(status, ErrorResponse{Code: string(errors.ErrCodeInternal), Message: "internal server error"})
		return
	}
	resp := ErrorResponse{Code: string(code), Message: err.Error()}
	var ae *errors.AppError
	if errors.As(err, &ae) {
		resp.Message = ae.Message
		resp.Detail = ae.Detail
	}
	c.AbortWithStatusJSON(status, resp)
}

// bindError reports a malformed request body.
func bindError(c *gin.Context, err error) {
	writeAppError(c, errors.InvalidParam("invalid request body").WithDetail(err.Error()))
}

// queryInt parses an optional integer query parameter.
func queryInt(c *gin.Context, name string, def int) (int, error) {
	v := c.Query(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.InvalidParam(name + " must be an integer")
	}
	return n, nil
}
