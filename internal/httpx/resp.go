package httpx

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// OK sends data as the raw 200 body
func OK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

// Fail sends an error response with specified HTTP status, business code, and message
func Fail(c *gin.Context, httpStatus int, code int, message string) {
	c.AbortWithStatusJSON(httpStatus, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// FailErr sends an error response from an AppError.
// The internal error is logged but not returned to the client.
func FailErr(c *gin.Context, err *AppError) {
	if err.Err != nil {
		logrus.WithFields(logrus.Fields{
			"component": "httpx",
			"path":      c.FullPath(),
			"code":      err.Code,
		}).Errorf("%s: %v", err.Message, err.Err)
	}
	Fail(c, err.HTTPStatus, err.Code, err.Message)
}
