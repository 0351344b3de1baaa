package utils

import (
	"net/http"

	"estate-backend/services"

	"github.com/gin-gonic/gin"
)

func JSONError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{"error": message})
}

// StatusFor maps an action result onto an HTTP status code.
func StatusFor(kind services.ResultKind) int {
	switch kind {
	case services.ResultOK:
		return http.StatusOK
	case services.ResultValidation:
		return http.StatusBadRequest
	case services.ResultNotFound:
		return http.StatusNotFound
	case services.ResultUnauthorized:
		return http.StatusUnauthorized
	}
	return http.StatusInternalServerError
}

// JSONResult writes res with the status of its kind; successCode overrides
// the status of an ok result.
func JSONResult(c *gin.Context, res services.ActionResult, successCode int) {
	code := StatusFor(res.Kind)
	if res.OK() && successCode != 0 {
		code = successCode
	}
	c.JSON(code, res)
}
