package common

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Fail writes the error body shared by every endpoint.
func Fail(c *gin.Context, httpStatus int, code int, msg string) {
	c.AbortWithStatusJSON(httpStatus, gin.H{
		"code":    code,
		"message": msg,
	})
}

// FailValidation reports a rejected request body, naming the field when known.
func FailValidation(c *gin.Context, err error) {
	body := gin.H{
		"code":    10001,
		"message": err.Error(),
	}
	var ve *ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		body["field"] = ve.Field
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, body)
}
