// Package response writes the JSON envelope every endpoint answers with:
// {success, data?, errors?, message}.
package response

import "github.com/gin-gonic/gin"

// Envelope is the wire shape of every response.
type Envelope struct {
	Success bool              `json:"success"`
	Data    gin.H             `json:"data,omitempty"`
	Errors  map[string]string `json:"errors,omitempty"`
	Message string            `json:"message"`
}

// OK writes a success envelope with the given status and data.
func OK(c *gin.Context, status int, message string, data gin.H) {
	c.JSON(status, Envelope{Success: true, Data: data, Message: message})
}

// Fail writes a failure envelope. errs keys are field or concern names
// (email, password, credentials, refresh_token); may be nil.
func Fail(c *gin.Context, status int, message string, errs map[string]string) {
	c.JSON(status, Envelope{Success: false, Errors: errs, Message: message})
}
