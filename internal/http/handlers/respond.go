package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the uniform response shape: success is 0 or 1, data is omitted
// when there is nothing to return.
type Envelope struct {
	Success int         `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Param   string `json:"param,omitempty"`
	Message string `json:"message,omitempty"`
}

func RespondSuccess(ctx *gin.Context, status int, message string, data interface{}) {
	ctx.JSON(status, Envelope{Success: 1, Message: message, Data: data})
}

func RespondBadRequest(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusBadRequest, Envelope{Success: 0, Message: message})
}

// RespondValidation reports malformed input with per-field detail. This is
// the only error shape that carries structure back to the client.
func RespondValidation(ctx *gin.Context, fields []FieldError) {
	ctx.JSON(http.StatusUnprocessableEntity, gin.H{
		"success": 0,
		"message": "Invalid data",
		"errors":  fields,
	})
}

func RespondConflict(ctx *gin.Context, message string) {
	ctx.JSON(http.StatusConflict, Envelope{Success: 0, Message: message})
}

// RespondInternal deliberately leaks nothing; the cause is logged, not sent.
func RespondInternal(ctx *gin.Context) {
	ctx.JSON(http.StatusInternalServerError, Envelope{Success: 0, Message: "Some server error occurred"})
}
