package response

import (
	"errors"
	"net/http"
	"time"

	"ucp-ap2-commerce/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// SuccessResponse is the envelope used by the Shopper Service's own local
// HTTP surface (not part of the UCP wire protocol, so it may carry more
// than {error_kind, message}).
type SuccessResponse struct {
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorEnvelope is the rich error envelope used by the Shopper's local API.
type ErrorEnvelope struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// UCPError is the minimal error shape §6/§7 mandates on the wire between
// Shopper and Merchant: {error_kind, message}, nothing else.
type UCPError struct {
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// OK sends a 200 response with data, in the rich envelope.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, SuccessResponse{
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Created sends a 201 response with data, in the rich envelope.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, SuccessResponse{
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Error sends the rich error envelope (Shopper's local API).
func Error(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, ErrorEnvelope{
			ErrorKind: appErr.Kind,
			Message:   appErr.Message,
			RequestID: getRequestID(c),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
		return
	}
	c.JSON(http.StatusInternalServerError, ErrorEnvelope{
		ErrorKind: "INTERNAL",
		Message:   "internal server error",
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// WireError sends the minimal {error_kind, message} shape the UCP protocol
// mandates for the Merchant's checkout-session endpoints.
func WireError(c *gin.Context, err error) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		c.JSON(appErr.HTTPStatus, UCPError{ErrorKind: appErr.Kind, Message: appErr.Message})
		return
	}
	c.JSON(http.StatusInternalServerError, UCPError{ErrorKind: "INTERNAL", Message: "internal server error"})
}

func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
