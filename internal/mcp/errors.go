// Package mcp serves hoopla's search operations as Model Context Protocol
// tools over stdio.
package mcp

import (
	"context"
	"errors"
	"fmt"

	herrors "github.com/Aman-CERP/hoopla/internal/errors"
	"github.com/Aman-CERP/hoopla/internal/store"
)

// Custom MCP error codes.
const (
	ErrCodeIndexUnavailable = -32001
	ErrCodeProviderFailed   = -32002
	ErrCodeTimeout          = -32003
	ErrCodeNotFound         = -32004

	// Standard JSON-RPC error codes.
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternalError  = -32603
)

// MCPError is a protocol error with a JSON-RPC code.
type MCPError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// MapError converts an internal error to an MCPError. Nil stays nil.
func MapError(err error) *MCPError {
	if err == nil {
		return nil
	}
	var me *MCPError
	if errors.As(err, &me) {
		return me
	}
	if he, ok := herrors.As(err); ok {
		return mapHooplaError(he)
	}

	switch {
	case errors.Is(err, store.ErrIndexUnavailable):
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: "Index not built. Run 'hoopla build-index' first."}
	case errors.Is(err, context.DeadlineExceeded):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request timed out."}
	case errors.Is(err, context.Canceled):
		return &MCPError{Code: ErrCodeTimeout, Message: "Request was canceled."}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: "Internal server error."}
	}
}

// NewInvalidParamsError reports a bad tool argument.
func NewInvalidParamsError(msg string) *MCPError {
	return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
}

// NewMethodNotFoundError reports an unknown tool.
func NewMethodNotFoundError(name string) *MCPError {
	return &MCPError{Code: ErrCodeMethodNotFound, Message: fmt.Sprintf("Tool '%s' not found.", name)}
}

func mapHooplaError(he *herrors.HooplaError) *MCPError {
	msg := he.Message
	if he.Suggestion != "" {
		msg += " " + he.Suggestion
	}

	switch he.Code {
	case herrors.ErrCodeIndexUnavailable, herrors.ErrCodeCorruptIndex:
		return &MCPError{Code: ErrCodeIndexUnavailable, Message: msg}
	case herrors.ErrCodeDocumentNotFound, herrors.ErrCodeFileNotFound:
		return &MCPError{Code: ErrCodeNotFound, Message: msg}
	case herrors.ErrCodeNetworkTimeout:
		return &MCPError{Code: ErrCodeTimeout, Message: msg}
	}

	switch he.Category {
	case herrors.CategoryValidation:
		return &MCPError{Code: ErrCodeInvalidParams, Message: msg}
	case herrors.CategoryNetwork:
		return &MCPError{Code: ErrCodeProviderFailed, Message: msg}
	default:
		return &MCPError{Code: ErrCodeInternalError, Message: msg}
	}
}
