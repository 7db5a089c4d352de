package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/engine"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/ledger"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/middleware"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/models"
	"github.com/Faucets-io/Phoc-sTradexoxo-sub000/internal/service"
)

// ErrorResponse represents a standardized error response.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// ErrorCode defines standard error codes.
type ErrorCode string

const (
	// Validation errors (4xx)
	ErrCodeInvalidRequest   ErrorCode = "INVALID_REQUEST"
	ErrCodeValidationFailed ErrorCode = "VALIDATION_FAILED"
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"

	// Server errors (5xx)
	ErrCodeInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Business logic errors
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInvalidPair       ErrorCode = "INVALID_PAIR"
	ErrCodeOrderNotFound     ErrorCode = "ORDER_NOT_FOUND"
	ErrCodeOrderCannotCancel ErrorCode = "ORDER_CANNOT_CANCEL"
)

func NewErrorResponse(code ErrorCode, message string) *ErrorResponse {
	return &ErrorResponse{
		Error:   string(code),
		Message: message,
		Code:    string(code),
	}
}

func NewErrorResponseWithDetails(code ErrorCode, message string, details map[string]string) *ErrorResponse {
	return &ErrorResponse{
		Error:   string(code),
		Message: message,
		Code:    string(code),
		Details: details,
	}
}

// AbortWithError aborts the request with a standardized error response.
func AbortWithError(c *gin.Context, status int, code ErrorCode, message string) {
	c.AbortWithStatusJSON(status, NewErrorResponse(code, message))
}

// AbortWithErrorDetails aborts the request with a standardized error response including details.
func AbortWithErrorDetails(c *gin.Context, status int, code ErrorCode, message string, details map[string]string) {
	c.AbortWithStatusJSON(status, NewErrorResponseWithDetails(code, message, details))
}

// abortWithDomainError maps service, engine and ledger errors onto the
// response envelope. Unknown errors are logged and hidden behind a 500.
func abortWithDomainError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		ve  *models.ValidationError
		ibe *service.InsufficientBalanceError
	)
	switch {
	case errors.Is(err, service.ErrUnknownPair), errors.Is(err, engine.ErrUnknownPair):
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidPair, err.Error())
	case errors.As(err, &ve):
		AbortWithErrorDetails(c, http.StatusBadRequest, ErrCodeValidationFailed, "Validation failed",
			map[string]string{ve.Field: ve.Message})
	case errors.As(err, &ibe):
		AbortWithErrorDetails(c, http.StatusUnprocessableEntity, ErrCodeInsufficientFunds, ibe.Error(),
			map[string]string{
				"currency":  ibe.Currency,
				"required":  ibe.Required.String(),
				"available": ibe.Available.String(),
			})
	case errors.Is(err, service.ErrInsufficientBalance):
		AbortWithError(c, http.StatusUnprocessableEntity, ErrCodeInsufficientFunds, err.Error())
	case errors.Is(err, ledger.ErrOrderNotFound):
		AbortWithError(c, http.StatusNotFound, ErrCodeOrderNotFound, "order not found")
	case errors.Is(err, engine.ErrNotCancellable):
		AbortWithError(c, http.StatusConflict, ErrCodeOrderCannotCancel, err.Error())
	default:
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", c.GetString(middleware.ContextKeyRequestID)),
			zap.Error(err))
		AbortWithError(c, http.StatusInternalServerError, ErrCodeInternalError, "Internal server error")
	}
}

// PaginationParams represents pagination parameters.
type PaginationParams struct {
	Page    int `json:"page"`
	PerPage int `json:"per_page"`
	Offset  int `json:"offset"`
	Limit   int `json:"limit"`
}

// WithPagination extracts and validates pagination parameters from query.
func WithPagination(c *gin.Context, defaultPerPage int) *PaginationParams {
	page := queryInt(c, "page", 1, 1, 0)
	perPage := queryInt(c, "per_page", defaultPerPage, 1, 100)
	return &PaginationParams{
		Page:    page,
		PerPage: perPage,
		Offset:  (page - 1) * perPage,
		Limit:   perPage,
	}
}

// PaginatedResponse represents a paginated response.
type PaginatedResponse struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination contains pagination metadata.
type Pagination struct {
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	TotalPages int   `json:"total_pages"`
	TotalItems int64 `json:"total_items"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

func NewPaginatedResponse(data interface{}, page, perPage int, totalItems int64) *PaginatedResponse {
	totalPages := int((totalItems + int64(perPage) - 1) / int64(perPage))
	if totalPages == 0 {
		totalPages = 1
	}

	return &PaginatedResponse{
		Success: true,
		Data:    data,
		Pagination: &Pagination{
			Page:       page,
			PerPage:    perPage,
			TotalPages: totalPages,
			TotalItems: totalItems,
			HasNext:    page < totalPages,
			HasPrev:    page > 1,
		},
	}
}

// queryInt reads an integer query parameter. Values that do not parse or
// fall below min give def; max of 0 means unbounded.
func queryInt(c *gin.Context, key string, def, min, max int) int {
	raw := c.Query(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < min {
		return def
	}
	if max > 0 && n > max {
		return max
	}
	return n
}

// pathID parses a positive int64 path parameter.
func pathID(c *gin.Context, key string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(key), 10, 64)
	if err != nil || id <= 0 {
		AbortWithError(c, http.StatusBadRequest, ErrCodeInvalidRequest, key+" must be a positive integer")
		return 0, false
	}
	return id, true
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status   string            `json:"status"`
	Version  string            `json:"version"`
	Services map[string]string `json:"services"`
}

func NewHealthResponse(version string, services map[string]string) *HealthResponse {
	status := "healthy"
	for _, v := range services {
		if v != "healthy" && v != "disabled" {
			status = "degraded"
			break
		}
	}

	return &HealthResponse{
		Status:   status,
		Version:  version,
		Services: services,
	}
}
