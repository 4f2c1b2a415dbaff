package response

import (
	"github.com/gofiber/fiber/v2"
)

type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data"`
	Error   *ErrorInfo  `json:"error"`
	Meta    Meta        `json:"meta"`
}

type ErrorInfo struct {
	Code    ErrorCode   `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

type Meta struct {
	TraceID  string   `json:"traceId,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

type ErrorCode string

const (
	ErrCodeInvalidPayload ErrorCode = "INVALID_PAYLOAD"
	ErrCodeNotFound       ErrorCode = "NOT_FOUND"
	ErrCodeConflict       ErrorCode = "CONFLICT"
	ErrCodeRateLimited    ErrorCode = "RATE_LIMITED"
	ErrCodeUpstreamAuth   ErrorCode = "UPSTREAM_AUTH"
	ErrCodeUpstreamError  ErrorCode = "UPSTREAM_ERROR"
	ErrCodeDomainInvalid  ErrorCode = "DOMAIN_INVALID"
	ErrCodeInternal       ErrorCode = "INTERNAL_ERROR"
)

func OK(c *fiber.Ctx, data interface{}) error {
	return send(c, fiber.StatusOK, data, nil)
}

func Created(c *fiber.Ctx, data interface{}) error {
	return send(c, fiber.StatusCreated, data, nil)
}

func Accepted(c *fiber.Ctx, data interface{}) error {
	return send(c, fiber.StatusAccepted, data, nil)
}

func BadRequest(c *fiber.Ctx, message string) error {
	return sendError(c, fiber.StatusBadRequest, ErrCodeInvalidPayload, message, nil)
}

func BadRequestWithDetails(c *fiber.Ctx, message string, details interface{}) error {
	return sendError(c, fiber.StatusBadRequest, ErrCodeInvalidPayload, message, details)
}

func NotFound(c *fiber.Ctx, message string) error {
	return sendError(c, fiber.StatusNotFound, ErrCodeNotFound, message, nil)
}

func Conflict(c *fiber.Ctx, message string) error {
	return sendError(c, fiber.StatusConflict, ErrCodeConflict, message, nil)
}

func RateLimited(c *fiber.Ctx, message string) error {
	return sendError(c, fiber.StatusTooManyRequests, ErrCodeRateLimited, message, nil)
}

func UpstreamError(c *fiber.Ctx, code ErrorCode, message string, details interface{}) error {
	return sendError(c, fiber.StatusBadGateway, code, message, details)
}

func ServiceUnavailable(c *fiber.Ctx, code ErrorCode, message string, details interface{}) error {
	return sendError(c, fiber.StatusServiceUnavailable, code, message, details)
}

func InternalError(c *fiber.Ctx) error {
	return sendError(c, fiber.StatusInternalServerError, ErrCodeInternal, "internal server error", nil)
}

func send(c *fiber.Ctx, status int, data interface{}, errInfo *ErrorInfo) error {
	envelope := Envelope{
		Success: errInfo == nil,
		Data:    data,
		Error:   errInfo,
		Meta: Meta{
			TraceID: getTraceID(c),
		},
	}
	return c.Status(status).JSON(envelope)
}

func sendError(c *fiber.Ctx, status int, code ErrorCode, message string, details interface{}) error {
	return send(c, status, nil, &ErrorInfo{
		Code:    code,
		Message: message,
		Details: details,
	})
}

func getTraceID(c *fiber.Ctx) string {
	if traceID := c.Locals("traceId"); traceID != nil {
		if id, ok := traceID.(string); ok {
			return id
		}
	}
	return ""
}
