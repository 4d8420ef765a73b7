package response

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/gofiber/fiber/v2"

	apperrors "github.com/Rohianon/multicurrency-checkout/pkg/errors"
	"github.com/Rohianon/multicurrency-checkout/pkg/logger"
)

// ErrorHandler is the fiber.Config ErrorHandler for every service.
func ErrorHandler(c *fiber.Ctx, err error) error {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.HTTPStatus >= fiber.StatusInternalServerError {
			logger.WithContext(c.UserContext()).Error().
				Err(err).
				Str("request_id", GetRequestID(c)).
				Str("path", c.Path()).
				Msg("Request failed")
		}
		return c.Status(appErr.HTTPStatus).JSON(Response{
			Error: errorBody(appErr),
			Meta:  buildMeta(c),
		})
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return c.Status(fiberErr.Code).JSON(Response{
			Error: &ErrorBody{
				Code:    httpStatusToErrorCode(fiberErr.Code),
				Message: fiberErr.Message,
			},
			Meta: buildMeta(c),
		})
	}

	logger.WithContext(c.UserContext()).Error().
		Err(err).
		Str("request_id", GetRequestID(c)).
		Str("path", c.Path()).
		Msg("Unhandled error")

	return c.Status(fiber.StatusInternalServerError).JSON(Response{
		Error: &ErrorBody{
			Code:    apperrors.ErrInternal.Code,
			Message: "An unexpected error occurred",
		},
		Meta: buildMeta(c),
	})
}

func errorBody(appErr *apperrors.AppError) *ErrorBody {
	body := &ErrorBody{Code: appErr.Code, Message: appErr.Message}

	switch d := appErr.Details.(type) {
	case nil:
	case string:
		body.Details = []string{d}
	case []string:
		body.Details = d
	case map[string]string:
		body.Fields = d
		for _, k := range slices.Sorted(maps.Keys(d)) {
			body.Details = append(body.Details, k+": "+d[k])
		}
	case fmt.Stringer:
		body.Details = []string{d.String()}
	}
	return body
}

func httpStatusToErrorCode(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return "BAD_REQUEST"
	case fiber.StatusUnauthorized:
		return "UNAUTHORIZED"
	case fiber.StatusForbidden:
		return "FORBIDDEN"
	case fiber.StatusNotFound:
		return "NOT_FOUND"
	case fiber.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case fiber.StatusConflict:
		return "CONFLICT"
	case fiber.StatusRequestEntityTooLarge:
		return "PAYLOAD_TOO_LARGE"
	case fiber.StatusUnprocessableEntity:
		return "VALIDATION_ERROR"
	case fiber.StatusTooManyRequests:
		return "RATE_LIMITED"
	case fiber.StatusInternalServerError:
		return "INTERNAL_ERROR"
	case fiber.StatusBadGateway:
		return "GATEWAY_ERROR"
	case fiber.StatusServiceUnavailable:
		return "SERVICE_UNAVAILABLE"
	default:
		return "UNKNOWN_ERROR"
	}
}
