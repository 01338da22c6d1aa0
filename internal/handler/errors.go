package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/prn-tf/alexander-auth/internal/domain"
)

// ErrorCode is a stable, machine-readable error identifier.
type ErrorCode string

// Error codes returned in response bodies.
const (
	CodeInvalidEmail           ErrorCode = "InvalidEmail"
	CodeInvalidPassword        ErrorCode = "InvalidPassword"
	CodeInvalidFullName        ErrorCode = "InvalidFullName"
	CodeInvalidOtpFormat       ErrorCode = "InvalidOtpFormat"
	CodeMalformedRequest       ErrorCode = "MalformedRequest"
	CodeEmailAlreadyRegistered ErrorCode = "EmailAlreadyRegistered"
	CodeEmailNotVerified       ErrorCode = "EmailNotVerified"
	CodeInvalidOtp             ErrorCode = "InvalidOtp"
	CodeOtpExpired             ErrorCode = "OtpExpired"
	CodeInvalidCredentials     ErrorCode = "InvalidCredentials"
	CodeAccountNotVerified     ErrorCode = "AccountNotVerified"
	CodeInvalidToken           ErrorCode = "InvalidToken"
	CodeDeliveryFailed         ErrorCode = "DeliveryFailed"
	CodeStoreUnavailable       ErrorCode = "StoreUnavailable"
	CodeNotFound               ErrorCode = "NotFound"
	CodeMethodNotAllowed       ErrorCode = "MethodNotAllowed"
	CodeInternalError          ErrorCode = "InternalError"
)

// errMalformedRequest indicates the request body could not be decoded.
var errMalformedRequest = errors.New("malformed request body")

// APIError is an error response.
type APIError struct {
	// Code is the stable error code.
	Code ErrorCode `json:"code"`

	// Message is a human-readable description safe to show clients.
	Message string `json:"message"`

	// HTTPStatus is the response status.
	HTTPStatus int `json:"-"`
}

func (e *APIError) Error() string {
	return string(e.Code) + ": " + e.Message
}

var errorTable = []struct {
	err    error
	code   ErrorCode
	status int
}{
	{domain.ErrInvalidEmail, CodeInvalidEmail, http.StatusBadRequest},
	{domain.ErrInvalidPassword, CodeInvalidPassword, http.StatusBadRequest},
	{domain.ErrInvalidFullName, CodeInvalidFullName, http.StatusBadRequest},
	{domain.ErrInvalidOtpFormat, CodeInvalidOtpFormat, http.StatusBadRequest},
	{errMalformedRequest, CodeMalformedRequest, http.StatusBadRequest},
	{domain.ErrEmailAlreadyRegistered, CodeEmailAlreadyRegistered, http.StatusBadRequest},
	{domain.ErrEmailNotVerified, CodeEmailNotVerified, http.StatusBadRequest},
	{domain.ErrInvalidOtp, CodeInvalidOtp, http.StatusBadRequest},
	{domain.ErrOtpExpired, CodeOtpExpired, http.StatusBadRequest},
	{domain.ErrInvalidCredentials, CodeInvalidCredentials, http.StatusUnauthorized},
	{domain.ErrAccountNotVerified, CodeAccountNotVerified, http.StatusBadRequest},
	{domain.ErrInvalidToken, CodeInvalidToken, http.StatusUnauthorized},
	{domain.ErrDeliveryFailed, CodeDeliveryFailed, http.StatusInternalServerError},
	{domain.ErrStoreUnavailable, CodeStoreUnavailable, http.StatusServiceUnavailable},
}

// NewAPIError maps err to its response. The message is the matched
// sentinel's text so wrapped infrastructure details never reach clients.
func NewAPIError(err error) *APIError {
	for _, e := range errorTable {
		if errors.Is(err, e.err) {
			return &APIError{Code: e.code, Message: clientMessage(err, e.err, e.status), HTTPStatus: e.status}
		}
	}
	return &APIError{
		Code:       CodeInternalError,
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// clientMessage returns the sentinel text, extended with the detail of a
// DomainError for client errors. The resource is never included.
func clientMessage(err, sentinel error, status int) string {
	msg := sentinel.Error()
	var de *domain.DomainError
	if status < http.StatusInternalServerError && errors.As(err, &de) && de.Message != "" && errors.Is(de.Err, sentinel) {
		msg += ": " + de.Message
	}
	return msg
}

// writeError writes the response for err and logs server-side failures.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := NewAPIError(err)

	if apiErr.HTTPStatus >= http.StatusInternalServerError {
		hlog.FromRequest(r).Error().Err(err).Str("code", string(apiErr.Code)).Msg("request failed")
	}
	if apiErr.HTTPStatus == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	writeJSON(w, apiErr.HTTPStatus, apiErr)
}

// writeJSON writes v as the JSON response body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
