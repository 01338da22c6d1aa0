package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/prn-tf/alexander-auth/internal/domain"
	"github.com/prn-tf/alexander-auth/internal/service"
)

// Accounts is the account flow used by AccountHandler.
type Accounts interface {
	TokenValidator
	RequestChallenge(ctx context.Context, input service.RequestChallengeInput) (*service.RequestChallengeOutput, error)
	VerifyChallenge(ctx context.Context, input service.VerifyChallengeInput) error
	Register(ctx context.Context, input service.RegisterInput) (*service.RegisterOutput, error)
	Authenticate(ctx context.Context, input service.AuthenticateInput) (*service.AuthenticateOutput, error)
}

// AccountHandler serves the registration and login endpoints.
type AccountHandler struct {
	accounts Accounts
	logger   zerolog.Logger
}

// NewAccountHandler creates a new AccountHandler.
func NewAccountHandler(accounts Accounts, logger zerolog.Logger) *AccountHandler {
	return &AccountHandler{
		accounts: accounts,
		logger:   logger.With().Str("handler", "account").Logger(),
	}
}

// =============================================================================
// Request/Response Types
// =============================================================================

type requestOTPRequest struct {
	Email string `json:"email"`
}

type verifyOTPRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

type messageResponse struct {
	Message string `json:"message"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformedRequest)
		}
		return fmt.Errorf("%w: %v", errMalformedRequest, err)
	}
	return nil
}

// =============================================================================
// Handlers
// =============================================================================

// RequestOTP handles POST /request-otp.
func (h *AccountHandler) RequestOTP(w http.ResponseWriter, r *http.Request) {
	var req requestOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if _, err := h.accounts.RequestChallenge(r.Context(), service.RequestChallengeInput{Email: req.Email}); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "OTP sent to email"})
}

// VerifyOTP handles POST /verify-otp.
func (h *AccountHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	var req verifyOTPRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	err := h.accounts.VerifyChallenge(r.Context(), service.VerifyChallengeInput{
		Email: req.Email,
		Code:  req.OTP,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Account verified successfully"})
}

// Register handles POST /register.
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	out, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out.User)
}

// Token handles POST /token. Credentials arrive as form fields, with the
// email in "username".
func (h *AccountHandler) Token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeError(w, r, fmt.Errorf("%w: %v", errMalformedRequest, err))
		return
	}

	out, err := h.accounts.Authenticate(r.Context(), service.AuthenticateInput{
		Email:    r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{
		AccessToken: out.AccessToken,
		TokenType:   out.TokenType,
		ExpiresIn:   int64(out.ExpiresIn.Seconds()),
	})
}

// Me handles GET /users/me.
func (h *AccountHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := UserFromContext(r.Context())
	if !ok {
		writeError(w, r, domain.ErrInvalidToken)
		return
	}
	writeJSON(w, http.StatusOK, user.Public())
}
