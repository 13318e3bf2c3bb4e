package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"bwitty-orders/internal/auth"
	"bwitty-orders/internal/model"

	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Log the error but don't expose it to the client
		return
	}
}

// writeError writes an error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, code, message string, logger zerolog.Logger) {
	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Str("error", message).Str("code", code).Int("status", status).Msg("handler error")
	writeJSON(w, status, model.ErrorResponse{Error: code, Message: message})
}

// respondError maps a service error onto its HTTP status and API code.
func respondError(w http.ResponseWriter, err error, logger zerolog.Logger) {
	var (
		validation  *model.ValidationError
		gateway     *model.GatewayUnavailableError
		notVerified *model.VerificationFailedError
		unreachable *model.VerificationUnreachableError
		notRecorded *model.OrderPersistenceError
		forbidden   *model.AuthorizationError
		invalid     *model.InvalidTransitionError
		notFound    *model.NotFoundError
		domain      *model.DomainError
		status      int
		resp        model.ErrorResponse
	)

	switch {
	case errors.As(err, &validation):
		status, resp = http.StatusBadRequest, model.ErrorResponse{Error: model.ErrCodeValidation, Message: validation.Error()}
	case errors.As(err, &gateway):
		status, resp = http.StatusBadGateway, model.ErrorResponse{Error: model.ErrCodeGatewayUnavailable, Message: "payment gateway is unavailable, please try again"}
	case errors.As(err, &notVerified):
		status, resp = http.StatusPaymentRequired, model.ErrorResponse{Error: model.ErrCodeVerificationFailed, Message: notVerified.Error(), Reference: notVerified.Reference}
	case errors.As(err, &unreachable):
		status, resp = http.StatusServiceUnavailable, model.ErrorResponse{Error: model.ErrCodeVerificationUnreachable, Message: unreachable.Error(), Reference: unreachable.Reference}
	case errors.As(err, &notRecorded):
		status, resp = http.StatusServiceUnavailable, model.ErrorResponse{Error: model.ErrCodeOrderNotRecorded, Message: notRecorded.Error(), Reference: notRecorded.Reference}
	case errors.As(err, &forbidden):
		status, resp = http.StatusForbidden, model.ErrorResponse{Error: model.ErrCodeForbidden, Message: forbidden.Error()}
	case errors.As(err, &invalid):
		status, resp = http.StatusConflict, model.ErrorResponse{Error: model.ErrCodeInvalidTransition, Message: invalid.Error()}
	case errors.As(err, &notFound):
		status, resp = http.StatusNotFound, model.ErrorResponse{Error: model.ErrCodeNotFound, Message: notFound.Error()}
	case errors.As(err, &domain):
		status = http.StatusBadRequest
		if domain.Code == model.ErrCodeUnauthorised {
			status = http.StatusUnauthorized
		}
		resp = model.ErrorResponse{Error: domain.Code, Message: domain.Message}
	default:
		logger.Error().Err(err).Msg("unexpected error")
		writeJSON(w, http.StatusInternalServerError, model.ErrorResponse{Error: model.ErrCodeInternalError, Message: "internal server error"})
		return
	}

	event := logger.Warn()
	if status >= http.StatusInternalServerError {
		event = logger.Error()
	}
	event.Err(err).Str("code", resp.Error).Int("status", status).Msg("request failed")
	writeJSON(w, status, resp)
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// callerOf returns the authenticated caller, or the zero Actor for anonymous requests.
func callerOf(r *http.Request) model.Actor {
	actor, _ := auth.ActorFromContext(r.Context())
	return actor
}
