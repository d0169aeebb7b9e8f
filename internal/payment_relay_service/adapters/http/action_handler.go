package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	chi_middleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/app"
	"github.com/muhammadghassan/tcs-stripe-integration/internal/payment_relay_service/domain"
)

const maxActionBodySize = 64 << 10

type PaymentCreator interface {
	CreatePayment(ctx context.Context, in app.CreatePaymentInput) (*app.CreatePaymentResult, error)
}

type AutopaySetter interface {
	SetupAutopay(ctx context.Context, in app.SetupAutopayInput) (*app.SetupAutopayResult, error)
}

// ActionHandler serves the Hasura actions. Every failure is answered with HTTP 400
// and an ActionErrorDTO, which Hasura forwards to the GraphQL client.
type ActionHandler struct {
	payments PaymentCreator
	autopay  AutopaySetter
	validate *validator.Validate
	logger   *slog.Logger
}

func NewActionHandler(payments PaymentCreator, autopay AutopaySetter, logger *slog.Logger) *ActionHandler {
	return &ActionHandler{
		payments: payments,
		autopay:  autopay,
		validate: newValidator(),
		logger:   logger.With("component", "action_handler"),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func (h *ActionHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "action", "create_payment")

	var req CreatePaymentRequestDTO
	if !h.decode(w, r, logger, &req) {
		return
	}

	res, err := h.payments.CreatePayment(ctx, app.CreatePaymentInput{
		UserID: req.SessionVariables.UserID,
		Amount: req.Input.amount(),
		Email:  req.Input.Email,
	})
	if err != nil {
		h.respondWithActionError(ctx, w, logger, err)
		return
	}
	respondWithJSON(w, logger, http.StatusOK, res)
}

func (h *ActionHandler) SetupAutopay(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.logger.With("request_id", chi_middleware.GetReqID(ctx), "action", "setup_autopay")

	var req SetupAutopayRequestDTO
	if !h.decode(w, r, logger, &req) {
		return
	}

	res, err := h.autopay.SetupAutopay(ctx, app.SetupAutopayInput{
		UserID:     req.SessionVariables.UserID,
		Amount:     req.Input.amount(),
		DayOfMonth: req.Input.dayOfMonth(),
	})
	if err != nil {
		h.respondWithActionError(ctx, w, logger, err)
		return
	}
	respondWithJSON(w, logger, http.StatusOK, res)
}

// decode reads and validates an action request, answering the error itself when it returns false.
func (h *ActionHandler) decode(w http.ResponseWriter, r *http.Request, logger *slog.Logger, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxActionBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		logger.WarnContext(r.Context(), "Failed to decode action request", "error", err)
		h.respondWithActionError(r.Context(), w, logger, err)
		return false
	}
	if err := h.validate.StructCtx(r.Context(), dst); err != nil {
		logger.WarnContext(r.Context(), "Action request failed validation", "error", err)
		h.respondWithActionError(r.Context(), w, logger, toValidationError(err))
		return false
	}
	return true
}

// toValidationError maps the first failing input field to a ValidationError on its JSON path.
// Failures outside "input", such as a missing session user, stay internal errors.
func toValidationError(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	parts := strings.Split(fe.Namespace(), ".")
	if len(parts) < 3 || parts[1] != "input" {
		return err
	}
	return &domain.ValidationError{
		Path:    "$." + strings.Join(parts[2:], "."),
		Message: validationMessage(fe),
	}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "email":
		return "Invalid email address"
	case "min":
		return fe.Field() + " must be at least " + fe.Param()
	case "max":
		return fe.Field() + " must be at most " + fe.Param()
	default:
		return fe.Field() + " is invalid"
	}
}

func (h *ActionHandler) respondWithActionError(ctx context.Context, w http.ResponseWriter, logger *slog.Logger, err error) {
	var vErr *domain.ValidationError
	if errors.As(err, &vErr) {
		respondWithJSON(w, logger, http.StatusBadRequest, ActionErrorDTO{
			Message:    vErr.Message,
			Extensions: ActionErrorExtensionsDTO{Code: codeValidationError, Path: vErr.Path},
		})
		return
	}
	logger.ErrorContext(ctx, "Action failed", "error", err)
	respondWithJSON(w, logger, http.StatusBadRequest, ActionErrorDTO{
		Message:    err.Error(),
		Extensions: ActionErrorExtensionsDTO{Code: codeInternalError, Path: "$"},
	})
}
