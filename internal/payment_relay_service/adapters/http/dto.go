package http

// SessionVariablesDTO carries the caller identity Hasura attaches to every action.
type SessionVariablesDTO struct {
	UserID string `json:"x-hasura-user-id" validate:"required,uuid"`
	Role   string `json:"x-hasura-role,omitempty"`
}

type ActionInfoDTO struct {
	Name string `json:"name"`
}

type CreatePaymentInputDTO struct {
	Amount *int64  `json:"amount"`
	Email  *string `json:"email" validate:"omitempty,email"`
}

type CreatePaymentRequestDTO struct {
	Action           ActionInfoDTO         `json:"action"`
	SessionVariables SessionVariablesDTO   `json:"session_variables"`
	Input            CreatePaymentInputDTO `json:"input"`
}

type SetupAutopayInputDTO struct {
	Amount     *int64 `json:"amount"`
	DayOfMonth *int   `json:"day_of_month" validate:"omitempty,min=1,max=28"`
}

type SetupAutopayRequestDTO struct {
	Action           ActionInfoDTO        `json:"action"`
	SessionVariables SessionVariablesDTO  `json:"session_variables"`
	Input            SetupAutopayInputDTO `json:"input"`
}

const (
	defaultAmount     int64 = 100
	defaultDayOfMonth       = 1
)

func (in CreatePaymentInputDTO) amount() int64 {
	if in.Amount == nil {
		return defaultAmount
	}
	return *in.Amount
}

func (in SetupAutopayInputDTO) amount() int64 {
	if in.Amount == nil {
		return defaultAmount
	}
	return *in.Amount
}

func (in SetupAutopayInputDTO) dayOfMonth() int {
	if in.DayOfMonth == nil {
		return defaultDayOfMonth
	}
	return *in.DayOfMonth
}

// ActionErrorDTO is the error shape Hasura expects from an action handler.
type ActionErrorDTO struct {
	Message    string                   `json:"message"`
	Extensions ActionErrorExtensionsDTO `json:"extensions"`
}

type ActionErrorExtensionsDTO struct {
	Code string `json:"code"`
	Path string `json:"path"`
}

const (
	codeValidationError = "VALIDATION_ERROR"
	codeInternalError   = "INTERNAL_ERROR"
)

type webhookAckDTO struct {
	Received bool `json:"received"`
}

type webhookErrorDTO struct {
	Error string `json:"error"`
}
