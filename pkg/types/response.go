package types

// SuccessEnvelope wraps browser-facing success payloads.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

// HookAck is the processor-shaped webhook response body. The processor's
// retry policy keys off the HTTP status; the body is informational.
type HookAck struct {
	Status      string `json:"status"`
	Message     string `json:"message,omitempty"`
	Reference   string `json:"reference,omitempty"`
	OrderNumber string `json:"order_number,omitempty"`
}
