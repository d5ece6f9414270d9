// Package models defines the core data structures for TaxPro.
//
// It includes the workflow tree, tax profiles, appointments, session state and the
// JSON envelope used by the HTTP API. Types here are shared across modules.
package models

// MessageStatus is the delivery state of an outbound chat reply.
type MessageStatus string

const (
	MessageStatusSent      MessageStatus = "sent"
	MessageStatusDelivered MessageStatus = "delivered"
	MessageStatusRead      MessageStatus = "read"
	MessageStatusFailed    MessageStatus = "failed"
)

// Receipt records the delivery state of a chat reply.
type Receipt struct {
	To     string        `json:"to"`
	Status MessageStatus `json:"status"`
	Time   int64         `json:"time"`
}

// Response is one inbound chat message.
type Response struct {
	MessageID string `json:"message_id,omitempty"` // transport message id, used for de-duplication
	From      string `json:"from"`
	Body      string `json:"body"`
	Time      int64  `json:"time"`
}

// APIStatus is the outcome reported in the API envelope.
type APIStatus string

const (
	// APIStatusOK means the action succeeded; Result holds the session view or data.
	APIStatusOK APIStatus = "ok"
	// APIStatusError means the action failed. Result may still hold a usable view.
	APIStatusError APIStatus = "error"
	// APIStatusRecorded means a consultation request was persisted.
	APIStatusRecorded APIStatus = "recorded"
)

// APIResponse is the JSON envelope every endpoint returns.
type APIResponse struct {
	Status  APIStatus   `json:"status"`
	Message string      `json:"message,omitempty"`
	Result  interface{} `json:"result,omitempty"`
}

// APIResponseBuilder assembles an APIResponse step by step.
type APIResponseBuilder struct {
	response APIResponse
}

// NewAPIResponseBuilder starts a response with the given status.
func NewAPIResponseBuilder(status APIStatus) *APIResponseBuilder {
	return &APIResponseBuilder{response: APIResponse{Status: status}}
}

// Message sets the human-readable message.
func (b *APIResponseBuilder) Message(message string) *APIResponseBuilder {
	b.response.Message = message
	return b
}

// Result attaches the payload.
func (b *APIResponseBuilder) Result(result interface{}) *APIResponseBuilder {
	b.response.Result = result
	return b
}

// Build returns the assembled response.
func (b *APIResponseBuilder) Build() APIResponse {
	return b.response
}

// Success wraps result in an ok envelope.
func Success(result interface{}) APIResponse {
	return NewAPIResponseBuilder(APIStatusOK).Result(result).Build()
}

// SuccessWithMessage is Success plus a notice for the user.
func SuccessWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder(APIStatusOK).Message(message).Result(result).Build()
}

// Error reports a failure with no payload.
func Error(message string) APIResponse {
	return NewAPIResponseBuilder(APIStatusError).Message(message).Build()
}

// ErrorWithResult reports a recoverable failure together with the view that
// stays usable after it.
func ErrorWithResult(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder(APIStatusError).Message(message).Result(result).Build()
}

// RecordedWithMessage confirms a persisted consultation request.
func RecordedWithMessage(message string, result interface{}) APIResponse {
	return NewAPIResponseBuilder(APIStatusRecorded).Message(message).Result(result).Build()
}
