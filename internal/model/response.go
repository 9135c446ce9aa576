package model

// Envelope is the admin API response wrapper.
type Envelope struct {
	Code string `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

// Envelope codes.
const (
	CodeOK           = "ok"
	CodeError        = "error"
	CodeUnauthorized = "unauthorized"
	CodeNotFound     = "not_found"
)

// OK wraps data with the success code.
func OK(msg string, data any) Envelope {
	return Envelope{Code: CodeOK, Msg: msg, Data: data}
}

// Fail returns an Envelope with the generic error code.
func Fail(msg string) Envelope {
	return Envelope{Code: CodeError, Msg: msg}
}

// FailWithCode allows specifying a custom error code.
func FailWithCode(code, msg string) Envelope {
	return Envelope{Code: code, Msg: msg}
}
