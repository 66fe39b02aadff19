package types

import (
	"encoding/json"
	"fmt"
)

// Error codes shared by every service handler. Gateway calls propagate the
// upstream code and message verbatim, so the set must stay stable across
// releases.
const (
	CodeNonAuthorized      uint64 = 101
	CodePayloadFormat      uint64 = 102
	CodeArithmeticOverflow uint64 = 103
	CodeServiceNotFound    uint64 = 104
	CodeOutOfCycles        uint64 = 105
)

// Response is the uniform envelope returned by every service handler. A
// handler never raises a fault into the dispatcher; hard failures are encoded
// as a non-zero code plus message.
type Response struct {
	Data         string `json:"data"`
	Code         uint64 `json:"code"`
	ErrorMessage string `json:"error_message"`
}

// Succeed wraps already-serialised data into a success envelope.
func Succeed(data string) Response {
	return Response{Data: data}
}

// SucceedJSON marshals v to canonical JSON and wraps it into a success
// envelope. Marshal failures surface as a PayloadFormat error.
func SucceedJSON(v interface{}) Response {
	blob, err := json.Marshal(v)
	if err != nil {
		return Fail(CodePayloadFormat, fmt.Sprintf("encode response payload: %v", err))
	}
	return Response{Data: string(blob)}
}

// Fail builds an error envelope with the supplied code and message.
func Fail(code uint64, message string) Response {
	return Response{Code: code, ErrorMessage: message}
}

// Failf builds an error envelope with a formatted message.
func Failf(code uint64, format string, args ...interface{}) Response {
	return Response{Code: code, ErrorMessage: fmt.Sprintf(format, args...)}
}

// IsError reports whether the envelope carries a failure.
func (r Response) IsError() bool {
	return r.Code != 0
}
