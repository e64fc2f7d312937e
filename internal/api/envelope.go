package api

import (
	"strings"

	"github.com/danielgtaylor/huma/v2"
)

// envelopeVersion is bumped when the wrapper shape changes.
const envelopeVersion = 1

// SuccessEnvelope wraps every successful JSON response.
type SuccessEnvelope struct {
	Version int  `json:"v"`
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

// ErrorEnvelope wraps every error response. Error repeats Message for
// clients that only read the short form.
type ErrorEnvelope struct {
	Version int    `json:"v"`
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// EnvelopeTransformer is a huma.Transformer that wraps response bodies in
// the {v, success, data} envelope. Raw byte bodies pass through untouched.
func EnvelopeTransformer(_ huma.Context, status string, v any) (any, error) {
	switch body := v.(type) {
	case nil:
		return v, nil
	case []byte:
		return body, nil
	case *APIError:
		return ErrorEnvelope{
			Version: envelopeVersion,
			Success: false,
			Error:   body.Message,
			Code:    body.Code,
			Message: body.Message,
			Details: body.Details,
		}, nil
	case *huma.ErrorModel:
		return ErrorEnvelope{
			Version: envelopeVersion,
			Success: false,
			Error:   body.Detail,
			Code:    statusToCode(body.Status),
			Message: body.Detail,
			Details: body.Errors,
		}, nil
	}

	if !strings.HasPrefix(status, "2") {
		return v, nil
	}
	return SuccessEnvelope{Version: envelopeVersion, Success: true, Data: v}, nil
}
