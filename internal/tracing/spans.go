package tracing

import (
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Span attribute keys.
const (
	AttrActionCount  = "action.count"
	AttrActionNames  = "action.names"
	AttrActionMode   = "action.mode"
	AttrProjectID    = "action.project_id"
	AttrAuthEnabled  = "action.auth_enabled"
	AttrErrorMessage = "error.message"
	AttrErrorType    = "error.type"
)

// Span names.
const (
	SpanRegister = "actions.register"
	SpanRevise   = "actions.revise"
	SpanSeed     = "actions.seed"
)

// Event names.
const (
	EventParsed    = "definition.parsed"
	EventCommitted = "transaction.committed"
)

// RecordError marks span as failed with err. A nil err sets status OK.
func RecordError(span trace.Span, err error) {
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.String(AttrErrorMessage, err.Error()),
		attribute.String(AttrErrorType, errorType(err)),
	)
}

// errorType names the outermost typed error in err's chain.
func errorType(err error) string {
	for e := err; e != nil; e = errors.Unwrap(e) {
		if t := fmt.Sprintf("%T", e); t != "*errors.errorString" && t != "*fmt.wrapError" {
			return t
		}
	}
	return fmt.Sprintf("%T", err)
}
