package bridge

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"switchboard/internal/adapter"
	"switchboard/internal/api"
	"switchboard/internal/binding"
	"switchboard/pkg/logging"
)

// Tool is what the bridge registers with the function-calling runtime for one
// adapter: an explicit schema paired with Invoke.
type Tool struct {
	name    string
	adapter *adapter.Adapter
	// resolved is shared by the tools of one implementation; its sensitive
	// configuration is what the implementation was constructed with.
	resolved *binding.ResolvedBinding
	limiter  *limiter
	metrics  *Metrics
	timeout  time.Duration
}

// Name is the name the runtime exposes. It is the operation name unless two
// implementations in the same session declare the same operation.
func (t *Tool) Name() string { return t.name }

// Operation returns the operation name.
func (t *Tool) Operation() string { return t.adapter.Name() }

// Implementation returns the implementation the tool belongs to.
func (t *Tool) Implementation() string { return t.adapter.Implementation() }

// Description returns the operation description.
func (t *Tool) Description() string { return t.adapter.Description() }

// Parameters returns the declared parameters in order.
func (t *Tool) Parameters() []api.Parameter { return t.adapter.Parameters() }

// InputSchema returns the JSON Schema of the arguments.
func (t *Tool) InputSchema() adapter.InputSchema { return t.adapter.InputSchema() }

// Invoke runs the operation and always returns a result: validation errors,
// implementation errors and panics become error results so that a failing
// operation never ends the session. The invocation is bounded by the
// configured timeout, derived from ctx and not from the session.
func (t *Tool) Invoke(ctx context.Context, args map[string]interface{}) (result *api.CallToolResult) {
	invocationID := uuid.NewString()
	start := time.Now()

	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	ctx, span := otel.Tracer(instrumentationName).Start(ctx, "invoke "+t.name,
		trace.WithAttributes(
			attribute.String("switchboard.implementation", t.Implementation()),
			attribute.String("switchboard.operation", t.Operation()),
			attribute.String("switchboard.invocation_id", invocationID),
		))
	defer span.End()

	defer func() {
		if r := recover(); r != nil {
			logging.Error("Bridge", fmt.Errorf("panic: %v", r), "Invocation %s of %s panicked\n%s", invocationID, t.name, debug.Stack())
			span.SetStatus(codes.Error, "panic")
			result = api.HandleErrorWithPrefix(fmt.Errorf("%v", r), "Internal error")
		}
		if t.metrics != nil {
			t.metrics.recordInvocation(ctx, t.Implementation(), t.Operation(), time.Since(start), result == nil || result.IsError)
		}
	}()

	logging.Debug("Bridge", "Invocation %s: calling %s", invocationID, t.name)

	out, err := t.adapter.Call(ctx, args)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if api.IsValidationError(err) {
			logging.Info("Bridge", "Invocation %s of %s rejected: %v", invocationID, t.name, err)
		} else {
			logging.Warn("Bridge", "Invocation %s of %s failed after %s: %v", invocationID, t.name, time.Since(start), err)
		}
		return api.HandleError(err)
	}

	text, err := t.limiter.apply(ctx, t.name, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logging.Warn("Bridge", "Invocation %s of %s returned an unencodable result: %v", invocationID, t.name, err)
		return api.HandleErrorWithPrefix(err, "Invalid result")
	}

	logging.Debug("Bridge", "Invocation %s of %s completed in %s", invocationID, t.name, time.Since(start))
	return &api.CallToolResult{Content: []interface{}{text}}
}
