package analysis

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// Operator is one pipeline step. By convention a recoverable failure is
// signaled by returning a map containing an "error" key rather than a
// second return value; a panic is treated as an operator crash and is
// caught by the Engine so it never aborts sibling operators.
type Operator interface {
	Name() string
	Run(ctx *Context) map[string]interface{}
}

// OpError is the error envelope attached to a failed or crashed operator.
type OpError struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity"`
}

// OperatorResult is one operator's entry in the engine's result map.
type OperatorResult struct {
	Data       map[string]interface{} `json:"data,omitempty"`
	Error      *OpError                `json:"error,omitempty"`
	DurationMs int64                   `json:"duration_ms"`
}

// Engine runs a declared list of operators sequentially over one Context,
// isolating each operator's failure from the rest (spec §4.7). Grounded on
// the recover-and-log pattern used for scheduled jobs (internal/scheduler),
// generalized here from one job to one operator per pipeline run.
type Engine struct {
	operators []Operator
	log       zerolog.Logger
}

// New builds an Engine over the given ordered operator list.
func New(operators []Operator, log zerolog.Logger) *Engine {
	return &Engine{operators: operators, log: log.With().Str("component", "analysis_engine").Logger()}
}

// Run executes every operator against ctx and returns one envelope per
// operator, keyed by operator name.
func (e *Engine) Run(ctx *Context) map[string]OperatorResult {
	results := make(map[string]OperatorResult, len(e.operators))
	for _, op := range e.operators {
		results[op.Name()] = e.runOne(ctx, op)
	}
	return results
}

func (e *Engine) runOne(ctx *Context, op Operator) (result OperatorResult) {
	started := time.Now()
	defer func() {
		result.DurationMs = time.Since(started).Milliseconds()
		if r := recover(); r != nil {
			e.log.Error().Str("operator", op.Name()).Interface("panic", r).Msg("operator crashed")
			result = OperatorResult{
				Error:      &OpError{Code: "operator_panic", Message: fmt.Sprint(r), Severity: "error"},
				DurationMs: time.Since(started).Milliseconds(),
			}
		}
	}()

	data := op.Run(ctx)
	if msg, ok := data["error"].(string); ok {
		return OperatorResult{Error: &OpError{Code: "operator_error", Message: msg, Severity: "warning"}}
	}
	return OperatorResult{Data: data}
}
