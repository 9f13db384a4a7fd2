package analysis

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedOperator struct {
	name string
	data map[string]interface{}
}

func (f fixedOperator) Name() string                      { return f.name }
func (f fixedOperator) Run(ctx *Context) map[string]interface{} { return f.data }

type panicOperator struct{}

func (panicOperator) Name() string { return "boom" }
func (panicOperator) Run(ctx *Context) map[string]interface{} {
	panic("operator exploded")
}

func TestEngine_IsolatesOperatorFailures(t *testing.T) {
	ops := []Operator{
		fixedOperator{name: "ok", data: map[string]interface{}{"value": 1}},
		panicOperator{},
		fixedOperator{name: "recoverable", data: map[string]interface{}{"error": "degraded"}},
		fixedOperator{name: "after_panic", data: map[string]interface{}{"value": 2}},
	}
	engine := New(ops, zerolog.Nop())
	ctx := NewContext("TEST", closesBars(100), DefaultConfig())

	results := engine.Run(ctx)

	require.Len(t, results, 4)
	assert.Nil(t, results["ok"].Error)
	assert.Equal(t, 1, results["ok"].Data["value"])

	require.NotNil(t, results["boom"].Error)
	assert.Equal(t, "operator_panic", results["boom"].Error.Code)

	require.NotNil(t, results["recoverable"].Error)
	assert.Equal(t, "operator_error", results["recoverable"].Error.Code)
	assert.Equal(t, "degraded", results["recoverable"].Error.Message)

	assert.Nil(t, results["after_panic"].Error)
	assert.Equal(t, 2, results["after_panic"].Data["value"])
}
