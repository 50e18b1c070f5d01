// Package drivers provides the built-in runtime backends invoked by the
// executor: in-process callables, HTTP endpoints, and MCP tools.
package drivers

import (
	"context"
	"fmt"
)

// Func is the binding type the callable driver executes.
type Func func(ctx context.Context, input any) (any, error)

// Callable runs specs whose binding is an in-process function.
type Callable struct{}

// NewCallable creates the callable driver.
func NewCallable() *Callable {
	return &Callable{}
}

// Invoke implements executor.Driver.
func (Callable) Invoke(ctx context.Context, binding any, input any) (any, error) {
	switch fn := binding.(type) {
	case Func:
		return fn(ctx, input)
	case func(ctx context.Context, input any) (any, error):
		return fn(ctx, input)
	case func(input any) (any, error):
		return fn(input)
	default:
		return nil, fmt.Errorf("binding of type %T is not callable", binding)
	}
}
