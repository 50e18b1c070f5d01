package drivers

import (
	"context"
	"testing"
)

func TestCallableInvoke(t *testing.T) {
	driver := NewCallable()
	ctx := context.Background()

	var binding Func = func(_ context.Context, input any) (any, error) {
		return input.(int) * 2, nil
	}
	out, err := driver.Invoke(ctx, binding, 21)
	if err != nil {
		t.Fatalf("invoke failed: %v", err)
	}
	if out != 42 {
		t.Fatalf("unexpected output: %v", out)
	}

	// Raw function signatures work without the named type.
	out, err = driver.Invoke(ctx, func(input any) (any, error) { return input, nil }, "echo")
	if err != nil || out != "echo" {
		t.Fatalf("unexpected result: %v %v", out, err)
	}
}

func TestCallableRejectsNonCallable(t *testing.T) {
	driver := NewCallable()
	if _, err := driver.Invoke(context.Background(), "not a function", nil); err == nil {
		t.Fatalf("expected error for non-callable binding")
	}
}
