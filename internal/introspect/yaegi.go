package introspect

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"
)

// Callable wraps a yaegi-interpreted function value so callers don't need
// to know its exact reflected signature.
type Callable struct {
	value reflect.Value
}

// Call invokes the wrapped function with the given arguments, returning its
// results as []any. Argument and return values must already be assignable
// to the underlying function's reflected parameter/result types.
func (c Callable) Call(args ...any) (results []any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("introspect: call panicked: %v", r)
		}
	}()

	in := make([]reflect.Value, len(args))
	for i, a := range args {
		in[i] = reflect.ValueOf(a)
	}
	out := c.value.Call(in)
	results = make([]any, len(out))
	for i, v := range out {
		results[i] = v.Interface()
	}
	return results, nil
}

// Interpreter wraps a yaegi interp.Interpreter pre-loaded with the Go
// standard library. Each Interpreter is single-use per unit: interpreting
// two different candidate implementations for the same unit in the same
// process uses two Interpreters, since yaegi has no notion of unloading a
// package once defined.
type Interpreter struct {
	i *interp.Interpreter
}

// NewInterpreter creates a fresh yaegi interpreter with the standard
// library symbols loaded, mirroring the sandboxing setup in
// autopoiesis.YaegiExecutor.
func NewInterpreter() *Interpreter {
	i := interp.New(interp.Options{})
	_ = i.Use(stdlib.Symbols)
	return &Interpreter{i: i}
}

// LoadArtifact interprets implSource (a complete impl.go file, package
// "impl") and returns a Callable bound to funcName.
func (in *Interpreter) LoadArtifact(ctx context.Context, implSource, funcName string) (Callable, error) {
	source := ensurePackage(implSource, "impl")
	if _, err := in.i.EvalWithContext(ctx, source); err != nil {
		return Callable{}, fmt.Errorf("introspect: interpret artifact: %w", err)
	}
	v, err := in.i.EvalWithContext(ctx, "impl."+funcName)
	if err != nil {
		return Callable{}, fmt.Errorf("introspect: symbol %s not found: %w", funcName, err)
	}
	return Callable{value: v}, nil
}

// EvalExpression evaluates a doctest-style expression (e.g.
// `AddStrs("2", "3")`) against a function already bound in scope under its
// bare name, and returns its printed representation for comparison against
// an Example's ExpectedOutput.
func (in *Interpreter) EvalExpression(ctx context.Context, funcName, expr string) (string, error) {
	// Bind the interpreted function under its bare name so example
	// expressions can call it exactly as written in the docstring.
	bindSrc := fmt.Sprintf("%s := impl.%s", funcName, funcName)
	if _, err := in.i.EvalWithContext(ctx, bindSrc); err != nil {
		return "", fmt.Errorf("introspect: bind %s: %w", funcName, err)
	}
	v, err := in.i.EvalWithContext(ctx, expr)
	if err != nil {
		return "", fmt.Errorf("introspect: eval %q: %w", expr, err)
	}
	return stringifyResult(v), nil
}

func stringifyResult(v reflect.Value) string {
	if !v.IsValid() {
		return "<nil>"
	}
	return fmt.Sprintf("%#v", v.Interface())
}

func ensurePackage(source, pkgName string) string {
	trimmed := strings.TrimSpace(source)
	if strings.HasPrefix(trimmed, "package ") {
		return trimmed
	}
	return "package " + pkgName + "\n\n" + trimmed
}
