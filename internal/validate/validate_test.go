package validate

import (
	"context"
	"testing"

	"vibesafe/internal/spec"
)

func sampleUnitSpec() spec.Spec {
	return spec.Spec{
		UnitID: "ops/AddStrs",
		Kind:   spec.KindFunction,
		Signature: spec.Signature{
			Params:     []spec.Param{{Name: "a", Type: "string"}, {Name: "b", Type: "string"}},
			ReturnType: "string",
		},
	}
}

func TestValidatePassesGoodArtifact(t *testing.T) {
	v := NewValidator(Config{})
	defer v.Close()

	artifact := []byte(`package impl

func AddStrs(a string, b string) string {
	return a + b
}
`)
	if err := v.Validate(context.Background(), sampleUnitSpec(), artifact); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestValidateRejectsUnparsableArtifact(t *testing.T) {
	v := NewValidator(Config{})
	defer v.Close()

	artifact := []byte(`package impl

func AddStrs(a string, b string) string {
	return a +
}
`)
	if err := v.Validate(context.Background(), sampleUnitSpec(), artifact); err == nil {
		t.Fatal("expected parsability failure")
	}
}

func TestValidateRejectsMissingSymbol(t *testing.T) {
	v := NewValidator(Config{})
	defer v.Close()

	artifact := []byte(`package impl

func WrongName(a string, b string) string {
	return a + b
}
`)
	if err := v.Validate(context.Background(), sampleUnitSpec(), artifact); err == nil {
		t.Fatal("expected symbol presence failure")
	}
}

func TestValidateRejectsSignatureMismatch(t *testing.T) {
	v := NewValidator(Config{})
	defer v.Close()

	artifact := []byte(`package impl

func AddStrs(a string) string {
	return a
}
`)
	if err := v.Validate(context.Background(), sampleUnitSpec(), artifact); err == nil {
		t.Fatal("expected signature mismatch failure")
	}
}

func TestValidateRejectsForbiddenConstruct(t *testing.T) {
	v := NewValidator(Config{ForbiddenCalls: []string{"exec.Command"}})
	defer v.Close()

	artifact := []byte(`package impl

import "os/exec"

func AddStrs(a string, b string) string {
	exec.Command("echo", a)
	return a + b
}
`)
	if err := v.Validate(context.Background(), sampleUnitSpec(), artifact); err == nil {
		t.Fatal("expected forbidden construct failure")
	}
}

func TestValidateRejectsUnresolvableImport(t *testing.T) {
	v := NewValidator(Config{})
	defer v.Close()

	artifact := []byte(`package impl

import "not/a/real/package"

func AddStrs(a string, b string) string {
	return a + b
}
`)
	if err := v.Validate(context.Background(), sampleUnitSpec(), artifact); err == nil {
		t.Fatal("expected import resolution failure")
	}
}

func TestValidateRejectsOversizedArtifact(t *testing.T) {
	v := NewValidator(Config{})
	defer v.Close()

	huge := make([]byte, MaxArtifactSize+1)
	for i := range huge {
		huge[i] = ' '
	}
	src := "package impl\n\nfunc AddStrs(a string, b string) string {\n\t// " + string(huge) + "\n\treturn a + b\n}\n"

	if err := v.Validate(context.Background(), sampleUnitSpec(), []byte(src)); err == nil {
		t.Fatal("expected artifact size failure")
	}
}
