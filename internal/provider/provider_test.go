package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"vibesafe/internal/hashing"
	"vibesafe/internal/vserrors"
)

type fakeProvider struct {
	calls   int
	results []string
	errs    []error
}

func (f *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return "", f.errs[i]
	}
	if i < len(f.results) {
		return f.results[i], nil
	}
	return "", errors.New("fakeProvider: no more scripted responses")
}

func TestCachedReturnsCachedCompletionWithoutSecondCall(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeProvider{results: []string{"first"}}
	c := NewCached(fake, dir)

	req := Request{
		UnitID:   "ops/AddStrs",
		Prompt:   "do the thing",
		SpecHash: "abc123",
		Params:   hashing.ProviderParams{Seed: 1, Temperature: 0},
	}

	out1, err := c.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	out2, err := c.Complete(context.Background(), req)
	if err != nil {
		t.Fatalf("Complete (2nd): %v", err)
	}
	if out1 != out2 {
		t.Fatalf("cache miss: %q != %q", out1, out2)
	}
	if fake.calls != 1 {
		t.Errorf("expected exactly 1 underlying call, got %d", fake.calls)
	}
}

func TestCachedDistinguishesDifferentSpecHashes(t *testing.T) {
	dir := t.TempDir()
	fake := &fakeProvider{results: []string{"a", "b"}}
	c := NewCached(fake, dir)

	req1 := Request{UnitID: "u", Prompt: "p", SpecHash: "h1", Params: hashing.ProviderParams{Seed: 1}}
	req2 := Request{UnitID: "u", Prompt: "p", SpecHash: "h2", Params: hashing.ProviderParams{Seed: 1}}

	out1, _ := c.Complete(context.Background(), req1)
	out2, _ := c.Complete(context.Background(), req2)
	if out1 == out2 {
		t.Fatal("expected different spec hashes to produce different cache entries")
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 underlying calls, got %d", fake.calls)
	}
}

func TestWithRetryRetriesOnNetworkError(t *testing.T) {
	fake := &fakeProvider{
		errs:    []error{vserrors.NewProviderError("u", vserrors.ProviderNetwork, errors.New("timeout")), nil},
		results: []string{"", "recovered"},
	}
	r := NewWithRetry(fake)
	r.base = time.Millisecond
	r.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	out, err := r.Complete(context.Background(), Request{UnitID: "u"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "recovered" {
		t.Errorf("out = %q, want recovered", out)
	}
	if fake.calls != 2 {
		t.Errorf("expected 2 calls, got %d", fake.calls)
	}
}

func TestWithRetryDoesNotRetryAuthErrors(t *testing.T) {
	fake := &fakeProvider{
		errs: []error{vserrors.NewProviderError("u", vserrors.ProviderAuth, errors.New("bad key"))},
	}
	r := NewWithRetry(fake)
	r.sleep = func(ctx context.Context, d time.Duration) error {
		t.Fatal("should not sleep for a non-retryable error")
		return nil
	}

	_, err := r.Complete(context.Background(), Request{UnitID: "u"})
	if err == nil {
		t.Fatal("expected error")
	}
	if fake.calls != 1 {
		t.Errorf("expected exactly 1 call, got %d", fake.calls)
	}
}
