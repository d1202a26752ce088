// Package hashing computes the three deterministic digests that pin a
// vibesafe unit to its generated implementation: H_spec, H_prompt, and
// H_chk. H_spec and H_chk are SHA-256 over a canonical byte stream of
// length-prefixed fields in a fixed order, so no delimiter collision
// between fields can change the hash of unrelated content; H_prompt and
// H_impl are SHA-256 of the raw prompt and artifact bytes.
package hashing

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"sort"
	"strconv"
)

// SchemaVersion is bound to this hashing scheme. Bumping it invalidates
// every previously computed H_spec.
const SchemaVersion = "vibesafe/1"

// DependencyEntry is one resolved (or tombstoned) reference from a unit's
// pre-hole source.
type DependencyEntry struct {
	Name         string
	ResolvedPath string
	ContentHash  string
}

// ProviderParams are the deterministic knobs forwarded to the provider and
// folded into H_spec so a temperature or seed change is observable.
type ProviderParams struct {
	Seed        int
	Temperature float64
	MaxTokens   int // 0 means "not set"
}

// SpecHashInputs is every field enumerated in the specification's H_spec
// computation, in order.
type SpecHashInputs struct {
	Signature        string
	Docstring        string // already normalized
	PreHoleSource    string
	TemplateID       string
	ProviderIdentity string // "<kind>:<model>"
	Params           ProviderParams
	Dependencies     []DependencyEntry
}

// digest accumulates length-prefixed fields and returns their
// SHA-256 hex digest.
type digest struct {
	h []byte
}

func newDigest() *digest {
	return &digest{}
}

func (d *digest) field(b []byte) *digest {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(b)))
	d.h = append(d.h, lenBuf[:]...)
	d.h = append(d.h, b...)
	return d
}

func (d *digest) str(s string) *digest { return d.field([]byte(s)) }

func (d *digest) sum() string {
	sum := sha256.Sum256(d.h)
	return hex.EncodeToString(sum[:])
}

// SpecHash computes H_spec from the ordered inputs of §4.2. Any change to
// any field changes the result (Invariant 2 / Property P2).
func SpecHash(in SpecHashInputs) string {
	d := newDigest()
	d.str(SchemaVersion)
	d.str(in.Signature)
	d.str(in.Docstring)
	d.str(in.PreHoleSource)
	d.str(in.TemplateID)
	d.str(in.ProviderIdentity)
	d.str(strconv.Itoa(in.Params.Seed))
	d.str(strconv.FormatFloat(in.Params.Temperature, 'g', -1, 64))
	if in.Params.MaxTokens != 0 {
		d.str(strconv.Itoa(in.Params.MaxTokens))
	} else {
		d.str("")
	}
	d.str(DependencyDigestText(in.Dependencies))
	return d.sum()
}

// DependencyDigestText returns the value folded into H_spec for the
// dependency multiset: the SHA-256 hex digest of name, resolved_path and
// content_hash as length-prefixed fields per entry, entries sorted by
// name. An empty multiset yields "".
func DependencyDigestText(deps []DependencyEntry) string {
	if len(deps) == 0 {
		return ""
	}
	sorted := make([]DependencyEntry, len(deps))
	copy(sorted, deps)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	d := newDigest()
	for _, dep := range sorted {
		d.str(dep.Name)
		d.str(dep.ResolvedPath)
		d.str(dep.ContentHash)
	}
	return d.sum()
}

// PromptHash computes H_prompt: SHA-256 of the rendered prompt bytes.
func PromptHash(renderedPrompt string) string {
	sum := sha256.Sum256([]byte(renderedPrompt))
	return hex.EncodeToString(sum[:])
}

// ImplHash computes H_impl: SHA-256 of the validated artifact bytes.
func ImplHash(implBytes []byte) string {
	sum := sha256.Sum256(implBytes)
	return hex.EncodeToString(sum[:])
}

// CheckpointHash computes H_chk = sha256(H_spec || H_prompt || H_impl).
func CheckpointHash(specHash, promptHash, implHash string) string {
	d := newDigest()
	d.str(specHash)
	d.str(promptHash)
	d.str(implHash)
	return d.sum()
}

// ShortHash returns the first n hex characters of a full digest, used for
// display and for meta.toml's checkpoint_id; checkpoint directories are
// named by the full H_chk.
func ShortHash(full string, n int) string {
	if n >= len(full) {
		return full
	}
	return full[:n]
}

// HashCode returns the SHA-256 hex digest of an arbitrary code string.
func HashCode(code string) string {
	sum := sha256.Sum256([]byte(code))
	return hex.EncodeToString(sum[:])
}
