// Package checkpoint persists validated implementations to a
// content-addressed directory layout and tracks which checkpoint hash is
// currently active per unit.
package checkpoint

// DepPin pins one resolved dependency's content hash at write time, so a
// later drift in a dependency's own source is visible in meta.toml even
// though it doesn't retroactively change H_chk.
type DepPin struct {
	Name        string `toml:"name"`
	ContentHash string `toml:"content_hash"`
}

// HashInputsEcho is a diagnostic-only copy of the fields that produced
// SpecHash, stored for humans debugging a drift report; nothing reads it
// back into a hash computation.
type HashInputsEcho struct {
	SignatureText    string `toml:"signature_text"`
	TemplateID       string `toml:"template_id"`
	ProviderIdentity string `toml:"provider_identity"`
}

// Meta is the checkpoint's meta.toml contents (§4.6).
type Meta struct {
	UnitID       string          `toml:"unit_id"`
	SpecHash     string          `toml:"spec_hash"`
	PromptHash   string          `toml:"prompt_hash"`
	ImplHash     string          `toml:"impl_hash"`
	CheckpointID string          `toml:"checkpoint_id"`
	Provider     string          `toml:"provider"`
	Model        string          `toml:"model"`
	Seed         int             `toml:"seed"`
	Temperature  float64         `toml:"temperature"`
	CreatedAt    string          `toml:"created_at"`
	GateReport   []GateResult    `toml:"gate_report"`
	HashInputs   HashInputsEcho  `toml:"hash_inputs"`
	Deps         []DepPin        `toml:"deps"`
}

// GateResult is one verification gate's outcome, recorded for
// `vibesafe status` and `vibesafe check` to render without re-running
// gates.
type GateResult struct {
	Gate     string `toml:"gate"`
	Passed   bool   `toml:"passed"`
	Detail   string `toml:"detail,omitempty"`
	Category string `toml:"category,omitempty"`
}

// IndexEntry is one unit's active-checkpoint pointer in index.toml.
type IndexEntry struct {
	UnitID       string `toml:"unit_id"`
	ActiveHash   string `toml:"active_hash"`
	ActivatedAt  string `toml:"activated_at"`
}

// Index is the whole-project index.toml contents (§4.6).
type Index struct {
	Units []IndexEntry `toml:"units"`
}

// find returns the entry for unitID, or nil.
func (idx *Index) find(unitID string) *IndexEntry {
	for i := range idx.Units {
		if idx.Units[i].UnitID == unitID {
			return &idx.Units[i]
		}
	}
	return nil
}

// set upserts unitID's active hash.
func (idx *Index) set(unitID, hash, activatedAt string) {
	if e := idx.find(unitID); e != nil {
		e.ActiveHash = hash
		e.ActivatedAt = activatedAt
		return
	}
	idx.Units = append(idx.Units, IndexEntry{UnitID: unitID, ActiveHash: hash, ActivatedAt: activatedAt})
}
