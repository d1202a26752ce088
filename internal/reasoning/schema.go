package reasoning

// schema declares the fact predicates and derivation rules status queries
// run against. Every predicate a caller asserts through Reasoner's Assert*
// methods, and every rule Status/AllStatuses reads back, is declared here
// so schema and code can't silently drift apart.
const schema = `
Decl unit(UnitId).
Decl spec_hash(UnitId, Hash).
Decl checkpoint(UnitId, ChkHash, ChkSpecHash).
Decl active(UnitId, ChkHash).
Decl gate_result(UnitId, ChkHash, Gate, Passed).
Decl example_count(UnitId, Count).

Decl has_checkpoint(UnitId, ChkHash).
has_checkpoint(U, C) :- unit(U), checkpoint(U, C, _).

Decl active_pairing(UnitId, ChkHash, ChkSpecHash, CurrentHash).
active_pairing(U, C, CH, H) :- unit(U), spec_hash(U, H), active(U, C), checkpoint(U, C, CH).

Decl gate_failure(UnitId, ChkHash, Gate).
gate_failure(U, C, G) :- gate_result(U, C, G, /false).

Decl active_gate_failure(UnitId, Gate).
active_gate_failure(U, G) :- active(U, C), gate_failure(U, C, G).
`
