// Package etl implements the validation-and-reconciliation core of the
// sales star-schema pipeline.
//
// The package is organized around six components, in dependency order:
//
//   - Canonicalizer (canonical.go): deterministic attribute normalization
//   - Dimension builders (dimensions.go): date, item and buyer candidates
//   - Validator (validate.go): balance checks with a drop-rate ceiling
//   - Reconciler (reconcile.go): natural-key anti-join against the warehouse
//   - Fact resolver (facts.go): surrogate-key join producing fact rows
//   - Pipeline (pipeline.go): the orchestrating state machine
//
// The package owns no I/O. Raw records arrive through a RecordSource,
// warehouse access goes through the Store interface, and intermediate
// artifacts leave through an ArtifactSink, so the core can be exercised
// entirely in memory.
package etl
