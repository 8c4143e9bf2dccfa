// Package capability implements dynamic discovery of the content backend's
// invocable operations. Discovered definitions are structurally validated,
// normalized for known backend serialization quirks, TTL-cached, and compiled
// into a registry of per-capability parameter validators paired with the
// authorization requirements each capability declares.
//
// Validation and conversion have different failure scopes on purpose. A
// single malformed entry fails the entire discovery call: a backend shipping
// broken definitions is a deployment problem to surface loudly. A schema
// that validates structurally but cannot be compiled into a validator only
// skips that capability, so one exotic schema never takes down the rest of
// the catalog. The one exception: if no capability at all survives
// compilation, registration fails hard, because a gateway serving an empty
// catalog is worse than one that refuses to start.
package capability
