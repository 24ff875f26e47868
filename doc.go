// Package samlengine implements a SAML 2.0 Single Sign-On engine: assertion
// issuance and validation, request/response construction, replay and
// timestamp defenses, trust/metadata management, and session lifecycle.
//
// The engine is usable on both sides of the protocol. The ServiceProvider
// surface consumes assertions and maintains local sessions; the
// IdentityProvider surface issues signed responses for a configured user
// store. Transport bindings (HTTP-Redirect, HTTP-POST, SOAP) are alternative
// encodings of the same logical messages; the validator and builder are
// binding-agnostic.
//
// The package follows a hexagonal layout: domain types and port interfaces
// live under internal/core, adapters under internal/adapters, and this root
// package hosts the engine services plus re-exports of the stable surface.
package samlengine
