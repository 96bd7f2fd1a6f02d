// Package providers contains the shared OAuth exchange plumbing and the
// per-provider packages built on it.
//
// Each provider package wires endpoint defaults and a profile mapping into
// an OAuth2Exchanger, which satisfies core.Exchanger for registry use.
package providers
