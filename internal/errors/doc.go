// Package errors defines the typed error taxonomy shared across this module.
//
// Transport errors and protocol errors are separate classes from the
// error codes carried inside a protocol Response; see the root package
// documentation for how callers are expected to distinguish them.
package errors
