// Package txtrack tags relational transactions with a correlation token.
//
// A Tracker wraps a Backend. Begin mints a token of the form
// "transaction-<uuid>", installs it in a Slot carried by the returned
// context and delegates to the backend. Commit moves the slot to a derived
// "committed" token once the backend reports success; Rollback clears the
// slot before delegating. Any code running with the transaction's context can
// look the token up with CurrentToken.
//
// Lifecycle events are handed to a Sink. Sink failures are logged and
// swallowed; backend failures are returned to the caller untouched.
package txtrack
