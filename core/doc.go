// Package core owns the client session state machine and the contracts it
// drives: the identity provider, session listeners and the read side consumed
// by the request gateway. Adapters depend on this package; core must not
// depend on transport or provider implementations.
package core
