// Package providers contains identity-provider clients that satisfy
// core.IdentityProvider.
package providers
