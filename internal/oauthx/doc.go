// Package oauthx builds PKCE-protected authorization requests, parses
// provider callbacks, and redeems authorization codes for tokens with
// bounded retries.
package oauthx
