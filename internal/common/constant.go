// Package common contains shared constants and sentinel errors used across
// rexsync components.
package common

// AuthorizationHeaderName carries the REX bearer token on outbound requests.
const AuthorizationHeaderName = "Authorization"

// BearerPrefix precedes the token in the Authorization header value.
const BearerPrefix = "Bearer "
