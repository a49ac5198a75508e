// Package client is the authenticated REX API client.
//
// Every request carries the cached bearer token. When REX rejects it, the
// client logs in once more and repeats the request once; a second rejection
// ends the call with ErrCouldNotAuthenticate. On top of that sit the
// listing operations: a paginated search over the configured feed and a
// single-listing read.
package client
