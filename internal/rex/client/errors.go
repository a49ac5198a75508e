package client

import "errors"

// ErrCouldNotAuthenticate means no usable token could be obtained for the
// request, either because login failed or because REX rejected the token
// obtained by a fresh login.
var ErrCouldNotAuthenticate = errors.New("could not authenticate request")
