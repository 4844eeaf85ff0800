package auth

import "errors"

// ErrInvalidHash is returned when a stored credential hash is not a
// well-formed Argon2id PHC string.
var ErrInvalidHash = errors.New("auth: invalid credential hash")
