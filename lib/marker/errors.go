package marker

import "errors"

// ErrInvalidHash is returned by Codec.MessageName when the configured
// HashFunc produces a string containing '.', which would make the encoded
// message name ambiguous to decode (spec.md §4.1).
var ErrInvalidHash = errors.New("marker: message hash must not contain '.'")

// ErrNotSpecial is returned by Codec.FromSpecial when the given path is not
// a placeholder, lock or message name.
var ErrNotSpecial = errors.New("marker: not a special filename")
