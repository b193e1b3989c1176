package cipher

// Plain is the identity Stream, the Go analogue of original_source's
// Plain cipher used when no encryption is configured.
type Plain struct{}

func (Plain) Encrypt(data []byte) ([]byte, error) { return data, nil }
func (Plain) Decrypt(data []byte) ([]byte, error) { return data, nil }
