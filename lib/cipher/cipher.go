// Copyright (C) 2017 François Laurent
//
// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this file,
// You can obtain one at http://mozilla.org/MPL/2.0/.

// Package cipher provides the stream-transformer abstraction spec.md §1
// names as an out-of-scope collaborator (concrete ciphers are not this
// repository's concern) while still giving it a minimal concrete shape,
// since original_source ships exactly one: Blowfish in OFB/CFB mode.
package cipher

// Stream encrypts and decrypts whole blobs before they reach the relay
// and after they leave it. Implementations prepend whatever they need
// (an IV, a nonce) to the ciphertext themselves, so Decrypt(Encrypt(x))
// == x for any Stream value without external bookkeeping.
type Stream interface {
	Encrypt(plaintext []byte) ([]byte, error)
	Decrypt(ciphertext []byte) ([]byte, error)
}

// Registry mirrors original_source's module-level __ciphers__ dict and
// by_cipher lookup (syncacre/encryption/__init__.py).
var registry = map[string]func(passphrase []byte) (Stream, error){
	"plain": func([]byte) (Stream, error) { return Plain{}, nil },
	"blowfish": func(passphrase []byte) (Stream, error) {
		return NewBlowfish(passphrase)
	},
}

// ByName builds the Stream registered under name, the Go analogue of
// by_cipher(cipher).
func ByName(name string, passphrase []byte) (Stream, error) {
	ctor, ok := registry[name]
	if !ok {
		return nil, &UnknownCipherError{Name: name}
	}
	return ctor(passphrase)
}

// UnknownCipherError reports a cipher name absent from the registry.
type UnknownCipherError struct{ Name string }

func (e *UnknownCipherError) Error() string { return "cipher: unknown cipher " + e.Name }
