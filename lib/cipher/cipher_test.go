package cipher

import "testing"

func TestPlainRoundTrip(t *testing.T) {
	var p Plain
	data := []byte("hello world")
	enc, err := p.Encrypt(data)
	if err != nil {
		t.Fatal(err)
	}
	dec, err := p.Decrypt(enc)
	if err != nil {
		t.Fatal(err)
	}
	if string(dec) != string(data) {
		t.Fatalf("Decrypt(Encrypt(x)) = %q, want %q", dec, data)
	}
}

func TestBlowfishRoundTrip(t *testing.T) {
	b, err := NewBlowfish([]byte("a test passphrase"))
	if err != nil {
		t.Fatalf("NewBlowfish: %v", err)
	}
	data := []byte("the quick brown fox jumps over the lazy dog")
	enc, err := b.Encrypt(data)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if len(enc) != blowfishBlockSize+len(data) {
		t.Fatalf("Encrypt length = %d, want %d", len(enc), blowfishBlockSize+len(data))
	}
	dec, err := b.Decrypt(enc)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(dec) != string(data) {
		t.Fatalf("Decrypt(Encrypt(x)) = %q, want %q", dec, data)
	}
}

func TestByNameUnknown(t *testing.T) {
	if _, err := ByName("rot13", nil); err == nil {
		t.Fatalf("ByName should reject an unregistered cipher name")
	}
}

func TestByNamePlainAndBlowfish(t *testing.T) {
	if _, err := ByName("plain", nil); err != nil {
		t.Fatalf("ByName(plain): %v", err)
	}
	if _, err := ByName("blowfish", []byte("passphrase")); err != nil {
		t.Fatalf("ByName(blowfish): %v", err)
	}
}
