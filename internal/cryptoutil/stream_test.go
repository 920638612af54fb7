package cryptoutil

import (
	"bytes"
	"testing"
)

func TestConfigRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{7}, 32)
	plain := []byte("storage:\n  backend: s3\n")

	sealed, err := EncryptConfig(plain, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Contains(sealed, []byte("backend")) {
		t.Fatalf("ciphertext leaks plaintext")
	}
	opened, err := DecryptConfig(sealed, key)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !bytes.Equal(opened, plain) {
		t.Fatalf("unexpected plaintext: %q", opened)
	}
}

func TestDecryptConfigWrongKey(t *testing.T) {
	sealed, err := EncryptConfig([]byte("x: 1"), bytes.Repeat([]byte{1}, 32))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := DecryptConfig(sealed, bytes.Repeat([]byte{2}, 32)); err == nil {
		t.Fatalf("expected error for wrong key")
	}
}

func TestDecryptConfigBadHeader(t *testing.T) {
	if _, err := DecryptConfig([]byte("NOPE\x00\x02payload"), make([]byte, 32)); err == nil {
		t.Fatalf("expected header error")
	}
}
