package cryptoutil

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/minio/sio"
)

const (
	configMagic = "FBD1"
	configVer   = uint16(2)
)

// EncryptConfig encrypts a config payload using DARE (sio) behind a small header.
func EncryptConfig(plain []byte, key []byte) ([]byte, error) {
	buf := &bytes.Buffer{}
	if _, err := buf.WriteString(configMagic); err != nil {
		return nil, err
	}
	if err := binary.Write(buf, binary.BigEndian, configVer); err != nil {
		return nil, err
	}
	if _, err := sio.Encrypt(buf, bytes.NewReader(plain), sio.Config{Key: key}); err != nil {
		return nil, fmt.Errorf("encrypt config: %w", err)
	}
	return buf.Bytes(), nil
}

// DecryptConfig decrypts a config payload.
func DecryptConfig(ciphertext []byte, key []byte) ([]byte, error) {
	if len(ciphertext) < 4+2 {
		return nil, fmt.Errorf("config cipher too short")
	}
	if string(ciphertext[:4]) != configMagic {
		return nil, fmt.Errorf("invalid config header")
	}
	ver := binary.BigEndian.Uint16(ciphertext[4:6])
	if ver != configVer {
		return nil, fmt.Errorf("unsupported config version %d", ver)
	}
	plain := &bytes.Buffer{}
	if _, err := sio.Decrypt(plain, bytes.NewReader(ciphertext[6:]), sio.Config{Key: key}); err != nil {
		return nil, err
	}
	return plain.Bytes(), nil
}
