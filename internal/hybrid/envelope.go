package hybrid

import (
	"encoding/binary"
	"fmt"

	"github.com/pulsar-sentinel/core/internal/pqcrypto"
)

var (
	magicHybrid = [4]byte{'P', 'S', 'H', '1'}
	magicAES    = [4]byte{'P', 'S', 'A', '1'}
)

const (
	algMlKem768  byte = 0x01
	algMlKem1024 byte = 0x02
)

func algByte(level pqcrypto.Level) (byte, error) {
	switch level {
	case pqcrypto.Level768:
		return algMlKem768, nil
	case pqcrypto.Level1024:
		return algMlKem1024, nil
	default:
		return 0, pqcrypto.ErrUnknownLevel
	}
}

func levelForAlg(b byte) (pqcrypto.Level, error) {
	switch b {
	case algMlKem768:
		return pqcrypto.Level768, nil
	case algMlKem1024:
		return pqcrypto.Level1024, nil
	default:
		return 0, pqcrypto.ErrAlgorithmMismatch
	}
}

// encodeHybridEnvelope lays out the PSH1 wire format:
// magic(4) | alg(1) | kem_ct_len(2) | kem_ct | nonce(12) | aead_ct_len(4) | aead_ct
func encodeHybridEnvelope(level pqcrypto.Level, kemCt, nonce, aeadCt []byte) ([]byte, error) {
	alg, err := algByte(level)
	if err != nil {
		return nil, err
	}
	if len(kemCt) > 0xFFFF {
		return nil, fmt.Errorf("hybrid: kem ciphertext too large: %w", pqcrypto.ErrMalformed)
	}
	if len(nonce) != pqcrypto.AESGCMNonceLen {
		return nil, fmt.Errorf("hybrid: bad nonce length: %w", pqcrypto.ErrMalformed)
	}

	buf := make([]byte, 0, 4+1+2+len(kemCt)+12+4+len(aeadCt))
	buf = append(buf, magicHybrid[:]...)
	buf = append(buf, alg)
	buf = binary.BigEndian.AppendUint16(buf, uint16(len(kemCt)))
	buf = append(buf, kemCt...)
	buf = append(buf, nonce...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(aeadCt)))
	buf = append(buf, aeadCt...)
	return buf, nil
}

type decodedHybridEnvelope struct {
	Level  pqcrypto.Level
	KemCt  []byte
	Nonce  []byte
	AeadCt []byte
}

func decodeHybridEnvelope(raw []byte) (*decodedHybridEnvelope, error) {
	if len(raw) < 4+1+2 {
		return nil, fmt.Errorf("hybrid: envelope too short: %w", pqcrypto.ErrMalformed)
	}
	if [4]byte(raw[:4]) != magicHybrid {
		return nil, fmt.Errorf("hybrid: bad magic: %w", pqcrypto.ErrMalformed)
	}
	level, err := levelForAlg(raw[4])
	if err != nil {
		return nil, err
	}
	off := 5
	kemLen := int(binary.BigEndian.Uint16(raw[off:]))
	off += 2
	if len(raw) < off+kemLen+pqcrypto.AESGCMNonceLen+4 {
		return nil, fmt.Errorf("hybrid: envelope truncated: %w", pqcrypto.ErrMalformed)
	}
	kemCt := raw[off : off+kemLen]
	off += kemLen
	nonce := raw[off : off+pqcrypto.AESGCMNonceLen]
	off += pqcrypto.AESGCMNonceLen
	aeadLen := int(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	if len(raw) != off+aeadLen {
		return nil, fmt.Errorf("hybrid: envelope length mismatch: %w", pqcrypto.ErrMalformed)
	}
	return &decodedHybridEnvelope{Level: level, KemCt: kemCt, Nonce: nonce, AeadCt: raw[off:]}, nil
}

// encodeAESEnvelope lays out the PSA1 wire format:
// magic(4) | salt(16) | iv(16) | hmac(32) | ct_len(4) | ct
func encodeAESEnvelope(salt, iv, mac, ct []byte) []byte {
	buf := make([]byte, 0, 4+16+16+32+4+len(ct))
	buf = append(buf, magicAES[:]...)
	buf = append(buf, salt...)
	buf = append(buf, iv...)
	buf = append(buf, mac...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(len(ct)))
	buf = append(buf, ct...)
	return buf
}

type decodedAESEnvelope struct {
	Salt []byte
	IV   []byte
	MAC  []byte
	CT   []byte
}

func decodeAESEnvelope(raw []byte) (*decodedAESEnvelope, error) {
	const headerLen = 4 + 16 + 16 + 32 + 4
	if len(raw) < headerLen {
		return nil, fmt.Errorf("hybrid: aes envelope too short: %w", pqcrypto.ErrMalformed)
	}
	if [4]byte(raw[:4]) != magicAES {
		return nil, fmt.Errorf("hybrid: bad aes magic: %w", pqcrypto.ErrMalformed)
	}
	off := 4
	salt := raw[off : off+16]
	off += 16
	iv := raw[off : off+16]
	off += 16
	mac := raw[off : off+32]
	off += 32
	ctLen := int(binary.BigEndian.Uint32(raw[off:]))
	off += 4
	if len(raw) != off+ctLen {
		return nil, fmt.Errorf("hybrid: aes envelope length mismatch: %w", pqcrypto.ErrMalformed)
	}
	return &decodedAESEnvelope{Salt: salt, IV: iv, MAC: mac, CT: raw[off:]}, nil
}
