package keystore

import "errors"

var (
	ErrSecretReleased        = errors.New("keystore: secret has been released")
	ErrSecretNotSerializable = errors.New("keystore: secret material must not be serialized")
	ErrKeyNotFound           = errors.New("keystore: key not found")
	ErrKeyStoreCorrupted     = errors.New("keystore: key store corrupted")
)
