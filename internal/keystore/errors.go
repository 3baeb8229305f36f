package keystore

import "errors"

var (
	// ErrInitialization is returned by Open when the store cannot be
	// created: bad password, corrupt or unsupported content, or a missing
	// required file.
	ErrInitialization = errors.New("unable to initialise key store")

	// ErrPersistence is returned when loading or saving fails. The
	// committed store and the file on disk are left as they were.
	ErrPersistence = errors.New("unable to complete key store operation")

	// ErrNoBackingFile is returned by Save on a memory-only store.
	ErrNoBackingFile = errors.New("key store has no backing file")

	// ErrKeyStoreOperation is returned when an alias mutation is rejected.
	ErrKeyStoreOperation = errors.New("key store operation rejected")

	// ErrNotFound is returned when an alias does not exist.
	ErrNotFound = errors.New("alias not found")

	// ErrForeignLoadKey is returned by Revert for a key that was not
	// issued by the same store.
	ErrForeignLoadKey = errors.New("load key does not belong to this store")

	errRequiredMissing = errors.New("required store file does not exist")
)
