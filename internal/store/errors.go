package store

import "errors"

var (
	// ErrNotFound — job не найден или срок его хранения истёк.
	ErrNotFound = errors.New("job not found")

	// ErrUnknownBackend — неизвестное значение STORE_BACKEND.
	ErrUnknownBackend = errors.New("unknown store backend")
)
