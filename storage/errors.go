package storage

import "xdao.co/overlay/model"

// Sentinels for errors.Is. Errors returned by backends carry the same code
// with a more specific message and, for I/O failures, the underlying cause.
var (
	ErrNotFound        = model.NewError(model.ErrNotFound, "storage: not found")
	ErrAlreadyExists   = model.NewError(model.ErrAlreadyExists, "storage: already exists")
	ErrContentMismatch = model.NewError(model.ErrContentMismatch, "storage: content does not match address")
	ErrIO              = model.NewError(model.ErrStorageIO, "storage: i/o failure")
)

func IsNotFound(err error) bool { return model.HasCode(err, model.ErrNotFound) }

func IsAlreadyExists(err error) bool { return model.HasCode(err, model.ErrAlreadyExists) }

// IOError wraps a filesystem or transport failure as STORAGE_IO.
func IOError(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return model.WrapError(model.ErrStorageIO, "storage: "+op, cause)
}
