package rpc

import "xdao.co/overlay/model"

// Sentinels for errors.Is; returned errors carry a more specific message.
var (
	ErrIncompleteMessage = model.NewError(model.ErrIncompleteMessage, "rpc: incomplete message")
	ErrMalformed         = model.NewError(model.ErrMalformedRPC, "rpc: malformed message")
)

func incomplete(kind Kind, field string) error {
	return model.Errorf(model.ErrIncompleteMessage, "rpc: %s requires %s", kind, field)
}

func malformed(format string, args ...any) error {
	return model.Errorf(model.ErrMalformedRPC, "rpc: "+format, args...)
}

func malformedCause(msg string, cause error) error {
	return model.WrapError(model.ErrMalformedRPC, "rpc: "+msg, cause)
}
