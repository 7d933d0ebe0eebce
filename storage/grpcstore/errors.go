package grpcstore

import (
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"xdao.co/overlay/model"
	"xdao.co/overlay/storage"
)

// toStatus maps store errors onto gRPC status codes.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	switch model.CodeOf(err) {
	case model.ErrNotFound:
		return status.Error(codes.NotFound, err.Error())
	case model.ErrInvalidAddress:
		return status.Error(codes.InvalidArgument, err.Error())
	case model.ErrContentMismatch:
		return status.Error(codes.DataLoss, err.Error())
	case model.ErrAlreadyExists:
		return status.Error(codes.AlreadyExists, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// fromStatus maps a gRPC failure back onto the error taxonomy. Transport
// failures become STORAGE_IO.
func fromStatus(err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return storage.IOError("grpc", err)
	}
	switch st.Code() {
	case codes.NotFound:
		return model.WrapError(model.ErrNotFound, st.Message(), err)
	case codes.InvalidArgument:
		return model.WrapError(model.ErrInvalidAddress, st.Message(), err)
	case codes.DataLoss:
		return model.WrapError(model.ErrContentMismatch, st.Message(), err)
	case codes.AlreadyExists:
		return model.WrapError(model.ErrAlreadyExists, st.Message(), err)
	default:
		return storage.IOError("grpc", err)
	}
}
