package grpcstore

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/overlay/address"
	"xdao.co/overlay/storage"
)

// Server exposes a storage.Store over the Store gRPC service.
type Server struct {
	UnimplementedStoreServer
	Store storage.Store
}

func (s *Server) Put(ctx context.Context, in *wrapperspb.BytesValue) (*wrapperspb.StringValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	b := in.GetValue()
	a, err := s.Store.Put(b)
	if err != nil {
		return nil, toStatus(err)
	}
	if a != address.FromHash(b) {
		return nil, status.Error(codes.DataLoss, storage.ErrContentMismatch.Error())
	}
	return wrapperspb.String(a.Hex("")), nil
}

func (s *Server) Get(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BytesValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	a, err := address.ParseHex(in.GetValue(), "")
	if err != nil {
		return nil, toStatus(err)
	}
	b, err := s.Store.Get(a)
	if err != nil {
		return nil, toStatus(err)
	}
	if address.FromHash(b) != a {
		return nil, status.Error(codes.DataLoss, storage.ErrContentMismatch.Error())
	}
	return wrapperspb.Bytes(b), nil
}

func (s *Server) Has(ctx context.Context, in *wrapperspb.StringValue) (*wrapperspb.BoolValue, error) {
	_ = ctx
	if s == nil || s.Store == nil {
		return nil, status.Error(codes.FailedPrecondition, "missing store")
	}
	a, err := address.ParseHex(in.GetValue(), "")
	if err != nil {
		return nil, toStatus(err)
	}
	return wrapperspb.Bool(s.Store.Has(a)), nil
}
