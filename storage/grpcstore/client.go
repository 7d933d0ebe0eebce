package grpcstore

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"xdao.co/overlay/address"
	"xdao.co/overlay/storage"
)

// Client is a storage.Store backed by a remote Store service. The plain
// methods apply Timeout; the Context variants use the caller's deadline.
type Client struct {
	cc    *grpc.ClientConn
	store StoreClient

	// Timeout bounds each call made through Put, Get and Has. Zero means none.
	Timeout time.Duration
}

var _ storage.Store = (*Client)(nil)

type DialOptions struct {
	// Timeout bounds connection setup. Zero means none.
	Timeout time.Duration
	// MaxMsgBytes caps request and response size. Zero keeps grpc defaults.
	MaxMsgBytes int
	// Extra is appended last, e.g. a bufconn dialer.
	Extra []grpc.DialOption
}

func (o DialOptions) grpcOptions() []grpc.DialOption {
	out := []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	if n := o.MaxMsgBytes; n > 0 {
		out = append(out, grpc.WithDefaultCallOptions(grpc.MaxCallRecvMsgSize(n), grpc.MaxCallSendMsgSize(n)))
	}
	return append(out, o.Extra...)
}

// Dial connects to an overlayd store at target (host:port).
func Dial(target string, opts DialOptions) (*Client, error) {
	ctx, cancel := context.WithCancel(context.Background())
	if opts.Timeout > 0 {
		cancel()
		ctx, cancel = context.WithTimeout(context.Background(), opts.Timeout)
	}
	defer cancel()

	cc, err := grpc.DialContext(ctx, target, opts.grpcOptions()...)
	if err != nil {
		return nil, storage.IOError("dial "+target, err)
	}
	return &Client{cc: cc, store: NewStoreClient(cc)}, nil
}

func (c *Client) Close() error {
	if c == nil || c.cc == nil {
		return nil
	}
	return c.cc.Close()
}

func (c *Client) Put(data []byte) (address.Address, error) {
	ctx, cancel := c.callContext()
	defer cancel()
	return c.PutContext(ctx, data)
}

func (c *Client) Get(a address.Address) ([]byte, error) {
	ctx, cancel := c.callContext()
	defer cancel()
	return c.GetContext(ctx, a)
}

// Has reports false on transport failure as well as on absence.
func (c *Client) Has(a address.Address) bool {
	ctx, cancel := c.callContext()
	defer cancel()
	ok, err := c.HasContext(ctx, a)
	return err == nil && ok
}

// PutContext stores data remotely and checks the server derived the same
// address locally computed from data.
func (c *Client) PutContext(ctx context.Context, data []byte) (address.Address, error) {
	reply, err := c.store.Put(ctx, wrapperspb.Bytes(data))
	if err != nil {
		return address.Address{}, fromStatus(err)
	}
	got, err := address.ParseHex(reply.GetValue(), "")
	if err != nil {
		return address.Address{}, err
	}
	if got != address.FromHash(data) {
		return address.Address{}, storage.ErrContentMismatch
	}
	return got, nil
}

// GetContext fetches a and re-hashes the reply before returning it.
func (c *Client) GetContext(ctx context.Context, a address.Address) ([]byte, error) {
	reply, err := c.store.Get(ctx, wrapperspb.String(a.Hex("")))
	if err != nil {
		return nil, fromStatus(err)
	}
	b := reply.GetValue()
	if address.FromHash(b) != a {
		return nil, storage.ErrContentMismatch
	}
	if b == nil {
		b = []byte{}
	}
	return b, nil
}

func (c *Client) HasContext(ctx context.Context, a address.Address) (bool, error) {
	reply, err := c.store.Has(ctx, wrapperspb.String(a.Hex("")))
	if err != nil {
		return false, fromStatus(err)
	}
	return reply.GetValue(), nil
}

func (c *Client) callContext() (context.Context, context.CancelFunc) {
	if c.Timeout > 0 {
		return context.WithTimeout(context.Background(), c.Timeout)
	}
	return context.WithCancel(context.Background())
}
