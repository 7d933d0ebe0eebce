package main

import (
	"context"
	crand "crypto/rand"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/grpc"

	"xdao.co/overlay/address"
	"xdao.co/overlay/keys"
	"xdao.co/overlay/node"
	"xdao.co/overlay/rpc"
	"xdao.co/overlay/storage"
	"xdao.co/overlay/storage/grpcstore"
	"xdao.co/overlay/storage/registry"
	"xdao.co/overlay/storage/storeconfig"
	"xdao.co/overlay/storage/storemetrics"
	"xdao.co/overlay/transport/zmqrpc"

	_ "xdao.co/overlay/storage/localfs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("overlayd", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var o options
	fs.StringVar(&o.listen, "listen", "127.0.0.1:7777", "gRPC store listen address")
	fs.StringVar(&o.rpcListen, "rpc-listen", "", "ZeroMQ endpoint for incoming RPCs, e.g. tcp://127.0.0.1:7778 (disabled when empty)")
	fs.StringVar(&o.metricsListen, "metrics-listen", "", "HTTP address serving /metrics (disabled when empty)")
	fs.StringVar(&o.backend, "backend", "localfs", "Store backend name")
	fs.StringVar(&o.storeConfig, "store-config", "", "JSON store config (see storeconfig); replaces --backend")
	fs.StringVar(&o.keyDir, "key-dir", "", "Key directory (default ~/.overlay/keys)")
	fs.StringVar(&o.key, "key", "node", "Name of the node key; created on first start")
	fs.StringVar(&o.keyAlg, "key-alg", "", "Algorithm for a newly created node key: "+strings.Join(keys.Algorithms, ", ")+" (default ed25519; must match an existing key)")
	configPath := fs.String("config", "", "JSON node config")
	listBackends := fs.Bool("list-backends", false, "List supported backends and exit")
	registry.RegisterFlags(fs, registry.UsageDaemon)

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *listBackends {
		for _, b := range registry.List(registry.UsageDaemon) {
			if b.Description == "" {
				_, _ = fmt.Fprintf(out, "%s\n", b.Name)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s\t%s\n", b.Name, b.Description)
		}
		return 0
	}
	if *configPath != "" {
		c, err := loadNodeConfig(*configPath)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		set := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
		o.merge(c, set)
	}

	logger := log.New(errOut, "overlayd: ", log.LstdFlags)

	store, closeFn, err := openStore(o)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	if closeFn != nil {
		defer closeFn()
	}

	self, err := nodeAddress(o, logger)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	reg := prometheus.NewRegistry()
	metered := storemetrics.Wrap(store, storemetrics.NewMetrics("overlay", reg))

	if err := serve(ctx, o, self, metered, reg, logger); err != nil {
		logger.Print(err)
		return 1
	}
	return 0
}

func openStore(o options) (storage.Store, func() error, error) {
	if o.storeConfig != "" {
		c, err := storeconfig.LoadFile(o.storeConfig)
		if err != nil {
			return nil, nil, err
		}
		return c.Open(registry.UsageDaemon, "")
	}
	if o.store != nil {
		return o.store.Open(registry.UsageDaemon, "")
	}
	return registry.Open(o.backend, registry.UsageDaemon)
}

func nodeAddress(o options, logger *log.Logger) (address.Address, error) {
	dir := o.keyDir
	if dir == "" {
		d, err := keys.DefaultDirectory()
		if err != nil {
			return address.Address{}, err
		}
		dir = d
	}
	ks, err := keys.OpenKeyStore(dir)
	if err != nil {
		return address.Address{}, err
	}
	signer, created, err := ks.LoadOrCreate(o.key, o.keyAlg, crand.Reader)
	if err != nil {
		return address.Address{}, err
	}
	self := keys.SignerAddress(signer)
	if created {
		logger.Printf("created %s key %q in %s", signer.Algorithm(), o.key, dir)
	}
	logger.Printf("node address %s", self.Hex(""))
	return self, nil
}

func serve(ctx context.Context, o options, self address.Address, store storage.Store, reg *prometheus.Registry, logger *log.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	errCh := make(chan error, 3)

	lis, err := net.Listen("tcp", o.listen)
	if err != nil {
		return err
	}
	srv := grpc.NewServer()
	grpcstore.RegisterStoreServer(srv, &grpcstore.Server{Store: store})
	go func() { errCh <- srv.Serve(lis) }()
	defer srv.GracefulStop()
	logger.Printf("store listening on %s", lis.Addr())

	if o.metricsListen != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		hs := &http.Server{Addr: o.metricsListen, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
		defer func() {
			sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer scancel()
			_ = hs.Shutdown(sctx)
		}()
		logger.Printf("metrics on http://%s/metrics", o.metricsListen)
	}

	if o.rpcListen != "" {
		recv, err := zmqrpc.Listen(ctx, o.rpcListen, logger)
		if err != nil {
			return err
		}
		defer recv.Close()
		h := node.New(self, store, logger)
		go func() {
			err := recv.Serve(ctx, func(ctx context.Context, m rpc.Message) error {
				_, err := h.HandleRPC(ctx, m)
				return err
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				errCh <- err
			}
		}()
		logger.Printf("rpc listening on %s", o.rpcListen)
	}

	select {
	case <-ctx.Done():
		logger.Print("shutting down")
		return nil
	case err := <-errCh:
		return err
	}
}
