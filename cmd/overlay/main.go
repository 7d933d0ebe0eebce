package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/ipfs/go-cid"

	"xdao.co/overlay/address"
	"xdao.co/overlay/model"
	"xdao.co/overlay/rpc"
	"xdao.co/overlay/storage"
	"xdao.co/overlay/storage/bundle"
	"xdao.co/overlay/storage/registry"
	"xdao.co/overlay/transport/zmqrpc"

	_ "xdao.co/overlay/storage/grpcstore"
	_ "xdao.co/overlay/storage/localfs"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		printUsage(errOut)
		return 2
	}

	switch args[0] {
	case "store":
		return cmdStore(args[1:], out, errOut)
	case "get":
		return cmdGet(args[1:], out, errOut)
	case "has":
		return cmdHas(args[1:], out, errOut)
	case "export":
		return cmdExport(args[1:], out, errOut)
	case "import":
		return cmdImport(args[1:], out, errOut)
	case "rpc":
		return cmdRPC(args[1:], out, errOut)
	case "keys":
		return cmdKeys(args[1:], out, errOut)
	case "help", "-h", "--help":
		printUsage(out)
		return 0
	default:
		fmt.Fprintf(errOut, "unknown command: %s\n\n", args[0])
		printUsage(errOut)
		return 2
	}
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "overlay: content-addressed store and RPC tool")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage:")
	fmt.Fprintln(w, "  overlay store --backend localfs --localfs-dir <dir> <file>")
	fmt.Fprintln(w, "  overlay get --backend localfs --localfs-dir <dir> (--address <hex> | --cid <cid>) [--out <file>]")
	fmt.Fprintln(w, "  overlay has --backend grpc --grpc-target <host:port> (--address <hex> | --cid <cid>)")
	fmt.Fprintln(w, "  overlay export [common flags] --address <hex> [--cid <cid>] [--address ...] [--label name=<hex> ...] [--out <file>]")
	fmt.Fprintln(w, "  overlay import [common flags] [--ignore-unknown] <bundle.tar>")
	fmt.Fprintln(w, "  overlay rpc ping|lookup --source <ip:port> --destination <hex> [--send <endpoint>]")
	fmt.Fprintln(w, "  overlay rpc put --source <ip:port> --destination <hex> (--value <text> | --value-file <file>) [--send <endpoint>]")
	fmt.Fprintln(w, "  overlay keys create [--key-dir <dir>] [--name <name>] [--alg <alg>] [--seed <hex>] [--overwrite]")
	fmt.Fprintln(w, "  overlay keys show|remove [--key-dir <dir>] [--name <name>]")
	fmt.Fprintln(w, "  overlay keys list [--key-dir <dir>]")
	fmt.Fprintln(w, "  overlay keys sign [--key-dir <dir>] [--name <name>] <file>")
	fmt.Fprintln(w, "  overlay keys verify --public-key <alg:base64> --sig <base64> <file>")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Notes:")
	fmt.Fprintln(w, "  - addresses are 64 hex digits, optionally separated by ':'")
	fmt.Fprintln(w, "  - rpc prints the wire JSON; --send pushes it to a ZeroMQ endpoint such as tcp://127.0.0.1:7778")
	fmt.Fprintln(w, "  - grpc backend talks to overlayd")
}

type commonFlags struct {
	backend      string
	listBackends bool
}

func (c *commonFlags) add(fs *flag.FlagSet) {
	fs.StringVar(&c.backend, "backend", "localfs", "Store backend name")
	fs.BoolVar(&c.listBackends, "list-backends", false, "List supported backends and exit")
	registry.RegisterFlags(fs, registry.UsageCLI)
}

func (c *commonFlags) openStore() (storage.Store, func() error, error) {
	return registry.Open(c.backend, registry.UsageCLI)
}

func printBackends(w io.Writer) {
	for _, b := range registry.List(registry.UsageCLI) {
		if b.Description == "" {
			_, _ = fmt.Fprintf(w, "%s\n", b.Name)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\n", b.Name, b.Description)
	}
}

func cmdStore(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("store", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: overlay store [common flags] <file>")
		return 2
	}

	st, closeFn, err := common.openStore()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	p := fs.Arg(0)
	f, err := os.Open(p)
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(p), err)
		return 1
	}
	defer f.Close()

	var a address.Address
	if s, ok := st.(storage.Streamer); ok {
		a, err = s.PutReader(f)
	} else {
		var b []byte
		if b, err = io.ReadAll(f); err == nil {
			a, err = st.Put(b)
		}
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, a.Hex(""))
	return 0
}

// target selects one object by --address or by --cid.
type target struct {
	hex string
	cid string
}

func (t *target) add(fs *flag.FlagSet) {
	fs.StringVar(&t.hex, "address", "", "Address as hex (':' separators allowed)")
	fs.StringVar(&t.cid, "cid", "", "CIDv1 with a sha2-256 multihash, instead of --address")
}

func (t *target) resolve() (address.Address, error) {
	switch {
	case t.hex != "" && t.cid != "":
		return address.Address{}, errors.New("use either --address or --cid")
	case t.cid != "":
		return parseCID(t.cid)
	case t.hex != "":
		return address.ParseHex(t.hex, rpc.WireSeparator)
	default:
		return address.Address{}, errors.New("missing --address or --cid")
	}
}

func parseCID(s string) (address.Address, error) {
	c, err := cid.Decode(s)
	if err != nil {
		return address.Address{}, model.WrapError(model.ErrInvalidAddress, "invalid cid "+strconv.Quote(s), err)
	}
	return address.FromCID(c)
}

func cmdGet(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("get", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)

	var tgt target
	var outPath string
	tgt.add(fs)
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: overlay get [common flags] (--address <hex> | --cid <cid>) [--out <file>]")
		return 2
	}
	a, err := tgt.resolve()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	st, closeFn, err := common.openStore()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	b, err := st.Get(a)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if outPath == "" {
		_, _ = out.Write(b)
		return 0
	}
	if err := os.WriteFile(outPath, b, 0o600); err != nil {
		fmt.Fprintf(errOut, "write %s: %v\n", outPath, err)
		return 1
	}
	return 0
}

// cmdHas exits 0 when the address is held and 1 when it is not.
func cmdHas(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("has", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var tgt target
	tgt.add(fs)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	a, err := tgt.resolve()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	st, closeFn, err := common.openStore()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}
	held := st.Has(a)
	_, _ = fmt.Fprintln(out, held)
	if !held {
		return 1
	}
	return 0
}

func cmdExport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	var addrs, cids multiString
	var labels multiString
	var outPath string
	fs.Var(&addrs, "address", "Address to export (repeatable)")
	fs.Var(&cids, "cid", "CID to export (repeatable)")
	fs.Var(&labels, "label", "name=<hex> label recorded in the index (repeatable)")
	fs.StringVar(&outPath, "out", "", "Output file (optional; default stdout)")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if len(addrs)+len(cids) == 0 || fs.NArg() != 0 {
		fmt.Fprintln(errOut, "usage: overlay export [common flags] --address <hex> [--cid <cid>] [--address ...] [--out <file>]")
		return 2
	}

	list := make([]address.Address, 0, len(addrs)+len(cids))
	for _, s := range addrs {
		a, err := address.ParseHex(s, rpc.WireSeparator)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		list = append(list, a)
	}
	for _, s := range cids {
		a, err := parseCID(s)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		list = append(list, a)
	}
	opts := bundle.ExportOptions{IncludeIndex: true, Labels: map[string]address.Address{}}
	for _, l := range labels {
		name, hexAddr, ok := strings.Cut(l, "=")
		if !ok {
			fmt.Fprintf(errOut, "invalid --label %q (want name=<hex>)\n", l)
			return 2
		}
		a, err := address.ParseHex(hexAddr, rpc.WireSeparator)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		opts.Labels[name] = a
	}

	st, closeFn, err := common.openStore()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	w := out
	if outPath != "" {
		f, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
		if err != nil {
			fmt.Fprintf(errOut, "create %s: %v\n", outPath, err)
			return 1
		}
		defer f.Close()
		w = f
	}
	if err := bundle.Export(w, st, list, opts); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdImport(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(errOut)
	var common commonFlags
	common.add(fs)
	ignoreUnknown := fs.Bool("ignore-unknown", false, "Skip entries that are not objects")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if common.listBackends {
		printBackends(out)
		return 0
	}
	if fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: overlay import [common flags] <bundle.tar>")
		return 2
	}

	st, closeFn, err := common.openStore()
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	if closeFn != nil {
		defer closeFn()
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	defer f.Close()
	got, err := bundle.Import(f, st, bundle.ImportOptions{IgnoreUnknown: *ignoreUnknown})
	for _, a := range got {
		_, _ = fmt.Fprintln(out, a.Hex(""))
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func cmdRPC(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: overlay rpc ping|lookup|put [flags]")
		return 2
	}
	kind := rpc.Kind(strings.ToLower(args[0]))
	if !kind.Valid() {
		fmt.Fprintf(errOut, "unknown rpc type %q (want one of %v)\n", args[0], rpc.Kinds)
		return 2
	}

	fs := flag.NewFlagSet("rpc "+string(kind), flag.ContinueOnError)
	fs.SetOutput(errOut)
	var (
		source    string
		dest      string
		value     string
		valueFile string
		send      string
		timeout   time.Duration
	)
	fs.StringVar(&source, "source", "", "Source locator ip:port (IPv6 in brackets)")
	fs.StringVar(&dest, "destination", "", "Destination address as hex")
	if kind == rpc.KindPut {
		fs.StringVar(&value, "value", "", "Put value as text")
		fs.StringVar(&valueFile, "value-file", "", "Read the put value from a file")
	}
	fs.StringVar(&send, "send", "", "ZeroMQ endpoint to push the message to")
	fs.DurationVar(&timeout, "timeout", 5*time.Second, "Send timeout")
	if err := fs.Parse(args[1:]); err != nil {
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(errOut, "unexpected arguments: %v\n", fs.Args())
		return 2
	}

	b := rpc.NewBuilder()
	if source != "" {
		loc, err := address.ParseLocator(source)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		b.SetSource(loc)
	}
	if dest != "" {
		a, err := address.ParseHex(dest, rpc.WireSeparator)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 2
		}
		b.SetDestination(a)
	}
	switch {
	case valueFile != "":
		v, err := os.ReadFile(valueFile)
		if err != nil {
			fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(valueFile), err)
			return 1
		}
		b.SetValue(v)
	case isFlagSet(fs, "value"):
		b.SetValue([]byte(value))
	}

	m, err := b.Build(kind)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	wire, err := rpc.MarshalString(m)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, wire)

	if send == "" {
		return 0
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	sender, err := zmqrpc.Dial(ctx, send)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer sender.Close()
	if err := sender.Send(m); err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	return 0
}

func isFlagSet(fs *flag.FlagSet, name string) bool {
	found := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

type multiString []string

func (m *multiString) String() string { return strings.Join(*m, ",") }

func (m *multiString) Set(v string) error {
	v = strings.TrimSpace(v)
	if v == "" {
		return errors.New("empty value")
	}
	*m = append(*m, v)
	return nil
}
