package main

import (
	crand "crypto/rand"
	"encoding/base64"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"xdao.co/overlay/keys"
)

func cmdKeys(args []string, out io.Writer, errOut io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(errOut, "usage: overlay keys create|show|list|remove|sign|verify [flags]")
		return 2
	}
	sub, args := args[0], args[1:]
	if sub == "verify" {
		return cmdKeysVerify(args, out, errOut)
	}

	fs := flag.NewFlagSet("keys "+sub, flag.ContinueOnError)
	fs.SetOutput(errOut)
	dir := fs.String("key-dir", "", "Key directory (default ~/.overlay/keys)")
	name := fs.String("name", "node", "Key name")
	var alg, seedHex string
	var overwrite bool
	if sub == "create" {
		fs.StringVar(&alg, "alg", keys.AlgEd25519, "Key algorithm: "+strings.Join(keys.Algorithms, ", "))
		fs.StringVar(&seedHex, "seed", "", "Hex seed (default: random)")
		fs.BoolVar(&overwrite, "overwrite", false, "Replace an existing key")
	}
	if err := fs.Parse(args); err != nil {
		return 2
	}

	ks, err := keys.OpenKeyStore(*dir)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}

	switch sub {
	case "create":
		if fs.NArg() != 0 {
			fmt.Fprintln(errOut, "usage: overlay keys create [--key-dir <dir>] [--name <name>] [--alg <alg>] [--seed <hex>] [--overwrite]")
			return 2
		}
		seed := make([]byte, keys.SeedSize)
		if seedHex != "" {
			if seed, err = keys.ParseSeedHex(seedHex); err != nil {
				fmt.Fprintln(errOut, err)
				return 2
			}
		} else if _, err := io.ReadFull(crand.Reader, seed); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		s, err := ks.Create(*name, alg, seed, overwrite)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		printKey(out, *name, s)
		return 0
	case "show":
		s, err := ks.Load(*name)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		printKey(out, *name, s)
		return 0
	case "list":
		names, err := ks.List()
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		for _, n := range names {
			_, _ = fmt.Fprintln(out, n)
		}
		return 0
	case "remove":
		if err := ks.Remove(*name); err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		return 0
	case "sign":
		if fs.NArg() != 1 {
			fmt.Fprintln(errOut, "usage: overlay keys sign [--key-dir <dir>] [--name <name>] <file>")
			return 2
		}
		s, err := ks.Load(*name)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		msg, err := os.ReadFile(fs.Arg(0))
		if err != nil {
			fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
			return 1
		}
		sig, err := s.Sign(msg)
		if err != nil {
			fmt.Fprintln(errOut, err)
			return 1
		}
		_, _ = fmt.Fprintln(out, base64.StdEncoding.EncodeToString(sig))
		return 0
	default:
		fmt.Fprintf(errOut, "unknown keys command: %s\n", sub)
		return 2
	}
}

func printKey(w io.Writer, name string, s keys.Signer) {
	_, _ = fmt.Fprintf(w, "name: %s\n", name)
	_, _ = fmt.Fprintf(w, "public-key: %s\n", keys.PublicKeyString(s))
	_, _ = fmt.Fprintf(w, "address: %s\n", keys.SignerAddress(s).Hex(""))
}

// cmdKeysVerify exits 0 for a valid signature and 1 otherwise.
func cmdKeysVerify(args []string, out io.Writer, errOut io.Writer) int {
	fs := flag.NewFlagSet("keys verify", flag.ContinueOnError)
	fs.SetOutput(errOut)
	pubStr := fs.String("public-key", "", "Public key as printed by 'keys show'")
	sigStr := fs.String("sig", "", "Base64 signature")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *pubStr == "" || *sigStr == "" || fs.NArg() != 1 {
		fmt.Fprintln(errOut, "usage: overlay keys verify --public-key <alg:base64> --sig <base64> <file>")
		return 2
	}
	alg, pub, err := keys.ParsePublicKeyString(*pubStr)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}
	sig, err := base64.StdEncoding.DecodeString(*sigStr)
	if err != nil {
		fmt.Fprintln(errOut, "invalid --sig:", err)
		return 2
	}
	msg, err := os.ReadFile(fs.Arg(0))
	if err != nil {
		fmt.Fprintf(errOut, "read %s: %v\n", filepath.Base(fs.Arg(0)), err)
		return 1
	}
	ok, err := keys.Verify(alg, pub, msg, sig)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	_, _ = fmt.Fprintln(out, ok)
	if !ok {
		return 1
	}
	return 0
}
