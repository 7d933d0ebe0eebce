package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"xdao.co/overlay/address"
	"xdao.co/overlay/keys"
	"xdao.co/overlay/rpc"
)

func TestRun_Usage(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run(nil, &out, &errOut); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	if code := run([]string{"bogus"}, &out, &errOut); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "unknown command: bogus") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
}

func TestRun_StoreGetHas(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(t.TempDir(), "hello.txt")
	if err := os.WriteFile(src, []byte("hello overlay\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	var out, errOut bytes.Buffer
	if code := run([]string{"store", "--localfs-dir", dir, src}, &out, &errOut); code != 0 {
		t.Fatalf("store exit %d: %s", code, errOut.String())
	}
	hexAddr := strings.TrimSpace(out.String())
	if want := address.FromHash([]byte("hello overlay\n")).Hex(""); hexAddr != want {
		t.Fatalf("store printed %q want %q", hexAddr, want)
	}

	out.Reset()
	errOut.Reset()
	if code := run([]string{"get", "--localfs-dir", dir, "--address", hexAddr}, &out, &errOut); code != 0 {
		t.Fatalf("get exit %d: %s", code, errOut.String())
	}
	if out.String() != "hello overlay\n" {
		t.Fatalf("get returned %q", out.String())
	}

	out.Reset()
	if code := run([]string{"has", "--localfs-dir", dir, "--address", hexAddr}, &out, &errOut); code != 0 {
		t.Fatalf("has exit %d: %s", code, errOut.String())
	}

	missing := address.FullAddress().Hex(":")
	out.Reset()
	errOut.Reset()
	if code := run([]string{"get", "--localfs-dir", dir, "--address", missing}, &out, &errOut); code != 1 {
		t.Fatalf("get missing exit %d, want 1", code)
	}
	if !strings.Contains(errOut.String(), "NOT_FOUND") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
	if code := run([]string{"has", "--localfs-dir", dir, "--address", missing}, &out, &errOut); code != 1 {
		t.Fatalf("has missing exit %d, want 1", code)
	}
}

func TestRun_GetRejectsBadAddress(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"get", "--localfs-dir", t.TempDir(), "--address", "zz"}, &out, &errOut); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "INVALID_ADDRESS") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
}

func TestRun_SelectByCID(t *testing.T) {
	dir := t.TempDir()
	content := []byte("by cid\n")
	src := filepath.Join(t.TempDir(), "obj.txt")
	if err := os.WriteFile(src, content, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out, errOut bytes.Buffer
	if code := run([]string{"store", "--localfs-dir", dir, src}, &out, &errOut); code != 0 {
		t.Fatalf("store exit %d: %s", code, errOut.String())
	}
	a := address.FromHash(content)
	c := a.CID().String()

	out.Reset()
	if code := run([]string{"get", "--localfs-dir", dir, "--cid", c}, &out, &errOut); code != 0 {
		t.Fatalf("get --cid exit %d: %s", code, errOut.String())
	}
	if !bytes.Equal(out.Bytes(), content) {
		t.Fatalf("get --cid returned %q", out.String())
	}
	if code := run([]string{"has", "--localfs-dir", dir, "--cid", c}, &out, &errOut); code != 0 {
		t.Fatalf("has --cid exit %d: %s", code, errOut.String())
	}

	tarPath := filepath.Join(t.TempDir(), "bundle.tar")
	if code := run([]string{"export", "--localfs-dir", dir, "--cid", c, "--out", tarPath}, &out, &errOut); code != 0 {
		t.Fatalf("export --cid exit %d: %s", code, errOut.String())
	}
	out.Reset()
	if code := run([]string{"import", "--localfs-dir", t.TempDir(), tarPath}, &out, &errOut); code != 0 {
		t.Fatalf("import exit %d: %s", code, errOut.String())
	}
	if strings.TrimSpace(out.String()) != a.Hex("") {
		t.Fatalf("import printed %q want %q", out.String(), a.Hex(""))
	}

	errOut.Reset()
	if code := run([]string{"get", "--localfs-dir", dir, "--cid", "not-a-cid"}, &out, &errOut); code != 2 {
		t.Fatalf("bad cid exit %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "INVALID_ADDRESS") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
	errOut.Reset()
	if code := run([]string{"get", "--localfs-dir", dir, "--cid", c, "--address", a.Hex("")}, &out, &errOut); code != 2 {
		t.Fatalf("both selectors exit %d, want 2", code)
	}
	if code := run([]string{"has", "--localfs-dir", dir}, &out, &errOut); code != 2 {
		t.Fatalf("no selector exit %d, want 2", code)
	}
}

func TestRun_RPCPrintsWire(t *testing.T) {
	dest := address.FullAddress().Hex(":")
	var out, errOut bytes.Buffer
	code := run([]string{"rpc", "put", "--source", "127.0.0.1:1234", "--destination", dest, "--value", "hi"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("exit %d: %s", code, errOut.String())
	}
	m, err := rpc.UnmarshalString(strings.TrimSpace(out.String()))
	if err != nil {
		t.Fatalf("printed wire does not decode: %v", err)
	}
	put, ok := m.(rpc.Put)
	if !ok {
		t.Fatalf("decoded %T, want rpc.Put", m)
	}
	if string(put.Value) != "hi" || put.Source.String() != "127.0.0.1:1234" || put.Destination != address.FullAddress() {
		t.Fatalf("unexpected put %+v", put)
	}

	out.Reset()
	if code := run([]string{"rpc", "ping", "--source", "127.0.0.1:1234", "--destination", dest}, &out, &errOut); code != 0 {
		t.Fatalf("ping exit %d: %s", code, errOut.String())
	}
	if !strings.Contains(out.String(), `"type":"ping"`) {
		t.Fatalf("unexpected ping wire %q", out.String())
	}
}

func TestRun_RPCIncomplete(t *testing.T) {
	var out, errOut bytes.Buffer
	if code := run([]string{"rpc", "put", "--source", "127.0.0.1:1234", "--destination", address.FullAddress().Hex("")}, &out, &errOut); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
	if !strings.Contains(errOut.String(), "INCOMPLETE_MESSAGE") {
		t.Fatalf("unexpected stderr %q", errOut.String())
	}
	errOut.Reset()
	if code := run([]string{"rpc", "store"}, &out, &errOut); code != 2 {
		t.Fatalf("exit %d, want 2", code)
	}
}

func TestRun_ExportImport(t *testing.T) {
	srcDir, dstDir := t.TempDir(), t.TempDir()
	file := filepath.Join(t.TempDir(), "obj.bin")
	if err := os.WriteFile(file, []byte{0, 1, 2, 3}, 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	var out, errOut bytes.Buffer
	if code := run([]string{"store", "--localfs-dir", srcDir, file}, &out, &errOut); code != 0 {
		t.Fatalf("store exit %d: %s", code, errOut.String())
	}
	hexAddr := strings.TrimSpace(out.String())

	tarPath := filepath.Join(t.TempDir(), "bundle.tar")
	out.Reset()
	args := []string{"export", "--localfs-dir", srcDir, "--address", hexAddr, "--label", "obj=" + hexAddr, "--out", tarPath}
	if code := run(args, &out, &errOut); code != 0 {
		t.Fatalf("export exit %d: %s", code, errOut.String())
	}

	out.Reset()
	if code := run([]string{"import", "--localfs-dir", dstDir, tarPath}, &out, &errOut); code != 0 {
		t.Fatalf("import exit %d: %s", code, errOut.String())
	}
	if strings.TrimSpace(out.String()) != hexAddr {
		t.Fatalf("import printed %q want %q", out.String(), hexAddr)
	}
	out.Reset()
	if code := run([]string{"get", "--localfs-dir", dstDir, "--address", hexAddr}, &out, &errOut); code != 0 {
		t.Fatalf("get exit %d: %s", code, errOut.String())
	}
	if !bytes.Equal(out.Bytes(), []byte{0, 1, 2, 3}) {
		t.Fatalf("imported bytes %v", out.Bytes())
	}
}

func TestRun_Keys(t *testing.T) {
	keyDir := t.TempDir()
	seed := strings.Repeat("07", 32)
	var out, errOut bytes.Buffer
	code := run([]string{"keys", "create", "--key-dir", keyDir, "--name", "pq", "--alg", "dilithium3+sha3-256", "--seed", seed}, &out, &errOut)
	if code != 0 {
		t.Fatalf("create exit %d: %s", code, errOut.String())
	}
	created := out.String()

	out.Reset()
	if code := run([]string{"keys", "show", "--key-dir", keyDir, "--name", "pq"}, &out, &errOut); code != 0 {
		t.Fatalf("show exit %d: %s", code, errOut.String())
	}
	if out.String() != created {
		t.Fatalf("show printed %q, create printed %q", out.String(), created)
	}
	want, err := keys.NewSigner("dilithium3+sha3-256", bytes.Repeat([]byte{7}, 32))
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	pubLine := "public-key: " + keys.PublicKeyString(want)
	if !strings.Contains(created, pubLine+"\n") || !strings.Contains(created, "address: "+keys.SignerAddress(want).Hex("")) {
		t.Fatalf("unexpected key output %q", created)
	}

	msgPath := filepath.Join(t.TempDir(), "msg.txt")
	if err := os.WriteFile(msgPath, []byte("signed by pq"), 0o600); err != nil {
		t.Fatal(err)
	}
	out.Reset()
	if code := run([]string{"keys", "sign", "--key-dir", keyDir, "--name", "pq", msgPath}, &out, &errOut); code != 0 {
		t.Fatalf("sign exit %d: %s", code, errOut.String())
	}
	sig := strings.TrimSpace(out.String())
	pub := keys.PublicKeyString(want)
	if code := run([]string{"keys", "verify", "--public-key", pub, "--sig", sig, msgPath}, &out, &errOut); code != 0 {
		t.Fatalf("verify exit %d: %s", code, errOut.String())
	}
	if err := os.WriteFile(msgPath, []byte("tampered"), 0o600); err != nil {
		t.Fatal(err)
	}
	if code := run([]string{"keys", "verify", "--public-key", pub, "--sig", sig, msgPath}, &out, &errOut); code != 1 {
		t.Fatalf("verify of tampered message exit %d, want 1", code)
	}

	out.Reset()
	if code := run([]string{"keys", "list", "--key-dir", keyDir}, &out, &errOut); code != 0 || out.String() != "pq\n" {
		t.Fatalf("list exit %d output %q", code, out.String())
	}
	if code := run([]string{"keys", "create", "--key-dir", keyDir, "--name", "pq"}, &out, &errOut); code != 1 {
		t.Fatalf("create over existing key exit %d, want 1", code)
	}
	if code := run([]string{"keys", "remove", "--key-dir", keyDir, "--name", "pq"}, &out, &errOut); code != 0 {
		t.Fatalf("remove exit %d: %s", code, errOut.String())
	}
	if code := run([]string{"keys", "show", "--key-dir", keyDir, "--name", "pq"}, &out, &errOut); code != 1 {
		t.Fatalf("show after remove exit %d, want 1", code)
	}
}
