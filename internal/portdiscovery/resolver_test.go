package portdiscovery

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/danmuck/simlink/internal/testutil/testlog"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ports.toml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write ports file: %v", err)
	}
	return path
}

func TestParsePort(t *testing.T) {
	testlog.Start(t)
	cases := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"500", 500, true},
		{" 51111\n", 51111, true},
		{"", 0, false},
		{"0", 0, false},
		{"70000", 0, false},
		{"abc", 0, false},
	}
	for _, tc := range cases {
		got, err := ParsePort(tc.raw)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParsePort(%q) = %d, %v", tc.raw, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParsePort(%q) expected error", tc.raw)
		}
	}
}

func TestFileResolverAcceptsStringAndInteger(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()

	strPath := writeFile(t, "SimConnect_Port_IPv4 = \"51234\"\n")
	if port, err := (File{Path: strPath}).Resolve(ctx); err != nil || port != 51234 {
		t.Fatalf("string value: port=%d err=%v", port, err)
	}
	intPath := writeFile(t, "custom = 4506\n")
	if port, err := (File{Path: intPath, Key: "custom"}).Resolve(ctx); err != nil || port != 4506 {
		t.Fatalf("int value: port=%d err=%v", port, err)
	}
	if _, err := (File{Path: intPath}).Resolve(ctx); !errors.Is(err, ErrPortNotFound) {
		t.Fatalf("missing key: expected ErrPortNotFound, got %v", err)
	}
	missing := filepath.Join(t.TempDir(), "absent.toml")
	if _, err := (File{Path: missing}).Resolve(ctx); !errors.Is(err, ErrPortNotFound) {
		t.Fatalf("missing file: expected ErrPortNotFound, got %v", err)
	}
}

func TestEnvResolver(t *testing.T) {
	testlog.Start(t)
	t.Setenv("SIMLINK_TEST_PORT", "6000")
	if port, err := (Env{Name: "SIMLINK_TEST_PORT"}).Resolve(context.Background()); err != nil || port != 6000 {
		t.Fatalf("env: port=%d err=%v", port, err)
	}
	if _, err := (Env{Name: "SIMLINK_TEST_PORT_UNSET"}).Resolve(context.Background()); !errors.Is(err, ErrPortNotFound) {
		t.Fatalf("expected ErrPortNotFound, got %v", err)
	}
}

func TestChainFallsThroughNotFound(t *testing.T) {
	testlog.Start(t)
	ctx := context.Background()
	chain := Chain{Static{}, Registry{}, Env{Name: "SIMLINK_TEST_PORT_UNSET"}, Static{Port: 500}}
	if port, err := chain.Resolve(ctx); err != nil || port != 500 {
		t.Fatalf("chain: port=%d err=%v", port, err)
	}

	boom := errors.New("boom")
	stop := Chain{ResolverFunc(func(context.Context) (int, error) { return 0, boom }), Static{Port: 500}}
	if _, err := stop.Resolve(ctx); !errors.Is(err, boom) {
		t.Fatalf("expected hard error to stop chain, got %v", err)
	}
	if _, err := (Chain{}).Resolve(ctx); !errors.Is(err, ErrPortNotFound) {
		t.Fatalf("empty chain: expected ErrPortNotFound, got %v", err)
	}
}
