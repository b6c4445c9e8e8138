package main

import (
	"bytes"
	"os"
	"testing"
)

func runCLI(t *testing.T, args ...string) (stdout, stderr string, code int) {
	t.Helper()
	var outBuf, errBuf bytes.Buffer
	code = Run(append([]string{"syncctl"}, args...), &outBuf, &errBuf)
	return outBuf.String(), errBuf.String(), code
}

func TestRunWithNoArgsPrintsUsage(t *testing.T) {
	stdout, _, code := runCLI(t)
	if code != 2 {
		t.Errorf("code = %d, want 2", code)
	}
	if stdout == "" {
		t.Error("expected usage text on stdout")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	_, stderr, code := runCLI(t, "bogus")
	if code != 2 {
		t.Errorf("code = %d, want 2", code)
	}
	if stderr == "" {
		t.Error("expected error text on stderr")
	}
}

func TestRunRecordSucceeds(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")
	t.Setenv("NODE_ID", "aaaaaaaaaaaaaaaa")
	t.Setenv("GROUP_ID", "test-group")

	stdout, stderr, code := runCLI(t, "record", "--dataset", "contacts", "--row", "row-1", "--column", "email", "--value", `"a@example.com"`)
	if code != 0 {
		t.Fatalf("record failed: code=%d stderr=%s", code, stderr)
	}
	if stdout == "" {
		t.Error("expected outcome text on stdout")
	}
}

func TestRunGetMissingRow(t *testing.T) {
	t.Setenv("STORE_BACKEND", "memory")

	stdout, stderr, code := runCLI(t, "get", "--dataset", "contacts", "--row", "does-not-exist")
	if code != 0 {
		t.Fatalf("get failed: code=%d stderr=%s", code, stderr)
	}
	if stdout != "(row not found)\n" {
		t.Errorf("stdout = %q, want row-not-found message", stdout)
	}
}

func TestRunSyncMissingPeerFlag(t *testing.T) {
	_, stderr, code := runCLI(t, "sync")
	if code != 2 {
		t.Errorf("code = %d, want 2", code)
	}
	if stderr == "" {
		t.Error("expected usage error on stderr")
	}
}

func TestMain(m *testing.M) {
	os.Exit(m.Run())
}
