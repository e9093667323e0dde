package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// vosctl runs the CLI and returns its exit code and output.
func vosctl(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"vosctl"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// mustRun runs the CLI against pool and fails the test on a non-zero exit.
func mustRun(t *testing.T, pool string, args ...string) string {
	t.Helper()
	code, out, errOut := vosctl(t, append([]string{"--pool", pool}, args...)...)
	require.Equal(t, 0, code, "vosctl %v: %s", args, errOut)
	return out
}

func newPool(t *testing.T) string {
	t.Helper()
	pool := filepath.Join(t.TempDir(), "pool.vos")
	mustRun(t, pool, "pool", "create", "--size", "4MiB", "--undo-size", "128KiB", "--no-sync")
	return pool
}

func TestRun_NoArgs(t *testing.T) {
	code, out, _ := vosctl(t)
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "usage: vosctl")
}

func TestRun_Help(t *testing.T) {
	for _, args := range [][]string{{"--help"}, {"-h"}, {"dtx", "--help"}} {
		code, out, _ := vosctl(t, args...)
		assert.Equal(t, 0, code, "%v", args)
		assert.Contains(t, out, "usage: vosctl")
	}
}

func TestRun_UnknownCommand(t *testing.T) {
	code, _, errOut := vosctl(t, "unknown")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "vosctl --help")
}

func TestRun_Version(t *testing.T) {
	code, out, _ := vosctl(t, "version")
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "vosctl version "+version)

	code, out, _ = vosctl(t, "version", "--short")
	assert.Equal(t, 0, code)
	assert.Equal(t, version+"\n", out)
}

func TestPoolCommands(t *testing.T) {
	pool := newPool(t)

	out := mustRun(t, pool, "pool", "info")
	assert.Contains(t, out, "Size:        4.0 MiB")
	assert.Contains(t, out, "Containers:  0")

	code, _, errOut := vosctl(t, "--pool", pool, "pool", "create")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "already exists")

	code, _, _ = vosctl(t, "--pool", filepath.Join(t.TempDir(), "missing"), "pool", "info")
	assert.Equal(t, 1, code)
}

func TestConfigFile(t *testing.T) {
	dir := t.TempDir()
	pool := filepath.Join(dir, "from-config.vos")
	cfgPath := filepath.Join(dir, "vos.yaml")
	cfg := "pool:\n  path: " + pool + "\n  size: 2MiB\n  undoLogSize: 64KiB\n  syncOnCommit: false\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o600))

	code, _, errOut := vosctl(t, "--config", cfgPath, "pool", "create")
	require.Equal(t, 0, code, errOut)
	_, err := os.Stat(pool)
	assert.NoError(t, err)

	code, out, _ := vosctl(t, "--config", cfgPath, "pool", "info")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "Size:        2.0 MiB")
}

func TestContainerCommands(t *testing.T) {
	pool := newPool(t)

	id := strings.TrimSpace(mustRun(t, pool, "cont", "create"))
	named := "6ba7b810-9dad-11d1-80b4-00c04fd430c8"
	mustRun(t, pool, "cont", "create", named)

	out := mustRun(t, pool, "cont", "list")
	assert.ElementsMatch(t, []string{id, named}, strings.Fields(out))

	code, _, _ := vosctl(t, "--pool", pool, "cont", "create", "not-a-uuid")
	assert.Equal(t, 1, code)

	mustRun(t, pool, "cont", "destroy", named)
	assert.Equal(t, id+"\n", mustRun(t, pool, "cont", "list"))
}

func TestObjectAndDTXCommands(t *testing.T) {
	pool := newPool(t)
	cont := strings.TrimSpace(mustRun(t, pool, "cont", "create"))

	fields := strings.Fields(mustRun(t, pool, "dtx", "begin", cont, "--oid", "1.5", "--hlc", "42"))
	require.Len(t, fields, 2)
	xid := fields[0]
	assert.True(t, strings.HasSuffix(xid, ".42"))

	mustRun(t, pool, "obj", "update", cont, "1.5", "10", "--dtx", xid)
	mustRun(t, pool, "obj", "punch", cont, "1.5", "20", "--dtx", xid, "--map-version", "3")

	out := mustRun(t, pool, "obj", "log", cont, "1.5")
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.True(t, strings.HasPrefix(lines[0], "10\tcreate\tdtx="+fields[1]))
	assert.True(t, strings.HasPrefix(lines[1], "20\tpunch"))
	assert.True(t, strings.HasSuffix(lines[1], "version=3"))

	assert.Equal(t, "true\n", mustRun(t, pool, "obj", "visible", cont, "1.5", "15"))
	assert.Equal(t, "false\n", mustRun(t, pool, "obj", "visible", cont, "1.5", "25"))
	assert.Equal(t, "1.5\n", mustRun(t, pool, "obj", "list", cont))

	out = mustRun(t, pool, "dtx", "list", cont)
	assert.Contains(t, out, xid+"\t1.5\tupdate")

	mustRun(t, pool, "dtx", "commit", cont, xid)
	assert.Empty(t, mustRun(t, pool, "dtx", "list", cont))

	code, _, errOut := vosctl(t, "--pool", pool, "obj", "update", cont, "1.5", "30", "--dtx", xid)
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not active")

	mustRun(t, pool, "obj", "destroy", cont, "1.5")
	assert.Empty(t, mustRun(t, pool, "obj", "list", cont))
}

func TestDTXListPagingAndPurge(t *testing.T) {
	pool := newPool(t)
	cont := strings.TrimSpace(mustRun(t, pool, "cont", "create"))

	for i := 0; i < 5; i++ {
		mustRun(t, pool, "dtx", "begin", cont)
	}
	all := strings.Split(strings.TrimSpace(mustRun(t, pool, "dtx", "list", cont)), "\n")
	require.Len(t, all, 5)

	page := strings.Split(strings.TrimSpace(mustRun(t, pool, "dtx", "list", cont, "--limit", "2")), "\n")
	require.Len(t, page, 3)
	assert.Equal(t, all[:2], page[:2])
	require.True(t, strings.HasPrefix(page[2], "next-anchor "))
	anchor := strings.TrimPrefix(page[2], "next-anchor ")

	rest := strings.Split(strings.TrimSpace(mustRun(t, pool, "dtx", "list", cont, "--anchor", anchor)), "\n")
	assert.Equal(t, all[2:], rest)

	assert.Equal(t, "purged 5\n", mustRun(t, pool, "dtx", "purge", cont))
	assert.Empty(t, mustRun(t, pool, "dtx", "list", cont))
}
