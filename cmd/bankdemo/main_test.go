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

func runCmd(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code := run(args, &out, &errOut)
	return code, out.String()
}

func TestRunAcrossInvocations(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("BANK_STORAGE_DRIVER", "file")
	t.Setenv("BANK_STORAGE_DIR", dir)

	code, out := runCmd(t, "register", "-name", "Alice", "-email", "alice@x.com", "-password", "pass1", "-balance", "500")
	require.Equal(t, 0, code, out)

	code, out = runCmd(t, "login", "-email", "alice@x.com", "-password", "pass1")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Welcome, Alice")

	code, out = runCmd(t, "transfer", "-to", "kitteneshwar@example.com", "-amount", "100")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "New balance: 400.00")

	code, out = runCmd(t, "-json", "whoami")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, `"balance":"400"`)

	raw, err := os.ReadFile(filepath.Join(dir, "bankData"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "<bank>"))
	assert.Contains(t, string(raw), "<from>alice@x.com</from>")

	code, _ = runCmd(t, "logout")
	require.Equal(t, 0, code)
	code, out = runCmd(t, "dashboard")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "UNAUTHORIZED")
}

func TestRunUsage(t *testing.T) {
	t.Setenv("BANK_STORAGE_DRIVER", "memory")

	code, out := runCmd(t)
	assert.Equal(t, 0, code)
	assert.Contains(t, out, "transfer -to EMAIL -amount AMOUNT")

	code, _ = runCmd(t, "withdraw")
	assert.Equal(t, 1, code)
}

func TestRunRejectsBadConfig(t *testing.T) {
	t.Setenv("BANK_STORAGE_DRIVER", "redis")

	code, _ := runCmd(t, "users")
	assert.Equal(t, 1, code)
}

func TestRunSQLite(t *testing.T) {
	t.Setenv("BANK_STORAGE_DRIVER", "sqlite")
	t.Setenv("BANK_SQLITE_PATH", filepath.Join(t.TempDir(), "bank.db"))

	code, out := runCmd(t, "login", "-email", "kitteneshwar@example.com", "-password", "1234")
	require.Equal(t, 0, code, out)

	code, out = runCmd(t, "dashboard")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "Balance: 50000.00")
	assert.Contains(t, out, "No transactions yet")
}

func TestRunReportsErrors(t *testing.T) {
	t.Setenv("BANK_STORAGE_DRIVER", "file")
	t.Setenv("BANK_STORAGE_DIR", t.TempDir())

	code, out := runCmd(t, "login", "-email", "kitteneshwar@example.com", "-password", "1234")
	require.Equal(t, 0, code, out)

	code, out = runCmd(t, "transfer", "-to", "kitteneshwar@example.com", "-amount", "5")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "(SELF_TRANSFER)")

	code, out = runCmd(t, "register", "-name", "Bob", "-email", "bob@x.com", "-password", "pass1", "-balance", "100")
	require.Equal(t, 0, code, out)

	code, out = runCmd(t, "transfer", "-to", "bob@x.com", "-amount", "50000.01")
	assert.Equal(t, 1, code)
	assert.Contains(t, out, "error: insufficient balance (INSUFFICIENT_BALANCE)")

	code, out = runCmd(t, "transfer", "-to", "bob@x.com", "-amount", "0.5")
	require.Equal(t, 0, code, out)

	code, out = runCmd(t, "summary")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "sent")
	assert.Contains(t, out, "-0.50")

	code, out = runCmd(t, "users")
	require.Equal(t, 0, code, out)
	assert.Contains(t, out, "bob@x.com")
	assert.Contains(t, out, "100.50")
}
