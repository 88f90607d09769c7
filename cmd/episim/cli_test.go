package main

import (
	"bytes"
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"episim/internal/config"
)

func execRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return execRootContext(t, context.Background(), args...)
}

func execRootContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestRunPrintsOneLinePerDay(t *testing.T) {
	dir := t.TempDir()
	out, err := execRoot(t, "run",
		"--days", "3", "--people", "200", "--seed", "5",
		"--log-level", "error",
		"--xlsx", filepath.Join(dir, "run.xlsx"),
		"--sqlite", filepath.Join(dir, "run.db"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.True(t, strings.HasPrefix(lines[0], "Day, Susceptible"))
	assert.True(t, strings.HasPrefix(lines[1], "1, "))
	assert.True(t, strings.HasSuffix(lines[3], ", no_intervention"))
	assert.True(t, strings.HasPrefix(lines[4], "# run "))

	for _, name := range []string{"run.xlsx", "run.db"} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestRunIsReproducible(t *testing.T) {
	args := []string{"run", "--days", "4", "--people", "300", "--seed", "9", "--log-level", "error"}
	a, err := execRoot(t, args...)
	require.NoError(t, err)
	b, err := execRoot(t, args...)
	require.NoError(t, err)

	// The last line carries the run id.
	strip := func(s string) string { return s[:strings.LastIndex(strings.TrimSpace(s), "\n")] }
	assert.Equal(t, strip(a), strip(b))
}

func TestRunWithWastewaterSampling(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "run.db")
	args := []string{"run", "--days", "3", "--people", "200", "--seed", "5", "--log-level", "error"}
	plain, err := execRoot(t, args...)
	require.NoError(t, err)
	sampled, err := execRoot(t, append(args, "--wastewater", "--sqlite", db)...)
	require.NoError(t, err)

	strip := func(s string) string { return s[:strings.LastIndex(strings.TrimSpace(s), "\n")] }
	assert.Equal(t, strip(plain), strip(sampled), "sampling leaves the run unchanged")

	conn, err := sql.Open("sqlite", db)
	require.NoError(t, err)
	defer conn.Close()
	var n int
	require.NoError(t, conn.QueryRow("SELECT COUNT(*) FROM wastewater_samples").Scan(&n))
	assert.Equal(t, 2, n, "one sewershed sampled on days 0 and 2")
}

func TestRunWithMetricsEndpoint(t *testing.T) {
	_, err := execRoot(t, "run", "--days", "2", "--people", "100",
		"--log-level", "error", "--metrics-addr", "127.0.0.1:0")
	assert.NoError(t, err)
}

func TestRunInterruptedExitsCleanly(t *testing.T) {
	dir := t.TempDir()
	for _, extra := range [][]string{nil, {"--metrics-addr", "127.0.0.1:0"}} {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		args := append([]string{"run", "--days", "3", "--people", "100", "--log-level", "error",
			"--sqlite", filepath.Join(dir, "runs.db")}, extra...)
		out, err := execRootContext(t, ctx, args...)
		require.NoError(t, err, "args %v", extra)
		assert.True(t, strings.HasPrefix(out, "# run "), "summary still written: %q", out)
	}
}

func TestRunRejectsBadFlags(t *testing.T) {
	_, err := execRoot(t, "run", "--policy", "curfew", "--log-level", "error")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = execRoot(t, "run", "--days=-1")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)

	_, err = execRoot(t, "run", "--config", filepath.Join(t.TempDir(), "none.yaml"))
	assert.Error(t, err)
}

func TestPolicies(t *testing.T) {
	out, err := execRoot(t, "policies")
	require.NoError(t, err)
	assert.Contains(t, out, "lockdown")
	assert.Contains(t, out, "ld40_ci_hq_sd70_sc_oe30")
	assert.Contains(t, out, "bengaluru")
}

func TestValidate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
days: 10
intervention:
  schedule:
    - policy: lockdown
      days: 3
    - policy: case_isolation
      days: 5
`), 0o644))

	out, err := execRoot(t, "validate", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "lockdown+case_isolation")

	_, err = execRoot(t, "validate", "--seeding", "airdrop")
	assert.ErrorIs(t, err, config.ErrInvalidConfig)
}

func TestSetupSyntheticCity(t *testing.T) {
	cfg := config.Default()
	cfg.Synthetic.People = 150
	cfg.Days = 1
	run, err := setup(cfg, zap.NewNop())
	require.NoError(t, err)
	assert.Len(t, run.City.Individuals, 150)
	assert.Equal(t, 4, run.TotalSteps())
}
