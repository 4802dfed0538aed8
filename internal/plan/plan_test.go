package plan

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"sshmux/internal/remote"
)

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	return p
}

func TestLoad_Success(t *testing.T) {
	p, err := Load(writeTemp(t, "deploy.yaml", `
name: deploy
host: admin@web1
steps:
  - name: kernel
    exec: uname -a
  - upload: {local: ./app.tar, remote: /tmp/app.tar}
  - download:
      remote: /etc/hostname
      local: ./hostname
  - test: '[ -d /srv/app ]'
    expect: false
  - exec: systemctl restart app
    ignore_errors: true
`))
	require.NoError(t, err)
	require.Equal(t, "deploy", p.Name)
	require.Equal(t, "admin@web1", p.Host)
	require.Len(t, p.Steps, 5)

	require.Equal(t, "kernel", p.Steps[0].Label())
	require.Equal(t, "upload", p.Steps[1].Kind())
	require.Equal(t, "upload ./app.tar -> /tmp/app.tar", p.Steps[1].Label())
	require.Equal(t, "download /etc/hostname -> ./hostname", p.Steps[2].Label())
	require.False(t, p.Steps[3].Want())
	require.True(t, p.Steps[4].IgnoreErrors)
	require.True(t, p.Steps[0].Want())
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantSub string
	}{
		{"no steps", "name: x\n", "no steps"},
		{"empty step", "steps:\n  - name: nothing\n", "one of exec, test, upload or download is required"},
		{"two actions", "steps:\n  - exec: a\n    test: b\n", "only one of"},
		{"expect on exec", "steps:\n  - exec: a\n    expect: true\n", "expect only applies"},
		{"transfer missing remote", "steps:\n  - upload: {local: a}\n", "local and remote are required"},
		{"unknown key", "steps:\n  - exce: typo\n", "field exce not found"},
		{"bad yaml", "steps: [\n", "yaml:"},
		{"option-like host", "host: -oProxyCommand=touch${IFS}pwned\nsteps:\n  - exec: a\n", "host: invalid host"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.ErrorContains(t, err, tt.wantSub)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "none.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

// ── Run ──────────────────────────────────────────────────────────────

type fakeOps struct {
	calls  []string
	exec   map[string]remote.Result
	tests  map[string]bool
	copyOK bool
	err    error
}

func (f *fakeOps) Execute(_ context.Context, cmd string) (remote.Result, error) {
	f.calls = append(f.calls, "exec "+cmd)
	if f.err != nil {
		return remote.Result{}, f.err
	}
	if r, ok := f.exec[cmd]; ok {
		return r, nil
	}
	return remote.Result{Success: true}, nil
}

func (f *fakeOps) Upload(_ context.Context, l, r string) (bool, error) {
	f.calls = append(f.calls, "upload "+l+" "+r)
	return f.copyOK, f.err
}

func (f *fakeOps) Download(_ context.Context, r, l string) (bool, error) {
	f.calls = append(f.calls, "download "+r+" "+l)
	return f.copyOK, f.err
}

func (f *fakeOps) Test(_ context.Context, cond string) (bool, error) {
	f.calls = append(f.calls, "test "+cond)
	return f.tests[cond], f.err
}

func mustParse(t *testing.T, doc string) *Plan {
	t.Helper()
	p, err := Parse([]byte(doc))
	require.NoError(t, err)
	return p
}

func TestRun_AllSteps(t *testing.T) {
	ops := &fakeOps{
		exec:   map[string]remote.Result{"hostname": {Success: true, Stdout: "web1\n", Stderr: "warn\n"}},
		tests:  map[string]bool{"[ -d /srv ]": true},
		copyOK: true,
	}
	var stdout, stderr bytes.Buffer
	r := &Runner{Stdout: &stdout, Stderr: &stderr}

	rep, err := r.Run(context.Background(), ops, mustParse(t, `
name: all
steps:
  - exec: hostname
  - test: '[ -d /srv ]'
  - test: '[ -d /nope ]'
    expect: false
  - upload: {local: a, remote: /tmp/a}
  - download: {remote: /tmp/b, local: b}
`))
	require.NoError(t, err)
	require.Equal(t, "all", rep.Name)
	require.Len(t, rep.Steps, 5)
	require.Zero(t, rep.Failed())
	require.Equal(t, "web1\n", stdout.String())
	require.Equal(t, "warn\n", stderr.String())
	require.Equal(t, []string{
		"exec hostname",
		"test [ -d /srv ]",
		"test [ -d /nope ]",
		"upload a /tmp/a",
		"download /tmp/b b",
	}, ops.calls)
}

func TestRun_StopsAtFailure(t *testing.T) {
	ops := &fakeOps{exec: map[string]remote.Result{"false": {Code: 1}}}
	r := &Runner{}

	rep, err := r.Run(context.Background(), ops, mustParse(t, `
steps:
  - exec: "false"
  - exec: never
`))
	require.ErrorIs(t, err, ErrStepFailed)
	require.Len(t, rep.Steps, 1)
	require.Equal(t, 1, rep.Steps[0].Code)
	require.Equal(t, []string{"exec false"}, ops.calls)
}

func TestRun_IgnoreErrors(t *testing.T) {
	ops := &fakeOps{exec: map[string]remote.Result{"false": {Code: 1}}}
	r := &Runner{}

	rep, err := r.Run(context.Background(), ops, mustParse(t, `
steps:
  - exec: "false"
    ignore_errors: true
  - exec: "true"
`))
	require.NoError(t, err)
	require.Len(t, rep.Steps, 2)
	require.True(t, rep.Steps[0].Ignored)
	require.Equal(t, 1, rep.Failed())
}

func TestRun_InfrastructureError(t *testing.T) {
	ops := &fakeOps{err: exec.ErrNotFound}
	rep, err := (&Runner{}).Run(context.Background(), ops, mustParse(t, `
steps:
  - test: "true"
    ignore_errors: true
  - exec: "true"
`))
	require.ErrorIs(t, err, exec.ErrNotFound)
	require.Empty(t, rep.Steps)
}

func TestRun_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ops := &fakeOps{}
	_, err := (&Runner{}).Run(ctx, ops, mustParse(t, "steps:\n  - exec: x\n"))
	require.ErrorIs(t, err, context.Canceled)
	require.Empty(t, ops.calls)
}

func TestRemoteSatisfiesOperations(t *testing.T) {
	var _ Operations = (*remote.Remote)(nil)
}
