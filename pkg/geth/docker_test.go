package geth

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/cuemby/poanet/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedRunner struct {
	calls   [][]string
	outputs []string
	err     error
}

func (r *scriptedRunner) run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.calls = append(r.calls, append([]string{name}, args...))
	if r.err != nil {
		return []byte("boom"), r.err
	}
	out := ""
	if len(r.outputs) > 0 {
		out, r.outputs = r.outputs[0], r.outputs[1:]
	}
	return []byte(out), nil
}

func TestDockerKeygen_GenerateBootnodeKey(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{outputs: []string{"", "abcdef\n"}}
	kg := NewDockerKeygen("geth:test", runner.run)

	pub, err := kg.GenerateBootnodeKey(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, "abcdef", pub)

	require.Len(t, runner.calls, 2)
	mount := filepath.ToSlash(dir) + ":/root/.ethereum"
	assert.Equal(t, []string{"docker", "run", "--rm", "-v", mount, "geth:test",
		"bootnode", "-genkey", "/root/.ethereum/boot.key"}, runner.calls[0])
	assert.Equal(t, []string{"docker", "run", "--rm", "-v", mount, "geth:test",
		"bootnode", "-nodekey", "/root/.ethereum/boot.key", "-writeaddress"}, runner.calls[1])
}

func TestDockerKeygen_NewAccount(t *testing.T) {
	dir := t.TempDir()
	runner := &scriptedRunner{}
	kg := NewDockerKeygen("", runner.run)

	require.NoError(t, kg.NewAccount(context.Background(), dir, filepath.Join(dir, "password.txt")))

	require.Len(t, runner.calls, 1)
	call := runner.calls[0]
	assert.Contains(t, call, "ethereum/client-go:alltools-v1.11.5")
	assert.Equal(t, []string{"geth", "--datadir", "/root/.ethereum", "account", "new", "--password", "/root/password.txt"},
		call[len(call)-7:])
}

func TestDockerKeygen_Failure(t *testing.T) {
	runner := &scriptedRunner{err: errors.New("exit status 125")}
	kg := NewDockerKeygen("", runner.run)

	_, err := kg.GenerateBootnodeKey(context.Background(), t.TempDir())
	assert.ErrorIs(t, err, types.ErrExternalProcess)
	assert.Contains(t, err.Error(), "output: boom")
}
