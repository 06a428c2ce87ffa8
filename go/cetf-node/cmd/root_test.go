package cmd

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BadBoiLabs/cetf/go/cetf/api"
	"github.com/BadBoiLabs/cetf/go/common/cbor"
	"github.com/BadBoiLabs/cetf/go/consensus/api/transaction"
)

func submitHex() string {
	tx := transaction.NewTransaction(7, api.MethodEnqueueTag, &api.EnqueueTagParams{Tag: api.Tag("z")})
	return hex.EncodeToString(cbor.Marshal(tx))
}

func TestTagsCommandLine(t *testing.T) {
	require := require.New(t)

	dataDir := t.TempDir()
	common := []string{
		"--datadir", dataDir,
		"--storage.backend", "leveldb",
		"--log.level", "ERROR",
	}

	run := func(args ...string) string {
		var buf bytes.Buffer
		rootCmd.SetOut(&buf)
		rootCmd.SetArgs(append(common, args...))
		require.NoError(rootCmd.Execute(), "cetf-node %v", args)
		return buf.String()
	}

	require.Equal("uninitialized\n", run("tags", "root"))

	root := run("tags", "init")
	require.Len(root, 65, "init prints the hex root")

	out := run("tags", "enqueue", "--nonce", "5", "x", "y")
	require.Contains(out, "enqueued 78 at height 5")
	require.Contains(out, "enqueued 79 at height 5")

	// State persists across invocations.
	out = run("tags", "show")
	require.Contains(out, "78")
	require.Contains(out, "79")

	out = run("tags", "submit", submitHex())
	require.Contains(out, "Method: cetf.EnqueueTag")
	require.Contains(run("tags", "show", "--height", "7"), "7a")

	run("tags", "clear", "--nonce", "7")
	run("tags", "clear", "--nonce", "5")
	require.Equal(root, run("tags", "root"), "clearing every height restores the empty root")
}

func TestVersion(t *testing.T) {
	require.Equal(t, SoftwareVersion, RootCommand().Version)
}
