package badger

import (
	"context"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v3"
	"github.com/stretchr/testify/require"

	"github.com/BadBoiLabs/cetf/go/common/logging"
)

func TestGCWorker(t *testing.T) {
	require := require.New(t)

	logger := logging.GetLogger("common/badger/test")
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLogger(NewLogAdapter(logger))
	db, err := badger.Open(opts)
	require.NoError(err, "Open")
	defer db.Close()

	gc := NewGCWorker(logger, db, 10*time.Millisecond)
	time.Sleep(50 * time.Millisecond)
	gc.Close()
	gc.Close()

	// In-memory databases have no value log to reclaim.
	n, err := gc.collect(context.Background())
	require.Error(err, "collect on an in-memory database")
	require.Zero(n)
}
