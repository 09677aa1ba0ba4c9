package claims

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLedger_AcquireOnce(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	outcome, err := ledger.AcquireOnce(ctx, 5000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)

	// Retrying the same logical request must not grant a second time.
	outcome, err = ledger.AcquireOnce(ctx, 5000)
	require.NoError(t, err)
	assert.Equal(t, OutcomeDenied, outcome)

	outcome, err = ledger.AcquireOnce(ctx, 5001)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)
}

func TestMemoryLedger_Status(t *testing.T) {
	ledger := NewMemoryLedger()
	ctx := context.Background()

	granted, err := ledger.Status(ctx, 42)
	require.NoError(t, err)
	assert.False(t, granted)

	_, err = ledger.AcquireOnce(ctx, 42)
	require.NoError(t, err)

	granted, err = ledger.Status(ctx, 42)
	require.NoError(t, err)
	assert.True(t, granted)

	// Status must not mutate.
	outcome, err := ledger.AcquireOnce(ctx, 43)
	require.NoError(t, err)
	assert.Equal(t, OutcomeGranted, outcome)
}

func TestMemoryLedger_ConcurrentAcquire(t *testing.T) {
	ledger := NewMemoryLedger()
	const callers = 32

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
		denied  int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcome, err := ledger.AcquireOnce(context.Background(), 7777)
			require.NoError(t, err)
			mu.Lock()
			if outcome == OutcomeGranted {
				granted++
			} else {
				denied++
			}
			mu.Unlock()
		}()
	}
	wg.Wait()

	// Exactly one caller wins the index, regardless of interleaving.
	assert.Equal(t, 1, granted)
	assert.Equal(t, callers-1, denied)
}

func TestMemoryLedger_IndependentIndices(t *testing.T) {
	ledger := NewMemoryLedger()
	const indices = 256

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < indices; i++ {
		wg.Add(1)
		go func(index uint32) {
			defer wg.Done()
			outcome, err := ledger.AcquireOnce(context.Background(), index)
			require.NoError(t, err)
			if outcome == OutcomeGranted {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}(uint32(i))
	}
	wg.Wait()

	// Different indices never contend for the same grant.
	assert.Equal(t, indices, granted)
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "granted", OutcomeGranted.String())
	assert.Equal(t, "denied", OutcomeDenied.String())
}
