package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/memory"
	"github.com/BnaryBlade/loyalty-hive-core/internal/infra/storetest"
	"github.com/BnaryBlade/loyalty-hive-core/internal/port"
)

func TestStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) port.Store { return memory.New() })
}

func TestStore_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	acc, opening := storetest.NewAccount("copy@example.com", 100)
	_, err := s.CreateAccount(ctx, acc, opening)
	require.NoError(t, err)

	got, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	got.TotalPoints = 1_000_000

	again, err := s.GetAccount(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), again.TotalPoints)

	entries, err := s.ListEntries(ctx, acc.ID)
	require.NoError(t, err)
	entries[0].Delta = 42

	entries, err = s.ListEntries(ctx, acc.ID)
	require.NoError(t, err)
	require.Equal(t, int64(100), entries[0].Delta)
}
