package preload

import (
	"context"
	"testing"

	"github.com/oceanobs/objstore/internal/blobstore"
	"github.com/oceanobs/objstore/internal/commitstore"
	"github.com/oceanobs/objstore/internal/config"
	"github.com/oceanobs/objstore/internal/workbench"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWorkbench() *workbench.Manager {
	return workbench.NewManager(blobstore.NewMemory(), commitstore.NewMemory(), 1<<20, false)
}

func TestRunSeedsPredicatesAndIdentities(t *testing.T) {
	ctx := context.Background()
	wb := newTestWorkbench()
	p := New(wb)

	require.NoError(t, p.Run(ctx, config.DefaultPreload()))

	for _, spec := range Predicates {
		exists, err := wb.RepositoryExists(ctx, spec.Key)
		require.NoError(t, err)
		assert.True(t, exists, "predicate %s should exist after preload", spec.Key)
	}

	exists, err := wb.RepositoryExists(ctx, RootIdentity.Key)
	require.NoError(t, err)
	assert.True(t, exists)

	for _, spec := range ResourceTypes {
		exists, err := wb.RepositoryExists(ctx, spec.Key)
		require.NoError(t, err)
		assert.True(t, exists, "resource type %s should exist after preload", spec.Key)
	}
}

func TestRunIsIdempotent(t *testing.T) {
	ctx := context.Background()
	wb := newTestWorkbench()
	p := New(wb)

	require.NoError(t, p.Run(ctx, config.DefaultPreload()))
	require.NoError(t, p.Run(ctx, config.DefaultPreload()))

	rows, err := wb.RepositoryExists(ctx, RootIdentity.Key)
	require.NoError(t, err)
	assert.True(t, rows)
}

func TestRunSkipsDisabledCatalogs(t *testing.T) {
	ctx := context.Background()
	wb := newTestWorkbench()
	p := New(wb)

	require.NoError(t, p.Run(ctx, config.Preload{}))

	exists, err := wb.RepositoryExists(ctx, RootIdentity.Key)
	require.NoError(t, err)
	assert.False(t, exists)
}
