package workbench

import (
	"context"
	"fmt"

	"github.com/oceanobs/objstore/internal/commitstore"
)

// RepositoryExists reports whether the commit store has any rows for
// repositoryKey, mirroring the original datastore's workbench.test_existence
// check the preloader uses to skip catalog entries that already exist.
func (m *Manager) RepositoryExists(ctx context.Context, repositoryKey string) (bool, error) {
	rows, err := m.commits.Query(ctx, []commitstore.Predicate{
		{Column: "repository_key", Value: repositoryKey, Op: commitstore.EQ},
	}, 1)
	if err != nil {
		return false, fmt.Errorf("workbench: exists query %s: %w", repositoryKey, err)
	}
	return len(rows) > 0, nil
}
