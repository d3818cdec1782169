package commitstore

import "github.com/oceanobs/objstore/internal/store"

// Deps bundles what a backend constructor might need.
type Deps struct {
	DB *store.DB
}
