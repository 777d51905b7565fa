package injector

import "context"

// Page is one evaluation target in the host application.
type Page interface {
	ID() string
	URL() string
	// Evaluate runs script in the page. res receives the JSON result when
	// non-nil.
	Evaluate(ctx context.Context, script string, res any) error
}

// Runtime enumerates the host's pages.
type Runtime interface {
	Pages(ctx context.Context) ([]Page, error)
}
