package ports

import (
	"context"

	"github.com/aretw0/docbridge/pkg/domain"
)

// Host is the host binding the bridge reads from and writes to.
// Fetch and flush are whole-snapshot round-trips; DeleteNode is the only call that
// reaches the host in the middle of a turn.
type Host interface {
	// FetchRoot returns the document's current top-level node collection.
	FetchRoot(ctx context.Context) ([]*domain.Node, error)

	// Flush persists the given top-level collection as the new document state.
	Flush(ctx context.Context, items []*domain.Node) error

	// DeleteNode immediately and irrevocably releases a node on the host.
	DeleteNode(ctx context.Context, node *domain.Node) error
}

// HostFunc is an additional host operation scripts can call through the bridge
// namespace without the bridge interpreting it.
type HostFunc func(ctx context.Context, args ...any) (any, error)

// FunctionProvider is implemented by hosts that expose operations beyond the
// bridge's own. Scripts reach them by name on the namespace object.
type FunctionProvider interface {
	HostFunctions() map[string]HostFunc
}
