package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/aretw0/docbridge/pkg/domain"
)

// NewStoreFromJSON creates a store pre-populated with documents given as raw JSON
// item arrays, keyed by document ID. Ids are assigned as a first flush would.
func NewStoreFromJSON(data map[string]string) (*Store, error) {
	s := NewStore()

	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		var items []*domain.Node
		if err := json.Unmarshal([]byte(data[id]), &items); err != nil {
			return nil, fmt.Errorf("failed to decode document %s: %w", id, err)
		}
		doc := domain.NewDocument(id)
		if items != nil {
			doc.Items = items
		}
		doc.AssignIDs()
		if err := s.Save(context.Background(), id, doc); err != nil {
			return nil, err
		}
	}
	return s, nil
}
