package domain

import "time"

// Document is the persisted form of a document tree, as kept by a DocumentStore.
type Document struct {
	ID string `json:"id"`

	// Items is the top-level node collection.
	Items []*Node `json:"items"`

	// Revision is incremented on every write.
	Revision int64 `json:"revision"`

	// NextID is the next node id the host hands out. Ids are never reused.
	NextID int64 `json:"next_id"`

	UpdatedAt time.Time `json:"updated_at"`
}

// NewDocument creates an empty document.
func NewDocument(id string) *Document {
	return &Document{
		ID:     id,
		Items:  []*Node{},
		NextID: 1,
	}
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	c := *d
	c.Items = CloneNodes(d.Items)
	if c.Items == nil {
		c.Items = []*Node{}
	}
	return &c
}

// AssignIDs gives every node without an id a fresh one, starting at NextID.
// It returns the number of ids assigned.
func (d *Document) AssignIDs() int {
	if d.NextID < 1 {
		d.NextID = 1
	}
	// Never hand out an id already present, even if NextID was lost.
	Walk(d.Items, func(n *Node) bool {
		if id, ok := n.ID(); ok && id >= d.NextID {
			d.NextID = id + 1
		}
		return true
	})

	assigned := 0
	Walk(d.Items, func(n *Node) bool {
		if _, ok := n.ID(); !ok {
			n.Set(KeyID, d.NextID)
			d.NextID++
			assigned++
		}
		return true
	})
	return assigned
}
