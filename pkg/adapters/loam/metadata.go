package loam

// Kind marks documents written by this adapter, so other notes in the same
// repository are ignored.
const Kind = "docbridge/document"

// DocumentMetadata is the frontmatter of a stored document. The tree itself is the
// document body, as JSON.
type DocumentMetadata struct {
	ID        string `json:"id" mapstructure:"id"`
	Kind      string `json:"kind" mapstructure:"kind"`
	UpdatedAt string `json:"updated_at,omitempty" mapstructure:"updated_at"`
}
