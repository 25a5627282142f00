package entry

// RelType is the direction of a relation edge. Hierarchy and the linkage
// between a series and its materialized occurrences are both stored as CHILD
// edges from the owning row; PARENT exists for records that arrive from a
// sync adapter expressed from the child's side.
type RelType string

const (
	RelChild  RelType = "CHILD"
	RelParent RelType = "PARENT"
)

// Relation is a typed edge between two entries. OtherUID carries the
// cross-device identifier of the far side so the edge survives re-keying
// during sync.
type Relation struct {
	ParentID int64   `json:"parentID"`
	ChildID  int64   `json:"childID"`
	Type     RelType `json:"type"`
	OtherUID string  `json:"otherUID,omitempty"`
}
