package plan

import (
	"time"

	"github.com/tosone/falkordb/pkg/datatypes"
)

// Statistics summarizes the side effects and cost of one query.
type Statistics struct {
	NodesCreated         uint64
	NodesDeleted         uint64
	RelationshipsCreated uint64
	RelationshipsDeleted uint64
	PropertiesSet        uint64
	LabelsAdded          uint64
	ExecutionTime        time.Duration
}

// ResultSet is the (header, rows, statistics) triple returned to the
// client.
type ResultSet struct {
	Columns []string
	Rows    [][]datatypes.Value
	Stats   Statistics
}
