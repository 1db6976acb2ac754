package graph

import "github.com/tosone/falkordb/pkg/entities"

// UnknownID marks a name with no schema mapping yet. Scans over an
// unknown label degrade to an empty stream instead of erroring.
const UnknownID = int(-1)

// Schema maps label, relationship-type and attribute names to the dense
// small-integer IDs used by matrices and attribute sets. It is guarded by
// the owning graph's lock.
type Schema struct {
	labels    []string
	relations []string
	attrs     []string

	labelIDs    map[string]entities.LabelID
	relationIDs map[string]entities.RelationID
	attrIDs     map[string]entities.AttributeID
}

// NewSchema returns an empty schema.
func NewSchema() *Schema {
	return &Schema{
		labelIDs:    make(map[string]entities.LabelID),
		relationIDs: make(map[string]entities.RelationID),
		attrIDs:     make(map[string]entities.AttributeID),
	}
}

// LabelCount returns the number of registered labels.
func (s *Schema) LabelCount() int { return len(s.labels) }

// RelationCount returns the number of registered relationship types.
func (s *Schema) RelationCount() int { return len(s.relations) }

// AttributeCount returns the number of registered attribute names.
func (s *Schema) AttributeCount() int { return len(s.attrs) }

// LabelID resolves a label name, or UnknownID when unregistered.
func (s *Schema) LabelID(name string) int {
	if id, ok := s.labelIDs[name]; ok {
		return int(id)
	}
	return UnknownID
}

// RelationID resolves a relationship-type name, or UnknownID.
func (s *Schema) RelationID(name string) int {
	if id, ok := s.relationIDs[name]; ok {
		return int(id)
	}
	return UnknownID
}

// AttributeID resolves an attribute name, or UnknownID.
func (s *Schema) AttributeID(name string) int {
	if id, ok := s.attrIDs[name]; ok {
		return int(id)
	}
	return UnknownID
}

// LabelName returns the name registered for id.
func (s *Schema) LabelName(id entities.LabelID) string { return s.labels[id] }

// RelationName returns the name registered for id.
func (s *Schema) RelationName(id entities.RelationID) string { return s.relations[id] }

// AttributeName returns the name registered for id.
func (s *Schema) AttributeName(id entities.AttributeID) string { return s.attrs[id] }

func (s *Schema) addLabel(name string) entities.LabelID {
	if id, ok := s.labelIDs[name]; ok {
		return id
	}
	id := entities.LabelID(len(s.labels))
	s.labels = append(s.labels, name)
	s.labelIDs[name] = id
	return id
}

func (s *Schema) addRelation(name string) entities.RelationID {
	if id, ok := s.relationIDs[name]; ok {
		return id
	}
	id := entities.RelationID(len(s.relations))
	s.relations = append(s.relations, name)
	s.relationIDs[name] = id
	return id
}

// EnsureAttribute registers an attribute name on first use and returns
// its ID.
func (s *Schema) EnsureAttribute(name string) entities.AttributeID {
	if id, ok := s.attrIDs[name]; ok {
		return id
	}
	id := entities.AttributeID(len(s.attrs))
	s.attrs = append(s.attrs, name)
	s.attrIDs[name] = id
	return id
}
