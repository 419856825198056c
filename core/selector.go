package core

// Selector matches entities by id or by field equality.
//
// A selector containing an id matches only the entity with that id.
// Otherwise every listed field must equal the entity's field value.
type Selector map[string]any

// ID returns the id of the selector if it has one.
func (s Selector) ID() (string, bool) {
	v, ok := s[IDFieldName]
	if !ok {
		return "", false
	}
	id, ok := v.(string)
	return id, ok
}

// Matches returns true if the entity satisfies the selector.
func (s Selector) Matches(e *Entity) bool {
	if v, ok := s[IDFieldName]; ok {
		id, ok := v.(string)
		return ok && id == e.ID
	}
	for k, want := range s {
		got, ok := e.Get(k)
		if !ok {
			got = nil
		}
		if !Equal(got, want) {
			return false
		}
	}
	return true
}

// Resolve returns the first entity in id order matching the selector.
func (s Selector) Resolve(snap Snapshot) (*Entity, bool) {
	if id, ok := s.ID(); ok {
		return snap.Get(id)
	}
	return snap.Find(s.Matches)
}
