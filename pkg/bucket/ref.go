package bucket

import "strconv"

// Ref identifies a bucket. A persisted bucket has a registry row; the
// virtual bucket is synthesized from settings and has none. The zero Ref
// means "no bucket".
type Ref struct {
	id      uint
	virtual bool
}

// Persisted refers to the registry row id. Persisted(0) is the zero Ref.
func Persisted(id uint) Ref {
	return Ref{id: id}
}

// Virtual refers to the settings-derived bucket.
func Virtual() Ref {
	return Ref{virtual: true}
}

// FromColumn rebuilds a Ref from a nullable bucket_id column of a record
// that is known to be offloaded: NULL means the virtual bucket.
func FromColumn(id *uint) Ref {
	if id == nil {
		return Virtual()
	}
	return Persisted(*id)
}

func (r Ref) IsZero() bool {
	return !r.virtual && r.id == 0
}

func (r Ref) IsVirtual() bool {
	return r.virtual
}

// ID returns the registry id and whether the ref points at a row.
func (r Ref) ID() (uint, bool) {
	return r.id, !r.virtual && r.id > 0
}

// Ptr is the value written to nullable bucket_id columns.
func (r Ref) Ptr() *uint {
	if id, ok := r.ID(); ok {
		return &id
	}
	return nil
}

// Number is the id shown to API clients; the virtual bucket is 0.
func (r Ref) Number() uint {
	id, _ := r.ID()
	return id
}

func (r Ref) String() string {
	switch {
	case r.virtual:
		return "virtual"
	case r.id == 0:
		return "none"
	default:
		return strconv.FormatUint(uint64(r.id), 10)
	}
}
