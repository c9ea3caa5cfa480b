package data

import (
	"fmt"
	"maps"
)

// Handle addresses a slot of the registry arena. A slot's generation is
// bumped when its dataset is removed, which invalidates every copy of the
// old handle.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h was never issued.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

func (h Handle) String() string {
	return fmt.Sprintf("%d#%d", h.index, h.generation)
}

// Dataset is the value held by callers. It carries its GUID so identity
// survives removal (for notifications and logs), but every access to live
// state goes through the generational handle.
type Dataset struct {
	handle Handle
	guid   string
	reg    *Registry
}

// Handle returns the arena handle.
func (d Dataset) Handle() Handle { return d.handle }

// GUID returns the immutable identifier.
func (d Dataset) GUID() string { return d.guid }

// IsZero reports whether d is the zero Dataset.
func (d Dataset) IsZero() bool { return d.reg == nil }

// IsValid reports whether d still refers to a live dataset.
func (d Dataset) IsValid() bool {
	_, err := d.Resolve()
	return err == nil
}

// Equal compares identity.
func (d Dataset) Equal(other Dataset) bool {
	return d.reg == other.reg && d.handle == other.handle
}

// Resolve returns the live record or ErrInvalidHandle.
func (d Dataset) Resolve() (*Record, error) {
	if d.reg == nil {
		return nil, ErrInvalidHandle
	}
	return d.reg.lookup(d.handle)
}

// GUIName returns the current GUI name.
func (d Dataset) GUIName() (string, error) {
	rec, err := d.Resolve()
	if err != nil {
		return "", err
	}
	return rec.name, nil
}

// SetGUIName renames the dataset and publishes dataset.renamed.
func (d Dataset) SetGUIName(name string) error {
	if d.reg == nil {
		return ErrInvalidHandle
	}
	return d.reg.rename(d, name)
}

func (d Dataset) String() string {
	if d.reg == nil {
		return "<nil dataset>"
	}
	return d.guid
}

// StorageType distinguishes datasets that own their data from groups.
type StorageType int

const (
	// StorageOwner datasets view their own raw data.
	StorageOwner StorageType = iota

	// StorageProxy datasets stand for a group of member datasets.
	StorageProxy
)

func (s StorageType) String() string {
	if s == StorageProxy {
		return "Proxy"
	}
	return "Owner"
}

// Record is the registry-owned state of a dataset. Callers read it through
// the getters; mutations go through the Registry.
type Record struct {
	self    Dataset
	name    string
	kind    string
	raw     *rawData
	indices []int
	full    bool

	derived bool
	source  Dataset

	storageType StorageType
	members     []string

	selection  bool
	removing   bool
	properties map[string]any
}

// Dataset returns the handle of this record.
func (r *Record) Dataset() Dataset { return r.self }

// GUID returns the dataset GUID.
func (r *Record) GUID() string { return r.self.guid }

// GUIName returns the GUI name.
func (r *Record) GUIName() string { return r.name }

// Kind returns the data kind, e.g. "Points".
func (r *Record) Kind() string { return r.kind }

// RawDataName returns the name of the raw data behind the dataset.
func (r *Record) RawDataName() string { return r.raw.name }

// Storage returns the raw data storage.
func (r *Record) Storage() Storage { return r.raw.storage }

// IsFull reports whether the dataset views all of its raw data.
func (r *Record) IsFull() bool { return r.full }

// Indices returns the subset indices; nil for full datasets.
func (r *Record) Indices() []int {
	if r.selection {
		return append([]int(nil), r.raw.selection...)
	}
	if r.full {
		return nil
	}
	return append([]int(nil), r.indices...)
}

// Len returns the number of elements the dataset views.
func (r *Record) Len() int {
	switch {
	case r.selection:
		return len(r.raw.selection)
	case r.full:
		return r.raw.storage.Len()
	default:
		return len(r.indices)
	}
}

// IsDerived reports whether the dataset was computed from a source.
func (r *Record) IsDerived() bool { return r.derived }

// Source returns the source dataset; zero when not derived.
func (r *Record) Source() Dataset { return r.source }

// StorageType returns Owner or Proxy.
func (r *Record) StorageType() StorageType { return r.storageType }

// ProxyMembers returns the live member datasets of a group.
func (r *Record) ProxyMembers() []Dataset {
	out := make([]Dataset, 0, len(r.members))
	for _, guid := range r.members {
		if d, err := r.self.reg.RequestData(guid); err == nil {
			out = append(out, d)
		}
	}
	return out
}

// IsSelection reports whether this is the hidden selection of a raw data.
func (r *Record) IsSelection() bool { return r.selection }

// Property returns a named property.
func (r *Record) Property(name string) (any, bool) {
	v, ok := r.properties[name]
	return v, ok
}

// Properties returns a copy of the property map.
func (r *Record) Properties() map[string]any {
	return maps.Clone(r.properties)
}

// Traits returns the storage traits of the dataset's kind.
func (r *Record) Traits() Traits {
	return traitsOf(r.raw.storage)
}

type rawData struct {
	name      string
	kind      string
	storage   Storage
	refs      int
	selection []int

	// selectionSet is the hidden selection dataset, created on demand.
	selectionSet Dataset
}
