package data

// Storage is the backing store behind a raw data entry. Data-type plugins
// provide implementations; the registry treats them as opaque.
type Storage interface {
	DataKind() string
	Len() int
}

// DuplicationMode says what CopyDataset does with the raw data.
type DuplicationMode int

const (
	// DuplicateShare makes the copy view the same raw data.
	DuplicateShare DuplicationMode = iota

	// DuplicateDeep copies the storage into a new raw data entry.
	DuplicateDeep
)

// Traits are the kind-specific policies of a storage.
type Traits struct {
	Duplication DuplicationMode

	// MayUnderive allows a derived dataset to outlive its source: it is
	// detached from the source instead of removed with it.
	MayUnderive bool
}

// TraitsProvider is implemented by storages that override the default
// traits (share on copy, removed with their source).
type TraitsProvider interface {
	Traits() Traits
}

func traitsOf(s Storage) Traits {
	if tp, ok := s.(TraitsProvider); ok {
		return tp.Traits()
	}
	return Traits{}
}

// Producer creates storages for registered data kinds. The plugin manager
// satisfies it through an adapter.
type Producer interface {
	// ProduceStorage returns a fresh storage of kind, an *UnknownKindError
	// when no data-type plugin provides kind, or a resource error.
	ProduceStorage(kind string) (Storage, error)

	// ReleaseStorage is called once the last dataset viewing s is gone.
	ReleaseStorage(s Storage) error
}

// Tree is the part of the data hierarchy the registry drives: attaching new
// datasets, reading children for cascades and detaching removed datasets.
// A zero parent Dataset means the root.
type Tree interface {
	AttachDataset(d, parent Dataset) error

	// ReparentDataset moves d under parent, attaching it first when it has
	// no item yet.
	ReparentDataset(d, parent Dataset) error
	ChildDatasets(d Dataset) []Dataset

	// ParentDataset returns the parent of d, or the zero Dataset for roots
	// and unattached datasets.
	ParentDataset(d Dataset) Dataset
	IsDatasetLocked(d Dataset) bool

	// MarkDatasetRemoving moves the item to AboutToBeRemoved.
	MarkDatasetRemoving(d Dataset)

	// DetachDataset removes the (childless) item of d.
	DetachDataset(d Dataset)
}
