package data

import (
	"fmt"

	"github.com/jinzhu/copier"
)

// proxyStorage backs a group dataset. It holds no elements of its own; its
// length is the total length of the live members.
type proxyStorage struct {
	kind    string
	reg     *Registry
	members []string
}

func (p *proxyStorage) DataKind() string { return p.kind }

func (p *proxyStorage) Len() int {
	n := 0
	for _, guid := range p.members {
		d, err := p.reg.RequestData(guid)
		if err != nil {
			continue
		}
		if rec, err := d.Resolve(); err == nil {
			n += rec.Len()
		}
	}
	return n
}

// deepCopyStorage copies the exported state of src into dst, which must be a
// fresh storage of the same kind.
func deepCopyStorage(dst, src Storage) error {
	if dst.DataKind() != src.DataKind() {
		return fmt.Errorf("%w: %s into %s", ErrMixedKinds, src.DataKind(), dst.DataKind())
	}
	if err := copier.CopyWithOption(dst, src, copier.Option{DeepCopy: true}); err != nil {
		return fmt.Errorf("deep copy %s storage: %w", src.DataKind(), err)
	}
	return nil
}
