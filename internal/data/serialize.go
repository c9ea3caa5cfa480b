package data

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/variant"
)

// Serialization keys of a dataset.
const (
	keyID            = "ID"
	keyGUIName       = "GUIName"
	keyKind          = "Kind"
	keyStorageType   = "StorageType"
	keyRawDataID     = "RawDataID"
	keyFull          = "Full"
	keyIndices       = "Indices"
	keyDerived       = "Derived"
	keySourceDataset = "SourceDatasetID"
	keyProxyMembers  = "ProxyMembers"
	keyProperties    = "Properties"
	keyData          = "Data"
)

// ToVariantMap serializes d. Storages implementing variant.Serializable
// contribute their content under "Data".
func (r *Registry) ToVariantMap(d Dataset) (variant.Map, error) {
	rec, err := d.Resolve()
	if err != nil {
		return nil, err
	}
	m := variant.Map{
		keyID:          rec.GUID(),
		keyGUIName:     rec.name,
		keyKind:        rec.kind,
		keyStorageType: rec.storageType.String(),
		keyRawDataID:   rec.raw.name,
		keyFull:        rec.full,
		keyDerived:     rec.derived,
	}
	if !rec.full {
		m[keyIndices] = toAnySlice(rec.indices)
	}
	if rec.derived {
		m[keySourceDataset] = rec.source.guid
	}
	if rec.storageType == StorageProxy {
		members := make([]any, len(rec.members))
		for i, guid := range rec.members {
			members[i] = guid
		}
		m[keyProxyMembers] = members
	}
	if len(rec.properties) > 0 {
		props := make(variant.Map, len(rec.properties))
		for k, v := range rec.properties {
			props[k] = v
		}
		m[keyProperties] = props
	}
	if s, ok := rec.raw.storage.(variant.Serializable); ok && r.carriesData(rec) {
		m[keyData] = s.ToVariantMap()
	}
	return m, nil
}

// carriesData reports whether rec is the dataset that serializes its raw
// data: a full view, or any view once no full one is left.
func (r *Registry) carriesData(rec *Record) bool {
	if rec.storageType != StorageOwner || rec.selection {
		return false
	}
	if rec.full {
		return true
	}
	for _, guid := range r.order {
		other := r.slots[r.byGUID[guid].index].rec
		if other.raw == rec.raw && other.full && !other.selection {
			return false
		}
	}
	return true
}

// IsIssued reports whether guid was ever issued by this registry.
func (r *Registry) IsIssued(guid string) bool {
	_, ok := r.issued[guid]
	return ok
}

// ReleaseGUIDs makes removed GUIDs available to Restore again. GUIDs of
// live datasets are kept. It returns the number of GUIDs released.
func (r *Registry) ReleaseGUIDs(guids ...string) int {
	n := 0
	for _, guid := range guids {
		if _, live := r.byGUID[guid]; live {
			continue
		}
		if _, ok := r.issued[guid]; ok {
			delete(r.issued, guid)
			n++
		}
	}
	return n
}

// Restore recreates a serialized dataset under parent with its original
// GUID. Datasets naming a raw data that is already live share it, so
// subsets are restored after their full dataset.
func (r *Registry) Restore(m variant.Map, parent Dataset) (Dataset, error) {
	if err := variant.MustContain(m, keyID, keyGUIName, keyKind); err != nil {
		return Dataset{}, err
	}
	guid, err := variant.String(m, keyID)
	if err != nil {
		return Dataset{}, err
	}
	if _, taken := r.issued[guid]; taken {
		return Dataset{}, fmt.Errorf("%w: %s", ErrDuplicateGUID, guid)
	}
	name := variant.StringOr(m, keyGUIName, "")
	kind := variant.StringOr(m, keyKind, "")

	spec := createSpec{
		guid:   guid,
		name:   name,
		kind:   kind,
		full:   variant.BoolOr(m, keyFull, true),
		attach: true,
		parent: parent,
	}
	if variant.StringOr(m, keyStorageType, "") == StorageProxy.String() {
		spec.storageType = StorageProxy
		members, err := variant.Strings(m, keyProxyMembers)
		if err != nil {
			return Dataset{}, err
		}
		spec.members = members
	}
	if !spec.full {
		indices, err := variant.Ints(m, keyIndices)
		if err != nil {
			return Dataset{}, err
		}
		spec.indices = indices
	}
	props, err := variant.Sub(m, keyProperties)
	if err != nil {
		return Dataset{}, err
	}
	if len(props) > 0 {
		spec.properties = props
	}

	if variant.BoolOr(m, keyDerived, false) {
		spec.derived = true
		sourceGUID := variant.StringOr(m, keySourceDataset, "")
		if source, err := r.RequestData(sourceGUID); err == nil {
			spec.source = source
		} else {
			r.logger.Warn("source of derived dataset is missing",
				zap.String("dataset", guid),
				zap.String("source", sourceGUID))
		}
	}

	rawName := variant.StringOr(m, keyRawDataID, "")
	if raw, ok := r.raw[rawName]; ok && rawName != "" {
		spec.raw = raw
	} else {
		raw, err := r.restoreRaw(m, kind, rawName, spec)
		if err != nil {
			return Dataset{}, err
		}
		spec.raw = raw
		spec.newRaw = true
	}
	return r.create(spec)
}

func (r *Registry) restoreRaw(m variant.Map, kind, name string, spec createSpec) (*rawData, error) {
	if spec.storageType == StorageProxy {
		return r.newRaw(kind, &proxyStorage{kind: kind, reg: r, members: spec.members}, name), nil
	}
	raw, err := r.produceRaw(kind, name)
	if err != nil {
		return nil, err
	}
	content, err := variant.Sub(m, keyData)
	if err != nil {
		r.releaseStorage(raw)
		return nil, err
	}
	if s, ok := raw.storage.(variant.Serializable); ok && len(content) > 0 {
		if err := s.FromVariantMap(content); err != nil {
			r.releaseStorage(raw)
			return nil, fmt.Errorf("restore %s data: %w", kind, err)
		}
	}
	return raw, nil
}

func toAnySlice(ints []int) []any {
	out := make([]any, len(ints))
	for i, v := range ints {
		out[i] = v
	}
	return out
}
