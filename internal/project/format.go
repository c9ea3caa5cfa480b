package project

import (
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
	"gopkg.in/yaml.v3"

	"github.com/dshills/manivault/internal/variant"
)

// FormatVersion is the document version written by Save.
const FormatVersion = 1

const (
	application = "manivault"

	keyMeta        = "Meta"
	keyVersion     = "Version"
	keyApplication = "Application"
	keySaved       = "Saved"
	keyHierarchy   = "Hierarchy"
	keyActions     = "PublicActions"
	keyChildren    = "Children"
)

// Format is a document encoding.
type Format int

const (
	FormatJSON Format = iota
	FormatYAML
)

func (f Format) String() string {
	if f == FormatYAML {
		return "yaml"
	}
	return "json"
}

// FormatOf picks the format from the URL extension.
func FormatOf(url string) Format {
	switch strings.ToLower(path.Ext(url)) {
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatJSON
	}
}

// Info is what Probe reads from a document without restoring it.
type Info struct {
	Format        Format
	Version       int
	Application   string
	Saved         string
	Items         int
	PublicActions int
}

// encode serializes the session document and stamps its metadata.
func encode(f Format, hierarchy, actions variant.Map, saved time.Time) ([]byte, error) {
	body := variant.Map{keyHierarchy: hierarchy, keyActions: actions}
	stamp := saved.UTC().Format(time.RFC3339)

	if f == FormatYAML {
		body[keyMeta] = variant.Map{keyVersion: FormatVersion, keyApplication: application, keySaved: stamp}
		return yaml.Marshal(body)
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	for _, kv := range []struct {
		path  string
		value any
	}{
		{keyMeta + "." + keyVersion, FormatVersion},
		{keyMeta + "." + keyApplication, application},
		{keyMeta + "." + keySaved, stamp},
	} {
		if raw, err = sjson.SetBytes(raw, kv.path, kv.value); err != nil {
			return nil, err
		}
	}
	return raw, nil
}

// decode parses a document, checking its version before anything else.
func decode(f Format, raw []byte) (variant.Map, Info, error) {
	info, err := probe(f, raw)
	if err != nil {
		return nil, info, err
	}
	var doc variant.Map
	if f == FormatYAML {
		err = yaml.Unmarshal(raw, &doc)
	} else {
		err = json.Unmarshal(raw, &doc)
	}
	if err != nil {
		return nil, info, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return doc, info, nil
}

// Probe reads the metadata and counts of a document.
func Probe(f Format, raw []byte) (Info, error) {
	return probe(f, raw)
}

func probe(f Format, raw []byte) (Info, error) {
	info := Info{Format: f}
	if f == FormatYAML {
		return probeYAML(raw, info)
	}

	if !gjson.ValidBytes(raw) {
		return info, fmt.Errorf("%w: invalid JSON", ErrMalformed)
	}
	version := gjson.GetBytes(raw, keyMeta+"."+keyVersion)
	if version.Type != gjson.Number {
		return info, fmt.Errorf("%w: no format version", ErrMalformed)
	}
	info.Version = int(version.Int())
	if info.Version > FormatVersion {
		return info, &VersionError{Found: info.Version, Supported: FormatVersion}
	}
	info.Application = gjson.GetBytes(raw, keyMeta+"."+keyApplication).String()
	info.Saved = gjson.GetBytes(raw, keyMeta+"."+keySaved).String()
	info.Items = countItems(gjson.GetBytes(raw, keyHierarchy))
	gjson.GetBytes(raw, keyActions).ForEach(func(_, _ gjson.Result) bool {
		info.PublicActions++
		return true
	})
	return info, nil
}

func countItems(level gjson.Result) int {
	n := 0
	level.ForEach(func(_, item gjson.Result) bool {
		n += 1 + countItems(item.Get(keyChildren))
		return true
	})
	return n
}

func probeYAML(raw []byte, info Info) (Info, error) {
	var doc variant.Map
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return info, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	meta, err := variant.Sub(doc, keyMeta)
	if err != nil {
		return info, fmt.Errorf("%w: no metadata", ErrMalformed)
	}
	version, err := variant.Int(meta, keyVersion)
	if err != nil {
		return info, fmt.Errorf("%w: no format version", ErrMalformed)
	}
	info.Version = version
	if version > FormatVersion {
		return info, &VersionError{Found: version, Supported: FormatVersion}
	}
	info.Application = variant.StringOr(meta, keyApplication, "")
	info.Saved = fmt.Sprint(meta[keySaved])

	hierarchy, _ := variant.ToMap(doc[keyHierarchy])
	info.Items = countMapItems(hierarchy)
	actions, _ := variant.ToMap(doc[keyActions])
	info.PublicActions = len(actions)
	return info, nil
}

func countMapItems(level variant.Map) int {
	n := 0
	for _, v := range level {
		item, ok := variant.ToMap(v)
		if !ok {
			continue
		}
		children, _ := variant.ToMap(item[keyChildren])
		n += 1 + countMapItems(children)
	}
	return n
}
