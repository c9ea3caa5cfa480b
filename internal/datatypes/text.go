package datatypes

import (
	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/variant"
)

// KindText is the data kind of Text.
const KindText = "Text"

// Text is a column of strings, one per row.
type Text struct {
	Rows []string
}

func (t *Text) DataKind() string { return KindText }
func (t *Text) Len() int         { return len(t.Rows) }

func (t *Text) Traits() data.Traits {
	return data.Traits{Duplication: data.DuplicateDeep}
}

func (t *Text) ToVariantMap() variant.Map {
	rows := make([]any, len(t.Rows))
	for i, r := range t.Rows {
		rows[i] = r
	}
	return variant.Map{"Rows": rows}
}

func (t *Text) FromVariantMap(m variant.Map) error {
	rows, err := variant.Strings(m, "Rows")
	if err != nil {
		return err
	}
	t.Rows = rows
	return nil
}
