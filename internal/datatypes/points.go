package datatypes

import (
	"errors"
	"fmt"

	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/variant"
)

// KindPoints is the data kind of Points.
const KindPoints = "Points"

// ErrShape is returned when values do not fill whole points.
var ErrShape = errors.New("values do not match the point dimensions")

// Points is a dense row-major matrix of float32 coordinates.
type Points struct {
	Dimensions     int
	DimensionNames []string
	Values         []float32
}

func (p *Points) DataKind() string { return KindPoints }

// Len returns the number of points.
func (p *Points) Len() int {
	if p.Dimensions == 0 {
		return 0
	}
	return len(p.Values) / p.Dimensions
}

// Traits makes copies own their coordinates.
func (p *Points) Traits() data.Traits {
	return data.Traits{Duplication: data.DuplicateDeep}
}

// SetData replaces the coordinates. len(values) must be a multiple of dims.
func (p *Points) SetData(values []float32, dims int) error {
	if dims <= 0 || len(values)%dims != 0 {
		return fmt.Errorf("%w: %d values, %d dimensions", ErrShape, len(values), dims)
	}
	p.Values = values
	p.Dimensions = dims
	if len(p.DimensionNames) != dims {
		p.DimensionNames = nil
	}
	return nil
}

// Point returns the coordinates of point i, sharing the backing array.
func (p *Points) Point(i int) []float32 {
	if i < 0 || i >= p.Len() {
		return nil
	}
	return p.Values[i*p.Dimensions : (i+1)*p.Dimensions]
}

func (p *Points) ToVariantMap() variant.Map {
	values := make([]any, len(p.Values))
	for i, v := range p.Values {
		values[i] = float64(v)
	}
	m := variant.Map{
		"Dimensions": p.Dimensions,
		"Values":     values,
	}
	if len(p.DimensionNames) > 0 {
		names := make([]any, len(p.DimensionNames))
		for i, n := range p.DimensionNames {
			names[i] = n
		}
		m["DimensionNames"] = names
	}
	return m
}

func (p *Points) FromVariantMap(m variant.Map) error {
	dims, err := variant.Int(m, "Dimensions")
	if err != nil {
		return err
	}
	list, ok := m["Values"].([]any)
	if !ok && m["Values"] != nil {
		return fmt.Errorf("%w: Values is %T", variant.ErrWrongType, m["Values"])
	}
	values := make([]float32, len(list))
	for i, v := range list {
		f, ok := variant.ToFloat(v)
		if !ok {
			return fmt.Errorf("%w: value %d is %T", variant.ErrWrongType, i, v)
		}
		values[i] = float32(f)
	}
	names, err := variant.Strings(m, "DimensionNames")
	if err != nil {
		return err
	}
	if dims == 0 && len(values) == 0 {
		p.Values, p.Dimensions, p.DimensionNames = nil, 0, nil
		return nil
	}
	if err := p.SetData(values, dims); err != nil {
		return err
	}
	p.DimensionNames = names
	return nil
}
