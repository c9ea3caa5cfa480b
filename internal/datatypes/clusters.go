package datatypes

import (
	"fmt"
	"slices"

	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/variant"
)

// KindClusters is the data kind of Clusters.
const KindClusters = "Clusters"

// Cluster is a named set of indices into the source data.
type Cluster struct {
	Name    string
	Color   string
	Indices []int
}

// Clusters holds clusters derived from another dataset.
type Clusters struct {
	Clusters []Cluster
}

func (c *Clusters) DataKind() string { return KindClusters }
func (c *Clusters) Len() int         { return len(c.Clusters) }

// Traits lets clusters outlive the dataset they were computed from.
func (c *Clusters) Traits() data.Traits {
	return data.Traits{MayUnderive: true}
}

// Add appends a cluster and returns its index.
func (c *Clusters) Add(name, color string, indices []int) int {
	c.Clusters = append(c.Clusters, Cluster{Name: name, Color: color, Indices: slices.Clone(indices)})
	return len(c.Clusters) - 1
}

// Find returns the index of the cluster named name, or -1.
func (c *Clusters) Find(name string) int {
	return slices.IndexFunc(c.Clusters, func(cl Cluster) bool { return cl.Name == name })
}

func (c *Clusters) ToVariantMap() variant.Map {
	list := make([]any, len(c.Clusters))
	for i, cl := range c.Clusters {
		indices := make([]any, len(cl.Indices))
		for j, x := range cl.Indices {
			indices[j] = x
		}
		list[i] = variant.Map{"Name": cl.Name, "Color": cl.Color, "Indices": indices}
	}
	return variant.Map{"Clusters": list}
}

func (c *Clusters) FromVariantMap(m variant.Map) error {
	list, _ := m["Clusters"].([]any)
	out := make([]Cluster, 0, len(list))
	for i, item := range list {
		cm, ok := variant.ToMap(item)
		if !ok {
			return fmt.Errorf("%w: cluster %d is %T", variant.ErrWrongType, i, item)
		}
		indices, err := variant.Ints(cm, "Indices")
		if err != nil {
			return fmt.Errorf("cluster %d: %w", i, err)
		}
		out = append(out, Cluster{
			Name:    variant.StringOr(cm, "Name", ""),
			Color:   variant.StringOr(cm, "Color", ""),
			Indices: indices,
		})
	}
	c.Clusters = out
	return nil
}
