package datatypes

import (
	"errors"

	"github.com/Masterminds/semver/v3"

	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/plugin"
)

// Version is the version of the built-in data types.
var Version = semver.MustParse("1.0.0")

// DataPlugin is a DATA plugin owning one storage.
type DataPlugin struct {
	plugin.Base
	storage data.Storage
}

// Storage returns the owned storage.
func (p *DataPlugin) Storage() data.Storage {
	return p.storage
}

// Factories returns the built-in data-type factories.
func Factories() []plugin.Factory {
	return []plugin.Factory{
		factory(KindPoints, func() data.Storage { return &Points{} }),
		factory(KindClusters, func() data.Storage { return &Clusters{} }),
		factory(KindText, func() data.Storage { return &Text{} }),
	}
}

// Register adds the built-in factories to m.
func Register(m *plugin.Manager) error {
	var errs []error
	for _, f := range Factories() {
		errs = append(errs, m.RegisterFactory(f))
	}
	return errors.Join(errs...)
}

func factory(kind string, newStorage func() data.Storage) plugin.Factory {
	return plugin.NewFactory(kind, plugin.TypeData, func(id string, f plugin.Factory) (plugin.Plugin, error) {
		return &DataPlugin{Base: plugin.NewBase(id, f), storage: newStorage()}, nil
	}, plugin.WithVersion(Version))
}
