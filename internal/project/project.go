package project

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/viant/afs"
	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/action"
	"github.com/dshills/manivault/internal/data"
	"github.com/dshills/manivault/internal/event"
	"github.com/dshills/manivault/internal/event/events"
	"github.com/dshills/manivault/internal/event/topic"
	"github.com/dshills/manivault/internal/hierarchy"
	"github.com/dshills/manivault/internal/variant"
)

const eventSource = "project"

// Option configures a Project.
type Option func(*Project)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Project) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFileSystem replaces the storage service.
func WithFileSystem(fs afs.Service) Option {
	return func(p *Project) {
		if fs != nil {
			p.fs = fs
		}
	}
}

// WithClock sets the time source for the Saved stamp.
func WithClock(now func() time.Time) Option {
	return func(p *Project) {
		if now != nil {
			p.now = now
		}
	}
}

// Project saves and restores the session held by the registries.
type Project struct {
	bus       event.Bus
	data      *data.Registry
	hierarchy *hierarchy.Hierarchy
	actions   *action.Registry
	fs        afs.Service
	logger    *zap.Logger
	now       func() time.Time
}

// New creates a Project over the session registries.
func New(bus event.Bus, d *data.Registry, h *hierarchy.Hierarchy, a *action.Registry, opts ...Option) *Project {
	p := &Project{
		bus:       bus,
		data:      d,
		hierarchy: h,
		actions:   a,
		logger:    zap.NewNop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.fs == nil {
		p.fs = afs.New()
	}
	p.logger = p.logger.Named("project")
	return p
}

// Encode serializes the session.
func (p *Project) Encode(f Format) ([]byte, error) {
	hier, err := p.hierarchy.ToVariantMap(p.data)
	if err != nil {
		return nil, err
	}
	return encode(f, hier, p.actions.ToVariantMap(), p.now())
}

// Save writes the session to url.
func (p *Project) Save(ctx context.Context, url string) (Info, error) {
	f := FormatOf(url)
	raw, err := p.Encode(f)
	if err != nil {
		return Info{}, fmt.Errorf("encode project: %w", err)
	}
	info, err := probe(f, raw)
	if err != nil {
		return info, err
	}
	if err := p.fs.Upload(ctx, url, 0o644, bytes.NewReader(raw)); err != nil {
		return info, fmt.Errorf("write %s: %w", url, err)
	}

	p.logger.Info("project saved", zap.String("url", url), zap.Int("items", info.Items))
	emit(p, events.TopicProjectSaved, projectEvent(url, info))
	return info, nil
}

// Inspect reads the metadata of the document at url without loading it.
func (p *Project) Inspect(ctx context.Context, url string) (Info, error) {
	raw, err := p.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return Info{}, fmt.Errorf("read %s: %w", url, err)
	}
	return probe(FormatOf(url), raw)
}

// Load replaces the session with the document at url. Nothing is cleared
// when the document cannot be read, is from a newer version, names a
// retired GUID, or the session holds locked items.
func (p *Project) Load(ctx context.Context, url string) (Info, error) {
	raw, err := p.fs.DownloadWithURL(ctx, url)
	if err != nil {
		return Info{}, fmt.Errorf("read %s: %w", url, err)
	}
	doc, info, err := decode(FormatOf(url), raw)
	if err != nil {
		return info, err
	}
	if err := p.Decode(doc); err != nil {
		return info, fmt.Errorf("restore %s: %w", url, err)
	}

	p.logger.Info("project loaded", zap.String("url", url), zap.Int("items", info.Items))
	emit(p, events.TopicProjectLoaded, projectEvent(url, info))
	return info, nil
}

// Decode clears the session and restores doc into it. The document is
// checked first: a GUID this session issued to a dataset that is no longer
// live, or a locked item, rejects it before anything is cleared. GUIDs of
// the datasets removed by the clear are released for the restore.
func (p *Project) Decode(doc variant.Map) error {
	hier, err := variant.Sub(doc, keyHierarchy)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	actions, err := variant.Sub(doc, keyActions)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	guids, err := hierarchy.DatasetGUIDs(hier)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	live := make(map[string]bool)
	for _, d := range p.data.Datasets() {
		live[d.GUID()] = true
	}
	var reused []string
	for _, guid := range guids {
		if live[guid] {
			reused = append(reused, guid)
			continue
		}
		if p.data.IsIssued(guid) {
			return fmt.Errorf("%w: %s", data.ErrDuplicateGUID, guid)
		}
	}
	if n := p.lockedItems(); n > 0 {
		return fmt.Errorf("%w: %d items locked", ErrSessionBusy, n)
	}

	if err := p.Clear(); err != nil {
		return err
	}
	if n := p.data.ReleaseGUIDs(reused...); n > 0 {
		p.logger.Debug("guids released for reload", zap.Int("count", n))
	}
	if _, err := p.actions.RestorePublicActions(actions); err != nil {
		return err
	}
	if _, err := p.hierarchy.Restore(hier, p.data); err != nil {
		return err
	}
	return nil
}

func (p *Project) lockedItems() int {
	n := 0
	for _, it := range p.hierarchy.Items() {
		if it.IsLocked() {
			n++
		}
	}
	return n
}

// Clear removes every dataset. Locked datasets stay, deferred, and make
// Clear fail with ErrSessionBusy.
func (p *Project) Clear() error {
	var roots []data.Dataset
	for _, it := range p.hierarchy.Roots() {
		roots = append(roots, it.Dataset())
	}
	if len(roots) > 0 {
		if err := p.data.RemoveDatasets(roots...); err != nil {
			return err
		}
	}
	if p.hierarchy.Len() > 0 {
		return fmt.Errorf("%w: %d items remain", ErrSessionBusy, p.hierarchy.Len())
	}
	return nil
}

func projectEvent(url string, info Info) events.ProjectEvent {
	return events.ProjectEvent{
		URL:      url,
		Format:   info.Format.String(),
		Version:  info.Version,
		Datasets: info.Items,
		Actions:  info.PublicActions,
	}
}

func emit[T any](p *Project, t topic.Topic, payload T) {
	if err := event.Emit(context.Background(), p.bus, t, payload, eventSource); err != nil {
		p.logger.Warn("event not published", zap.String("topic", t.String()), zap.Error(err))
	}
}
