package action

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/dshills/manivault/internal/event/events"
)

// Expose marks a as eligible for sharing. Exposing twice is the same as
// exposing once.
func (r *Registry) Expose(a *Action) {
	if a.exposed {
		return
	}
	a.exposed = true
	emit(r, events.TopicActionExposed, r.actionEvent(a))
}

// Conceal withdraws the eligibility granted by Expose.
func (r *Registry) Conceal(a *Action) {
	if !a.exposed {
		return
	}
	a.exposed = false
	emit(r, events.TopicActionConcealed, r.actionEvent(a))
}

// PublishPrivateAction creates a public copy of a named name, registers it
// and connects a to it. An empty name publishes as "<text>_pub". With
// recursive the children of a connect to the matching children of the
// copy.
func (r *Registry) PublishPrivateAction(a *Action, name string, recursive, allowDuplicate bool) (*Action, error) {
	if !a.IsPrivate() {
		return nil, fmt.Errorf("publish %q: %w", a.text, ErrNotPrivate)
	}
	if a.public != nil {
		return nil, fmt.Errorf("publish %q: %w", a.text, ErrAlreadyPublished)
	}
	if !a.MayPublish(ContextAPI) {
		return nil, fmt.Errorf("publish %q: %w", a.text, ErrPublishNotAllowed)
	}
	if name == "" {
		name = a.text + "_pub"
	}
	if !allowDuplicate {
		for _, p := range r.public {
			if p.text == name {
				return nil, fmt.Errorf("publish %q: %w: %q", a.text, ErrDuplicateName, name)
			}
		}
	}

	if a.reg == nil {
		if err := r.Add(a); err != nil {
			return nil, err
		}
	}
	pub := a.publicCopy(name)
	if err := r.Add(pub); err != nil {
		return nil, err
	}
	r.Expose(a)
	r.ConnectToPublicAction(a, pub, recursive)
	return pub, nil
}

// ConnectToPublicAction makes private follow public and copies the public
// value into it. With recursive, descendants of private connect to the
// descendants of public with the same text.
//
// Invalid requests are ignored and logged at debug level: private already
// connected (to public or another action), public not public, mismatched
// kinds, or permissions that forbid the link. The result reports whether
// private is connected to public afterwards. Descendants are only
// connected when private is.
func (r *Registry) ConnectToPublicAction(private, public *Action, recursive bool) bool {
	ok := r.connect(private, public)
	if ok && recursive {
		for _, child := range private.children {
			if match := public.Child(child.text); match != nil {
				r.ConnectToPublicAction(child, match, true)
			}
		}
	}
	return ok
}

func (r *Registry) connect(private, public *Action) bool {
	reason := ""
	switch {
	case private == nil || public == nil:
		reason = "nil action"
	case private.public == public:
		r.logger.Debug("already connected", zap.String("private", private.id), zap.String("public", public.id))
		return true
	case private.public != nil:
		reason = "connected to another public action"
	case !public.IsPublic():
		reason = "target is not public"
	case private.IsPublic():
		reason = "source is public"
	case private.kind != public.kind:
		reason = "kinds differ"
	case !private.kind.Capabilities().Has(CapPublicLink):
		reason = "kind cannot link"
	case !private.MayConnect(ContextAPI):
		reason = "permissions forbid connecting"
	}
	if reason != "" {
		fields := []zap.Field{zap.String("reason", reason)}
		if private != nil {
			fields = append(fields, zap.String("private", private.Location()))
		}
		if public != nil {
			fields = append(fields, zap.String("public", public.Location()))
		}
		r.logger.Debug("connect ignored", fields...)
		return false
	}

	private.public = public
	private.pendingPublicID = ""
	public.connected = append(public.connected, private)
	if public.kind.Capabilities().Has(CapSettable) {
		private.follow(public.value)
	}
	emit(r, events.TopicActionConnected, events.ActionLink{PrivateID: private.id, PublicID: public.id})
	return true
}

// DisconnectFromPublicAction cuts the link of a. The action keeps its last
// value. With recursive the descendants are disconnected too and get their
// cached permissions back.
func (r *Registry) DisconnectFromPublicAction(a *Action, recursive bool) {
	if a.public != nil {
		if a.MayDisconnect(ContextAPI) {
			r.disconnect(a)
		} else {
			r.logger.Debug("disconnect ignored",
				zap.String("reason", "permissions forbid disconnecting"),
				zap.String("private", a.Location()))
		}
	}
	if recursive {
		for _, child := range a.children {
			r.DisconnectFromPublicAction(child, true)
			child.RestorePermissions(true)
		}
	}
}

func (r *Registry) disconnect(a *Action) {
	public := a.public
	public.connected = slices.DeleteFunc(public.connected, func(x *Action) bool { return x == a })
	a.public = nil
	a.enabled = true
	emit(r, events.TopicActionDisconnected, events.ActionLink{PrivateID: a.id, PublicID: public.id})
}

// resolvePending completes restored links involving x.
func (r *Registry) resolvePending(x *Action) {
	if id := x.pendingPublicID; id != "" {
		if pub, ok := r.byID[id]; ok {
			r.connect(x, pub)
		}
	}
	if !x.IsPublic() {
		return
	}
	for _, a := range r.actions {
		if a.pendingPublicID == x.id {
			r.connect(a, x)
		}
	}
	for _, id := range x.pendingFollowers {
		if a, ok := r.byID[id]; ok && a.public == nil {
			r.connect(a, x)
		}
	}
	x.pendingFollowers = nil
}
