package action

// Permission is a set of connection permission flags.
type Permission int32

const (
	PermissionNone             Permission = 0
	PermissionPublishViaAPI    Permission = 1 << 0
	PermissionPublishViaGUI    Permission = 1 << 1
	PermissionConnectViaAPI    Permission = 1 << 2
	PermissionConnectViaGUI    Permission = 1 << 3
	PermissionDisconnectViaAPI Permission = 1 << 4
	PermissionDisconnectViaGUI Permission = 1 << 5

	// PermissionForceNone overrides every other flag.
	PermissionForceNone Permission = 1 << 6

	PermissionAll = PermissionPublishViaAPI | PermissionPublishViaGUI |
		PermissionConnectViaAPI | PermissionConnectViaGUI |
		PermissionDisconnectViaAPI | PermissionDisconnectViaGUI

	// PermissionDefault is what new actions get.
	PermissionDefault = PermissionPublishViaAPI | PermissionConnectViaAPI | PermissionDisconnectViaAPI
)

// ConnectionContext says who asks for a link change.
type ConnectionContext int

const (
	ContextAPI ConnectionContext = iota
	ContextGUI
)

func (p Permission) allows(api, gui Permission, ctx ConnectionContext) bool {
	if p&PermissionForceNone != 0 {
		return false
	}
	if ctx == ContextGUI {
		return p&gui != 0
	}
	return p&api != 0
}

// MayPublish reports whether the action may be published from ctx.
func (a *Action) MayPublish(ctx ConnectionContext) bool {
	return a.permissions.allows(PermissionPublishViaAPI, PermissionPublishViaGUI, ctx)
}

// MayConnect reports whether the action may be connected from ctx.
func (a *Action) MayConnect(ctx ConnectionContext) bool {
	return a.permissions.allows(PermissionConnectViaAPI, PermissionConnectViaGUI, ctx)
}

// MayDisconnect reports whether the action may be disconnected from ctx.
func (a *Action) MayDisconnect(ctx ConnectionContext) bool {
	return a.permissions.allows(PermissionDisconnectViaAPI, PermissionDisconnectViaGUI, ctx)
}

// Permissions returns the permission flags.
func (a *Action) Permissions() Permission { return a.permissions }

// SetPermissions replaces the permission flags.
func (a *Action) SetPermissions(p Permission, recursive bool) {
	a.permissions = p
	if recursive {
		for _, c := range a.children {
			c.SetPermissions(p, true)
		}
	}
}

// SetPermissionFlag sets, or with unset clears, flag.
func (a *Action) SetPermissionFlag(flag Permission, unset, recursive bool) {
	if unset {
		a.permissions &^= flag
	} else {
		a.permissions |= flag
	}
	if recursive {
		for _, c := range a.children {
			c.SetPermissionFlag(flag, unset, true)
		}
	}
}

// CachePermissions remembers the current flags for RestorePermissions.
func (a *Action) CachePermissions(recursive bool) {
	a.cachedPermissions = a.permissions
	if recursive {
		for _, c := range a.children {
			c.CachePermissions(true)
		}
	}
}

// RestorePermissions reinstates the cached flags.
func (a *Action) RestorePermissions(recursive bool) {
	a.permissions = a.cachedPermissions
	if recursive {
		for _, c := range a.children {
			c.RestorePermissions(true)
		}
	}
}
