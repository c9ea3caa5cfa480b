package plugin

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	plua "github.com/dshills/manivault/internal/plugin/lua"
)

const smoothingScript = `
settings = {
	{type = "Decimal", text = "Radius", value = 2, min = 0, max = 10},
	{type = "Group", text = "Kernel", children = {
		{type = "Option", text = "Shape", options = {"box", "gauss"}, value = "gauss"},
		{type = "Toggle", text = "Normalize", value = true},
	}},
}

function init(id)
	owner = id
end

function on_change(id, location, value)
	last = location .. "=" .. tostring(value)
end

function describe()
	return owner, last
end
`

func writePlugin(t *testing.T, base, dir, manifest, script string) {
	t.Helper()
	path := filepath.Join(base, dir)
	require.NoError(t, os.MkdirAll(path, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(path, ManifestFile), []byte(manifest), 0o644))
	if script != "" {
		require.NoError(t, os.WriteFile(filepath.Join(path, "init.lua"), []byte(script), 0o644))
	}
}

func TestLoaderRegistersScriptedFactories(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "smoothing", `{
		"kind": "Smoothing",
		"type": "TRANSFORMATION",
		"version": "1.2.0",
		"dependencies": {"Points": "^1.0.0"},
		"maxInstances": 1,
		"script": "init.lua"
	}`, smoothingScript)
	writePlugin(t, base, "broken", `{"kind": "Broken", "type": "VIEW", "version": "one", "script": "init.lua"}`, "")
	writePlugin(t, base, "orphan", `{"kind": "Orphan", "type": "VIEW", "version": "1.0.0", "dependencies": {"Nope": "*"}, "script": "init.lua"}`, "settings = {}")
	require.NoError(t, os.WriteFile(filepath.Join(base, "README"), []byte("not a plugin"), 0o644))

	m := NewManager(nil)
	require.NoError(t, m.RegisterFactory(testFactory("Points", TypeData, nil)))

	loaded, err := NewLoader(WithPaths(base)).Load(context.Background(), m)
	assert.ErrorIs(t, err, ErrInvalidVersion)
	assert.ErrorIs(t, err, ErrDependencyNotFound)
	require.Len(t, loaded, 1)
	assert.Equal(t, "Smoothing", loaded[0].Kind())
	assert.Equal(t, TypeTransformation, loaded[0].Type())
	assert.Equal(t, "1.2.0", loaded[0].Version().String())
	assert.True(t, m.IsPluginLoaded("Smoothing"))
	assert.False(t, m.IsPluginLoaded("Orphan"))

	p, err := m.ProduceKind("Smoothing")
	require.NoError(t, err)
	sp, ok := p.(*ScriptedPlugin)
	require.True(t, ok)

	actions := sp.Actions()
	require.Len(t, actions, 2)
	assert.Equal(t, 2.0, actions[0].Value())
	assert.Equal(t, "gauss", actions[1].Child("Shape").Value())

	require.NoError(t, actions[0].SetValue(4))
	out, err := sp.Call(context.Background(), "describe")
	require.NoError(t, err)
	assert.Equal(t, []any{p.ID(), "Radius=4"}, out)

	require.NoError(t, actions[1].Child("Normalize").SetValue(false))
	out, err = sp.Call(context.Background(), "describe")
	require.NoError(t, err)
	assert.Equal(t, "Kernel/Normalize=false", out[1])

	_, err = m.ProduceKind("Smoothing")
	assert.ErrorIs(t, err, ErrMaxInstances)

	require.NoError(t, m.Destroy(p))
	_, err = sp.Call(context.Background(), "describe")
	assert.ErrorIs(t, err, plua.ErrStateClosed)
}

func TestScriptedFactoryRejectsBadSettings(t *testing.T) {
	base := t.TempDir()
	for name, script := range map[string]string{
		"untyped":    `settings = {{text = "Radius"}}`,
		"no-options": `settings = {{type = "Option", text = "Mode"}}`,
		"not-a-list": `settings = "Radius"`,
	} {
		writePlugin(t, base, name, `{"kind": "K", "type": "VIEW", "version": "1.0.0", "script": "init.lua"}`, script)
		man, err := LoadManifestFromDir(filepath.Join(base, name))
		require.NoError(t, err)
		_, err = NewScriptedFactory(context.Background(), man)
		assert.ErrorIs(t, err, ErrInvalidSettings, name)
	}

	man := &Manifest{Kind: "NoScript", Version: "1.0.0"}
	_, err := NewScriptedFactory(context.Background(), man)
	assert.ErrorIs(t, err, ErrNoEntryPoint)
}

func TestDiscoverFirstPathWins(t *testing.T) {
	first, second := t.TempDir(), t.TempDir()
	writePlugin(t, first, "a", `{"kind": "Same", "type": "VIEW", "version": "2.0.0", "script": "init.lua"}`, "")
	writePlugin(t, second, "b", `{"kind": "Same", "type": "VIEW", "version": "1.0.0", "script": "init.lua"}`, "")
	writePlugin(t, second, "c", `{"kind": "Other", "type": "LOADER", "script": "init.lua"}`, "")

	ms, err := NewLoader(WithPaths(first, second, filepath.Join(first, "missing"))).Discover()
	require.NoError(t, err)
	require.Len(t, ms, 2)
	assert.Equal(t, "Other", ms[0].Kind)
	assert.Equal(t, "0.0.0", ms[0].Version)
	assert.Equal(t, "Same", ms[1].Kind)
	assert.Equal(t, "2.0.0", ms[1].Version)
}

const linkedScript = `
settings = {
	{type = "Decimal", text = "Radius", value = 2, min = 0, max = 10},
	{type = "Group", text = "Kernel", children = {
		{type = "Toggle", text = "Normalize", value = true},
	}},
}

changes = 0

function on_change(id, location, value)
	changes = changes + 1
	if location == "Radius" and value > 5 then
		manivault.log("debug", "large radius disables normalization")
		manivault.set("Kernel/Normalize", false)
	end
end

function inspect()
	local ok, err = manivault.set("Missing", 1)
	return manivault.id(), manivault.kind(), manivault.get("Radius"), changes, ok, err
end
`

func TestScriptsReachTheirSettings(t *testing.T) {
	base := t.TempDir()
	writePlugin(t, base, "linked", `{"kind": "Linked", "type": "VIEW", "version": "1.0.0", "script": "init.lua"}`, linkedScript)

	m := NewManager(nil)
	_, err := NewLoader(WithPaths(base)).Load(context.Background(), m)
	require.NoError(t, err)
	p, err := m.ProduceKind("Linked")
	require.NoError(t, err)
	sp := p.(*ScriptedPlugin)
	defer m.Destroy(p)

	radius := sp.Actions()[0]
	normalize := sp.Actions()[1].Child("Normalize")
	require.NoError(t, radius.SetValue(8))
	assert.Equal(t, false, normalize.Value())

	out, err := sp.Call(context.Background(), "inspect")
	require.NoError(t, err)
	require.Len(t, out, 6)
	assert.Equal(t, p.ID(), out[0])
	assert.Equal(t, "Linked", out[1])
	assert.Equal(t, 8, out[2])
	assert.Equal(t, 1, out[3], "values set by the script do not call on_change again")
	assert.Nil(t, out[4])
	assert.Equal(t, "no setting Missing", out[5])
}
