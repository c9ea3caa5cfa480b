// Package plugin hosts plugin factories and the plugin instances they
// produce.
//
// A Factory is registered once per kind and lives for the whole session.
// The Manager produces instances from it, enforces the factory's instance
// cap and announces every instance on the bus:
//
//	m := plugin.NewManager(bus, plugin.WithLogger(logger))
//	_ = m.RegisterFactory(points)
//	p, err := m.ProduceKind("Points")
//	...
//	_ = m.Destroy(p)
//
// Plugins can also be scripted. A plugin directory holds a plugin.json
// manifest and a Lua script declaring the plugin's settings:
//
//	~/.manivault/plugins/smoothing/
//	├── plugin.json
//	└── init.lua
//
//	{
//	  "kind": "Smoothing",
//	  "type": "TRANSFORMATION",
//	  "version": "1.2.0",
//	  "dependencies": {"Points": "^1.0.0"},
//	  "maxInstances": 4,
//	  "script": "init.lua"
//	}
//
// The script assigns a global settings table and may define init, on_change
// and destroy functions:
//
//	settings = {
//	  {type = "Decimal", text = "Radius", value = 2, min = 0, max = 10},
//	  {type = "Option", text = "Kernel", options = {"box", "gauss"}},
//	}
//
//	function on_change(id, location, value)
//	  if location == "Radius" and value > 5 then
//	    manivault.set("Kernel", "box")
//	  end
//	end
//
// Scripts reach their plugin through the manivault table: id, kind, log,
// get and set, where settings are named by their slash-separated location.
//
// The Loader discovers manifests, orders them by dependency and registers a
// scripted factory for each.
package plugin
