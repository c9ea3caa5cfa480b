// Package project saves and loads a session: the data hierarchy with the
// datasets it wraps, and the public actions.
//
// Documents live behind storage URLs (file://, mem:// or plain paths) and
// are written as JSON unless the URL ends in .yaml or .yml:
//
//	{
//	  "Meta": {"Version": 1, "Application": "manivault", "Saved": "..."},
//	  "Hierarchy": {"<guid>": {"Name": "...", "Dataset": {...}, "Children": {...}}},
//	  "PublicActions": {"<id>": {...}}
//	}
//
// Loading replaces the current session. Public actions are restored first
// so that restored private actions reconnect to them, and derived datasets
// are recreated after their sources. Datasets keep their GUIDs. A document
// can be reloaded into the session that saved it as long as its datasets
// are still live; a GUID whose dataset was removed earlier stays retired.
package project
