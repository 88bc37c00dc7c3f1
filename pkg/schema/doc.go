// Package schema checks node attributes against per-type contracts.
//
// A Registry maps a node's "type" attribute to a Schema, and a Schema maps
// attribute keys to types. Types are parsed from short strings, so contracts can
// live in configuration:
//
//	schemas:
//	  Buffer:
//	    stride: int
//	    format: string?
//	    offsets: "[int]"
//
// A trailing "?" makes the attribute optional. Nodes whose type has no schema,
// and attributes a schema does not mention, are not checked.
//
// Numbers are accepted in the forms scripts and JSON produce them: Go integers,
// int64 from Lua, and whole float64 values from decoded JSON.
package schema
