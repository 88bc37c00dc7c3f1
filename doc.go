/*
Package docbridge lets scripts read and edit a hierarchical document through a small
path-based API, while the document itself lives in a host store.

# Concept

A document is an ordered tree of named nodes. Scripts never touch the store directly:
each run is a turn that fetches one snapshot of the tree, lets the script resolve
slash-delimited paths ("Mesh/Vertices") against it, insert and delete nodes, and then
writes the snapshot back once. Deletions are forwarded to the host immediately so it can
release the node. A failed turn writes nothing back.

Scripts are Lua. The namespace is available as Session (and gpupad):

	local mesh = Session.addItem("Mesh", { type = "Group" })
	Session.addItem("Mesh/Vertices", { type = "Buffer", stride = 12 })
	print(#Session.item("Mesh").items)
	Session.deleteItem("Mesh/Vertices")

Resolving a path that does not exist yields nil; inserting under a parent that does not
exist is an error (domain.ErrInvalidOperation).

# Usage

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/aretw0/docbridge"
		"github.com/aretw0/docbridge/pkg/adapters/memory"
	)

	func main() {
		bridge := docbridge.New(memory.NewStore(), docbridge.WithScriptOutput(os.Stdout))

		err := bridge.RunScript(context.Background(), "scene", `
			Session.addItem("Texture", { type = "Texture" })
			print(Session.item("Texture").name)
		`, "init.lua")
		if err != nil {
			log.Fatal(err)
		}
	}

Go callers can use Turn to work on the same snapshot without a script.
*/
package docbridge
