/*
Package domain contains the core domain models of the docbridge document tree.

It defines the tree elements scripts read and mutate, the parsed path addressing
scheme, the persisted document form and the error taxonomy. This package is kept pure
and free of I/O, following Hexagonal Architecture principles.

# Key Entities

  - Node: One element of the document tree (buffer, stream, call, group...). Only
    Name and Items are interpreted; every other attribute is opaque.
  - Path: A parsed "a/b/c" address, resolved by walking Items lists by Name.
  - Document: The persisted tree with its revision and id counter.
  - LifecycleHooks: Observability callbacks for fetch, flush, delete and turns.
*/
package domain
