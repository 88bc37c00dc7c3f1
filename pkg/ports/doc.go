/*
Package ports defines the driven ports (interfaces) of the docbridge core.

These interfaces decouple the cache and path accessor from external implementations,
allowing the bridge to work against various hosts and storage backends.

# Key Interfaces

  - Host: The host binding a turn fetches its snapshot from and flushes it to.
  - FunctionProvider: Optional host operations forwarded to scripts untouched.
  - DocumentStore: Persists whole documents (memory, file, redis, sqlite, loam).
  - DistributedLocker: Provides distributed locking for turns across replicas.
*/
package ports
