/*
Package session serializes script turns against documents.

A turn owns one freshly built snapshot cache: it is fetched lazily, flushed once when
the turn succeeds and discarded when it fails. Turns on the same document never
overlap; the Manager keeps a reference-counted lock per document and can additionally
hold a DistributedLocker so several replicas share one store safely.
*/
package session
