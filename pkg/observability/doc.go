/*
Package observability turns bridge lifecycle events into Prometheus metrics and
structured log records.

Both are plain domain.LifecycleHooks and compose with domain.MergeHooks:

	metrics := observability.NewMetrics()
	hooks := domain.MergeHooks(metrics.Hooks(), observability.LogHooks(logger))
	bridge := docbridge.New(store, docbridge.WithLifecycleHooks(hooks))
	http.Handle("/metrics", metrics.Handler())
*/
package observability
