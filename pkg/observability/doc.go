/*
Package observability provides Prometheus metrics for runners.

Metrics plugs into the engine through lifecycle hooks, so it sees every run
and every transition without the engine knowing about Prometheus:

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	runner := yol.New("Site", yol.WithLifecycleHooks(metrics.Hooks()))
*/
package observability
