/*
Package observability turns run and edit session events into Prometheus metrics.

Metrics exposes orchestrator hooks (RunHooks) and session hooks (SessionHooks). Register
the collectors with prometheus.DefaultRegisterer to serve them from promhttp.Handler().
*/
package observability
