// Package health reports whether sitekit's dependencies are usable.
//
// A Checker holds named probes (tenant storage, NATS connection) and runs
// them with a per-check timeout. Results are Status values that aggregate
// into one system status:
//
//	checker := health.NewChecker(2 * time.Second)
//	checker.Add("storage", health.PingCheck(sqlStore.Ping))
//	checker.Add("nats", health.ConnectedCheck(natsClient.IsHealthy))
//	status := checker.Run(ctx, "sitekit")
//
// Error text placed into a Status is sanitized so that URLs, paths, hosts and
// credentials never reach the health endpoint.
package health
