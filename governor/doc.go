// Package governor puts a tiered response cache, admission control and a
// health-adaptive rate limit in front of one downstream service.
//
// A Governor is built from a Config (see LoadConfig for YAML files) and an
// Invoker that performs the actual call:
//
//	g, err := governor.New(cfg, governor.InvokerFunc(call))
//	if err != nil {
//		return err
//	}
//	if err := g.Start(ctx); err != nil {
//		return err
//	}
//	defer g.Shutdown(context.Background())
//
//	resp, err := g.AdmitAndRun(ctx, governor.Request{Method: "search", Params: params},
//		resilience.PriorityNormal, 5*time.Second)
//
// AdmitAndRun fingerprints the request and returns a cached response when
// the hot or warm tier holds one. Otherwise the call is admitted by
// priority and backlog, queued, released at the current rate and its
// successful result is cached in both tiers. Requests tagged with a side
// effect ("write", "delete", ...) skip the cache entirely.
//
// Every health check interval the governor samples CPU, memory, disk,
// average latency and queue depth, and raises or lowers the allowed rate
// between MinRPS and MaxRPS.
package governor
