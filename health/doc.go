// Package health samples host and process load and classifies it.
//
// A Sampler combines CPU, memory and disk utilization read through a Probe
// with a rolling latency average and the current queue depth into a
// Snapshot. Snapshots are kept in a bounded History and classified as
// healthy, normal or stressed by Thresholds.
//
// # Basic Usage
//
//	sampler := health.NewSampler(health.SamplerConfig{
//	    Depth: queues.Depth,
//	})
//
//	snap := sampler.Sample(ctx)
//	if sampler.Classify(snap) == health.StatusStressed {
//	    // back off
//	}
//
// On Linux the default probe reads /proc through procfs and statfs through
// x/sys/unix. Elsewhere, and whenever a reading fails, the sampler
// substitutes FallbackPercent and marks the snapshot Estimated.
package health
