// Package resilience provides admission control and rate-limited,
// priority-ordered execution.
//
// # Components
//
//   - Admission: adapts the allowed requests per second to health snapshots
//     (fast multiplicative backoff when stressed, cautious recovery when
//     healthy) and rejects low and normal priority work under backlog.
//     Critical work is never rejected.
//
//   - PriorityQueues: four FIFO buckets served in strict priority order.
//
//   - SlidingWindow: admits at most N events per trailing second.
//
//   - RunWithTimeout: bounds a single dispatched operation.
//
//   - Executor: the scheduling loop tying the above together.
//
// # Usage
//
//	adm, _ := resilience.NewAdmission(resilience.AdmissionConfig{
//	    InitialRPS: 100,
//	    MinRPS:     10,
//	    MaxRPS:     1000,
//	})
//	exec, _ := resilience.NewExecutor(resilience.ExecutorConfig{Admission: adm})
//	go exec.Run(ctx)
//
//	err := exec.Submit(ctx, resilience.PriorityHigh, 5*time.Second,
//	    func(ctx context.Context) error {
//	        return callExternalService(ctx)
//	    })
//	if errors.Is(err, resilience.ErrRateLimitExceeded) {
//	    // shed or retry later
//	}
package resilience
