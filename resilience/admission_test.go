package resilience

import (
	"errors"
	"testing"
	"time"

	"github.com/jonwraymond/toolgate/health"
)

// fakeClock is advanced manually by tests.
type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestAdmission(t *testing.T, cfg AdmissionConfig) (*Admission, *fakeClock) {
	t.Helper()
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	cfg.Now = clock.Now
	a, err := NewAdmission(cfg)
	if err != nil {
		t.Fatalf("NewAdmission() error = %v", err)
	}
	return a, clock
}

var (
	stressedSnap = health.Snapshot{CPUPercent: 90, MemoryPercent: 50, DiskPercent: 50, AvgLatencyMs: 50, QueueDepth: 10}
	healthySnap  = health.Snapshot{CPUPercent: 10, MemoryPercent: 10, DiskPercent: 10, AvgLatencyMs: 10}
)

func TestNewAdmission_Defaults(t *testing.T) {
	a, _ := newTestAdmission(t, AdmissionConfig{})
	st := a.State()
	if st.CurrentRPS != 100 || st.MinRPS != 10 || st.MaxRPS != 1000 {
		t.Errorf("State() = %+v, want 100/10/1000", st)
	}
}

func TestNewAdmission_InvalidLimits(t *testing.T) {
	_, err := NewAdmission(AdmissionConfig{MinRPS: 50, MaxRPS: 10})
	if !errors.Is(err, ErrInvalidLimits) {
		t.Errorf("NewAdmission() error = %v, want ErrInvalidLimits", err)
	}
}

func TestNewAdmission_ClampsInitial(t *testing.T) {
	a, _ := newTestAdmission(t, AdmissionConfig{InitialRPS: 5000, MinRPS: 10, MaxRPS: 200})
	if got := a.CurrentRPS(); got != 200 {
		t.Errorf("CurrentRPS() = %v, want 200", got)
	}
}

func TestAdmission_StressedHalves(t *testing.T) {
	a, _ := newTestAdmission(t, AdmissionConfig{InitialRPS: 100})

	adj := a.Update(stressedSnap)
	if !adj.Evaluated || adj.Status != health.StatusStressed {
		t.Fatalf("Update() = %+v, want evaluated stressed", adj)
	}
	if got := a.CurrentRPS(); got != 50 {
		t.Errorf("CurrentRPS() = %v, want 50", got)
	}
	if !adj.Changed() {
		t.Error("Changed() should be true")
	}
}

func TestAdmission_ConsecutiveTicks(t *testing.T) {
	a, clock := newTestAdmission(t, AdmissionConfig{InitialRPS: 100})

	prev := a.CurrentRPS()
	for i := 0; i < 2; i++ {
		a.Update(stressedSnap)
		clock.Advance(DefaultAdjustmentInterval)
		if got := a.CurrentRPS(); got >= prev {
			t.Fatalf("stressed tick %d: CurrentRPS() = %v, want < %v", i, got, prev)
		}
		prev = a.CurrentRPS()
	}

	for i := 0; i < 2; i++ {
		a.Update(healthySnap)
		clock.Advance(DefaultAdjustmentInterval)
		if got := a.CurrentRPS(); got <= prev {
			t.Fatalf("healthy tick %d: CurrentRPS() = %v, want > %v", i, got, prev)
		}
		prev = a.CurrentRPS()
	}
}

func TestAdmission_Bounds(t *testing.T) {
	a, clock := newTestAdmission(t, AdmissionConfig{InitialRPS: 12, MinRPS: 10, MaxRPS: 13})

	for i := 0; i < 5; i++ {
		a.Update(stressedSnap)
		clock.Advance(time.Minute)
	}
	if got := a.CurrentRPS(); got != 10 {
		t.Errorf("CurrentRPS() after stress = %v, want floor 10", got)
	}

	for i := 0; i < 5; i++ {
		a.Update(healthySnap)
		clock.Advance(time.Minute)
	}
	if got := a.CurrentRPS(); got != 13 {
		t.Errorf("CurrentRPS() after recovery = %v, want ceiling 13", got)
	}
}

func TestAdmission_NormalBands(t *testing.T) {
	tests := []struct {
		name string
		snap health.Snapshot
		want float64
	}{
		// Disk at 90 keeps these out of healthy without stressing them.
		{"idle cpu", health.Snapshot{CPUPercent: 40, DiskPercent: 90}, 105},
		{"busy cpu", health.Snapshot{CPUPercent: 82, DiskPercent: 90}, 90},
		{"middle cpu", health.Snapshot{CPUPercent: 60, DiskPercent: 90}, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, _ := newTestAdmission(t, AdmissionConfig{InitialRPS: 100})
			adj := a.Update(tt.snap)
			if adj.Status != health.StatusNormal {
				t.Fatalf("Status = %v, want normal", adj.Status)
			}
			if got := a.CurrentRPS(); got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("CurrentRPS() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAdmission_IntervalGate(t *testing.T) {
	a, clock := newTestAdmission(t, AdmissionConfig{InitialRPS: 100, Interval: 5 * time.Second})

	a.Update(stressedSnap)
	clock.Advance(4 * time.Second)
	adj := a.Update(stressedSnap)
	if adj.Evaluated {
		t.Error("Update() inside the interval should not evaluate")
	}
	if got := a.CurrentRPS(); got != 50 {
		t.Errorf("CurrentRPS() = %v, want 50", got)
	}

	clock.Advance(time.Second)
	if adj := a.Update(stressedSnap); !adj.Evaluated {
		t.Error("Update() after the interval should evaluate")
	}
	if got := a.CurrentRPS(); got != 25 {
		t.Errorf("CurrentRPS() = %v, want 25", got)
	}
}

func TestAdmission_IntervalJitter(t *testing.T) {
	a, clock := newTestAdmission(t, AdmissionConfig{InitialRPS: 100, Interval: time.Second})

	a.Update(stressedSnap)
	clock.Advance(time.Second - 20*time.Millisecond)
	if adj := a.Update(stressedSnap); !adj.Evaluated {
		t.Error("Update() a tick slightly early should evaluate")
	}
	if got := a.CurrentRPS(); got != 25 {
		t.Errorf("CurrentRPS() = %v, want 25", got)
	}
}

func TestAdmission_SnapshotTimestamps(t *testing.T) {
	// The clock never moves; spacing comes from the snapshots alone.
	a, _ := newTestAdmission(t, AdmissionConfig{InitialRPS: 100, Interval: time.Second})
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	want := []struct {
		offset    time.Duration
		evaluated bool
		rps       float64
	}{
		{0, true, 50},
		{time.Second, true, 25},
		{time.Second + 300*time.Millisecond, false, 25},
		{2*time.Second - 5*time.Millisecond, true, 12.5},
	}
	for i, w := range want {
		snap := stressedSnap
		snap.Timestamp = base.Add(w.offset)
		adj := a.Update(snap)
		if adj.Evaluated != w.evaluated {
			t.Errorf("tick %d: Evaluated = %v, want %v", i, adj.Evaluated, w.evaluated)
		}
		if got := a.CurrentRPS(); got != w.rps {
			t.Errorf("tick %d: CurrentRPS() = %v, want %v", i, got, w.rps)
		}
	}
}

func TestAdmission_Admit(t *testing.T) {
	a, _ := newTestAdmission(t, AdmissionConfig{})

	tests := []struct {
		priority Priority
		depth    int
		allowed  bool
	}{
		{PriorityLow, 100, true},
		{PriorityLow, 101, false},
		{PriorityLow, 150, false},
		{PriorityNormal, 150, true},
		{PriorityNormal, 200, true},
		{PriorityNormal, 201, false},
		{PriorityHigh, 1000, true},
		{PriorityCritical, 150, true},
		{PriorityCritical, 201, true},
		{PriorityCritical, 1 << 20, true},
	}
	for _, tt := range tests {
		err := a.Admit(tt.priority, tt.depth)
		if tt.allowed && err != nil {
			t.Errorf("Admit(%v, %d) error = %v, want allowed", tt.priority, tt.depth, err)
		}
		if !tt.allowed {
			var rej *RejectionError
			if !errors.As(err, &rej) {
				t.Errorf("Admit(%v, %d) error = %v, want *RejectionError", tt.priority, tt.depth, err)
				continue
			}
			if !errors.Is(err, ErrRateLimitExceeded) {
				t.Errorf("rejection should match ErrRateLimitExceeded")
			}
			if rej.Priority != tt.priority || rej.Depth != tt.depth {
				t.Errorf("rejection = %+v", rej)
			}
		}
	}
}

func TestAdmission_AdmitInvalidPriority(t *testing.T) {
	a, _ := newTestAdmission(t, AdmissionConfig{})
	if err := a.Admit(Priority(9), 0); !errors.Is(err, ErrInvalidPriority) {
		t.Errorf("Admit(9) error = %v, want ErrInvalidPriority", err)
	}
}
