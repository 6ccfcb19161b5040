package progress

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestStartsDoneAtZero(t *testing.T) {
	ind := New(0.25, WithoutTicker())
	if !ind.Done() || ind.Percent() != 0 {
		t.Errorf("new indicator: done=%v percent=%v", ind.Done(), ind.Percent())
	}
	ind.Tick()
	if ind.Percent() != 0 {
		t.Errorf("Tick() while done moved the bar to %v", ind.Percent())
	}
}

func TestRestartAndReset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	ind := New(0.25, WithoutTicker(), WithClock(clock.now), WithRand(func() float64 { return 0.5 }))

	ind.SetDone(false)
	if ind.Percent() != StartPercent {
		t.Fatalf("restart percent = %v, want %v", ind.Percent(), StartPercent)
	}

	clock.advance(TickInterval)
	ind.Tick()
	if ind.Percent() <= StartPercent {
		t.Errorf("bar did not advance: %v", ind.Percent())
	}

	ind.SetDone(true)
	if ind.Percent() != 0 {
		t.Errorf("done percent = %v, want 0", ind.Percent())
	}

	ind.SetDone(false)
	if ind.Percent() != StartPercent {
		t.Errorf("second restart percent = %v, want %v", ind.Percent(), StartPercent)
	}
}

func TestPercentStaysInBounds(t *testing.T) {
	for _, r := range []float64{0, 0.25, 0.5, 0.999999} {
		r := r
		clock := &fakeClock{t: time.Unix(0, 0)}
		ind := New(0.1, WithoutTicker(), WithClock(clock.now), WithRand(func() float64 { return r }))
		ind.SetDone(false)
		prev := ind.Percent()
		for i := 0; i < 200; i++ {
			clock.advance(TickInterval)
			ind.Tick()
			p := ind.Percent()
			if p < 0 || p > 100 {
				t.Fatalf("rand=%v tick %d: percent %v out of [0, 100]", r, i, p)
			}
			if p < prev {
				t.Fatalf("rand=%v tick %d: percent went backwards %v -> %v", r, i, prev, p)
			}
			prev = p
		}
		if prev != 100 {
			t.Errorf("rand=%v: bar should reach 100 eventually, got %v", r, prev)
		}
	}
}

func TestEasing(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	// rand 0.5 gives a jitter factor of exactly 1, so the bar lands on the
	// target plus the fixed step.
	ind := New(1, WithoutTicker(), WithClock(clock.now), WithRand(func() float64 { return 0.5 }))
	ind.SetDone(false)
	clock.advance(time.Second)
	ind.Tick()

	want := 100*(1-0.36787944117144233) + stepBonus
	if got := ind.Percent(); got < want-0.001 || got > want+0.001 {
		t.Errorf("percent after one time constant = %v, want %v", got, want)
	}
}

func TestOnUpdate(t *testing.T) {
	var got []float64
	ind := New(0.25, WithoutTicker(), WithOnUpdate(func(p float64) { got = append(got, p) }))
	ind.SetDone(false)
	ind.SetDone(false)
	ind.SetDone(true)
	if len(got) != 2 || got[0] != StartPercent || got[1] != 0 {
		t.Errorf("updates = %v, want [5 0]", got)
	}
}

func TestTickerAdvances(t *testing.T) {
	var mu sync.Mutex
	updates := 0
	ind := New(0.25, WithOnUpdate(func(float64) {
		mu.Lock()
		updates++
		mu.Unlock()
	}))
	defer ind.Close()

	ind.SetDone(false)
	time.Sleep(6 * TickInterval)
	ind.SetDone(true)

	mu.Lock()
	defer mu.Unlock()
	if updates < 3 {
		t.Errorf("ticker produced %d updates", updates)
	}
	if ind.Percent() != 0 {
		t.Errorf("percent after done = %v", ind.Percent())
	}
}

func TestBar(t *testing.T) {
	var buf bytes.Buffer
	if err := Bar(false, 42.126).Render(context.Background(), &buf); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); !strings.Contains(got, `style="width: 42.13%"`) || strings.Contains(got, "__done") {
		t.Errorf("Bar(false) = %s", got)
	}

	buf.Reset()
	_ = New(1, WithoutTicker()).Component().Render(context.Background(), &buf)
	if !strings.Contains(buf.String(), "FakeTopProgressBar__done") {
		t.Errorf("done bar = %s", buf.String())
	}
}
