// Package progress implements the fake top-of-page progress bar shown while
// a page module loads.
//
// The bar eases toward 100% along 100*(1-exp(-t/T)) with an uneven step on
// every tick. It has no idea how far the load really is; it only gives the
// user something that moves.
package progress

import (
	"context"
	"fmt"
	"io"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/a-h/templ"
)

const (
	// TickInterval is how often the bar advances.
	TickInterval = 50 * time.Millisecond

	// DefaultSeconds is the default easing time constant.
	DefaultSeconds = 0.25

	// StartPercent is where the bar restarts when loading begins.
	StartPercent = 5.0

	// stepBonus is added to every tick so the bar never stalls.
	stepBonus = 5.0
)

// Option configures an Indicator.
type Option func(*Indicator)

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(i *Indicator) { i.now = now }
}

// WithRand overrides the jitter source. fn must return values in [0, 1).
func WithRand(fn func() float64) Option {
	return func(i *Indicator) { i.rand = fn }
}

// WithOnUpdate is called with the new percent after every change. It runs on
// the ticker goroutine.
func WithOnUpdate(fn func(percent float64)) Option {
	return func(i *Indicator) { i.onUpdate = fn }
}

// WithoutTicker disables the background ticker; the owner drives ticks.
func WithoutTicker() Option {
	return func(i *Indicator) { i.manual = true }
}

// Indicator is a progress bar driven by a done flag.
type Indicator struct {
	duration time.Duration
	now      func() time.Time
	rand     func() float64
	onUpdate func(float64)
	manual   bool

	mu      sync.Mutex
	done    bool
	percent float64
	started time.Time
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New creates an indicator with the given time constant in seconds. It
// starts in the done state with the bar at 0%.
func New(seconds float64, opts ...Option) *Indicator {
	i := &Indicator{
		duration: time.Duration(seconds * float64(time.Second)),
		now:      time.Now,
		rand:     rand.Float64,
		done:     true,
	}
	if i.duration <= 0 {
		i.duration = time.Duration(DefaultSeconds * float64(time.Second))
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// SetDone updates the done input. false after true restarts the bar at 5%;
// true after false resets it to 0 and stops ticking.
func (i *Indicator) SetDone(done bool) {
	i.mu.Lock()
	if done == i.done {
		i.mu.Unlock()
		return
	}
	i.done = done
	var percent float64
	if done {
		i.percent = 0
		i.stopTickerLocked()
	} else {
		i.percent = StartPercent
		i.started = i.now()
		if !i.manual {
			i.startTickerLocked()
		}
		percent = i.percent
	}
	i.mu.Unlock()

	i.emit(percent)
}

// Done returns the done input.
func (i *Indicator) Done() bool {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.done
}

// Percent returns the current width in [0, 100].
func (i *Indicator) Percent() float64 {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.percent
}

// Tick advances the bar once. It does nothing while done.
func (i *Indicator) Tick() {
	i.mu.Lock()
	if i.done {
		i.mu.Unlock()
		return
	}
	elapsed := i.now().Sub(i.started)
	target := 100 * (1 - math.Exp(-float64(elapsed)/float64(i.duration)))
	next := i.percent + (target-i.percent)*(i.rand()+0.5) + stepBonus
	i.percent = clamp(next)
	percent := i.percent
	i.mu.Unlock()

	i.emit(percent)
}

// Close stops the ticker.
func (i *Indicator) Close() {
	i.mu.Lock()
	i.stopTickerLocked()
	i.mu.Unlock()
	i.wg.Wait()
}

func (i *Indicator) startTickerLocked() {
	i.stopTickerLocked()
	stop := make(chan struct{})
	i.stop = stop
	i.wg.Add(1)
	go func() {
		defer i.wg.Done()
		t := time.NewTicker(TickInterval)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				i.Tick()
			case <-stop:
				return
			}
		}
	}()
}

func (i *Indicator) stopTickerLocked() {
	if i.stop != nil {
		close(i.stop)
		i.stop = nil
	}
}

func (i *Indicator) emit(percent float64) {
	if i.onUpdate != nil {
		i.onUpdate(percent)
	}
}

func clamp(p float64) float64 {
	switch {
	case math.IsNaN(p), p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// Bar renders the progress bar element for a given state.
func Bar(done bool, percent float64) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		class := "FakeTopProgressBar"
		if done {
			class += " FakeTopProgressBar__done"
		}
		_, err := fmt.Fprintf(w, `<div id="progress" class="%s" style="width: %s%%"></div>`,
			class, formatPercent(clamp(percent)))
		return err
	})
}

// Component renders the indicator's current state.
func (i *Indicator) Component() templ.Component {
	i.mu.Lock()
	done, percent := i.done, i.percent
	i.mu.Unlock()
	return Bar(done, percent)
}

func formatPercent(p float64) string {
	return fmt.Sprintf("%.2f", math.Round(p*100)/100)
}
