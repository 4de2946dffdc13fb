package providers

import "time"

// Clock abstracts wall-clock reads so freshness arithmetic is testable
type Clock interface {
	Now() time.Time
}

// Ticker abstracts a periodic tick source so background loops run
// deterministically in tests
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

// TickerFactory creates tickers for a given interval
type TickerFactory func(d time.Duration) Ticker

// SystemClock reads the real wall clock
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

type systemTicker struct {
	t *time.Ticker
}

func (s systemTicker) C() <-chan time.Time { return s.t.C }
func (s systemTicker) Stop()               { s.t.Stop() }

// SystemTicker creates a real time.Ticker
func SystemTicker(d time.Duration) Ticker {
	return systemTicker{t: time.NewTicker(d)}
}
