package scanner

import "time"

// Barcode scanners type whole codes in one burst. The classifier keeps a
// trailing window of keystroke timestamps and decides, once input pauses,
// whether the burst came from a scanner or a human.
const (
	// burstInterval is the inter-keystroke gap below which a pair of
	// keystrokes counts as scanner-speed.
	burstInterval = 50 * time.Millisecond
	// burstRatio is the fraction of scanner-speed gaps required to
	// classify the burst as scanner-originated.
	burstRatio = 0.7
	// minKeystrokes is the minimum burst length worth classifying.
	minKeystrokes = 3
	// maxKeystrokes bounds the trailing window.
	maxKeystrokes = 20
)

// Classifier accumulates keystroke timestamps for one input field.
// It is not safe for concurrent use; Session serialises access.
type Classifier struct {
	times []time.Time
}

// Record appends a keystroke timestamp, trimming the window to its cap.
func (c *Classifier) Record(t time.Time) {
	c.times = append(c.times, t)
	if len(c.times) > maxKeystrokes {
		c.times = c.times[len(c.times)-maxKeystrokes:]
	}
}

// Evaluate reports whether the recorded burst looks scanner-originated:
// at least minKeystrokes events with more than burstRatio of the
// successive intervals under burstInterval.
func (c *Classifier) Evaluate() bool {
	if len(c.times) < minKeystrokes {
		return false
	}
	fast := 0
	total := len(c.times) - 1
	for i := 1; i < len(c.times); i++ {
		if c.times[i].Sub(c.times[i-1]) < burstInterval {
			fast++
		}
	}
	return float64(fast)/float64(total) > burstRatio
}

// Reset clears the window. Called after every evaluation so a stale burst
// never influences the next one.
func (c *Classifier) Reset() {
	c.times = c.times[:0]
}

// Len returns the number of recorded keystrokes.
func (c *Classifier) Len() int {
	return len(c.times)
}
