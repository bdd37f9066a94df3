package scanner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/kuropos/backend-pos/internal/obs"
	"github.com/kuropos/backend-pos/internal/store"
)

// Trigger identifies how a product resolution was initiated.
type Trigger string

const (
	// TriggerManual marks a resolution via explicit selection (Enter).
	TriggerManual Trigger = "manual"
	// TriggerScanner marks an automatic resolution after a scanner burst.
	TriggerScanner Trigger = "scanner"
)

const (
	// debounceDelay is the idle time before a query is issued.
	debounceDelay = 300 * time.Millisecond
	// classifyDelay is the idle time before the keystroke burst is evaluated.
	classifyDelay = 100 * time.Millisecond
	// suppressDuration blocks the Enter a scanner appends after its burst.
	suppressDuration = 500 * time.Millisecond
	// recentKeystroke is the Enter guard: an Enter this close to the last
	// character of a longish query is treated as a scanner terminator.
	recentKeystroke = 100 * time.Millisecond
	// minQueryForGuard is the query length above which the Enter guard applies.
	minQueryForGuard = 3
)

// Lookup is the product resolution capability the session depends on.
type Lookup interface {
	Search(ctx context.Context, q string) ([]store.Product, error)
	ResolveExact(ctx context.Context, q string) (store.Product, bool, error)
}

// Events carries the session's outbound signals. Nil callbacks are skipped.
type Events struct {
	Results  func(products []store.Product)
	Resolved func(product store.Product, trigger Trigger)
	NotFound func(query string)
	Warning  func(message string)
}

// Session drives one search input: it debounces queries, classifies
// keystroke bursts, and routes manual selection. All state is guarded by a
// mutex because deferred callbacks fire on timer goroutines; logically the
// session remains single-owner, single-writer.
type Session struct {
	mu sync.Mutex

	lookup Lookup
	events Events
	ctx    context.Context

	now      func() time.Time
	schedule func(d time.Duration, fn func()) *time.Timer

	query      string
	results    []store.Product
	selected   int
	classifier Classifier

	lastKeystroke time.Time
	suppressUntil time.Time

	searchTimer   *time.Timer
	classifyTimer *time.Timer
}

// NewSession constructs a session bound to ctx for its lookups.
func NewSession(ctx context.Context, lookup Lookup, events Events) *Session {
	return &Session{
		lookup:   lookup,
		events:   events,
		ctx:      ctx,
		now:      time.Now,
		schedule: time.AfterFunc,
	}
}

// SetClock overrides time sources for tests.
func (s *Session) SetClock(now func() time.Time, schedule func(time.Duration, func()) *time.Timer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if now != nil {
		s.now = now
	}
	if schedule != nil {
		s.schedule = schedule
	}
}

// Type records one character keystroke and the resulting query text. It
// supersedes any pending search or classification evaluation.
func (s *Session) Type(query string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now()
	s.classifier.Record(at)
	s.lastKeystroke = at
	s.query = query

	s.stopTimersLocked()
	s.searchTimer = s.schedule(debounceDelay, s.runSearch)
	s.classifyTimer = s.schedule(classifyDelay, s.evaluateBurst)
}

// MoveDown advances the selection cursor, bounded to the result list.
func (s *Session) MoveDown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.results) > 0 && s.selected < len(s.results)-1 {
		s.selected++
	}
}

// MoveUp retreats the selection cursor, bounded at zero.
func (s *Session) MoveUp() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.selected > 0 {
		s.selected--
	}
}

// Selected returns the current cursor position.
func (s *Session) Selected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Submit handles Enter: it commits the selected (or first) result, signals
// not-found for a fruitless query, and swallows the carriage return a
// scanner appends to its burst.
func (s *Session) Submit() {
	s.mu.Lock()

	at := s.now()
	if at.Before(s.suppressUntil) {
		s.mu.Unlock()
		return
	}
	if at.Sub(s.lastKeystroke) < recentKeystroke && len(s.query) > minQueryForGuard {
		s.suppressUntil = at.Add(suppressDuration)
		s.mu.Unlock()
		return
	}

	if len(s.results) > 0 {
		idx := s.selected
		if idx < 0 || idx >= len(s.results) {
			idx = 0
		}
		product := s.results[idx]
		s.clearLocked()
		s.mu.Unlock()
		s.emitResolved(product, TriggerManual)
		return
	}

	query := strings.TrimSpace(s.query)
	s.mu.Unlock()
	if query != "" && s.events.NotFound != nil {
		s.events.NotFound(query)
	}
}

// Clear resets the session to its idle state.
func (s *Session) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *Session) clearLocked() {
	s.query = ""
	s.results = nil
	s.selected = 0
	s.stopTimersLocked()
}

func (s *Session) stopTimersLocked() {
	if s.searchTimer != nil {
		s.searchTimer.Stop()
		s.searchTimer = nil
	}
	if s.classifyTimer != nil {
		s.classifyTimer.Stop()
		s.classifyTimer = nil
	}
}

// runSearch issues the debounced query. A lookup failure degrades to an
// empty result list plus a warning; it never propagates.
func (s *Session) runSearch() {
	s.mu.Lock()
	query := strings.TrimSpace(s.query)
	s.mu.Unlock()

	if query == "" {
		s.mu.Lock()
		s.results = nil
		s.selected = 0
		s.mu.Unlock()
		if s.events.Results != nil {
			s.events.Results(nil)
		}
		return
	}

	products, err := s.lookup.Search(s.ctx, query)
	if err != nil {
		s.mu.Lock()
		s.results = nil
		s.selected = 0
		s.mu.Unlock()
		if s.events.Warning != nil {
			s.events.Warning("product search failed")
		}
		if s.events.Results != nil {
			s.events.Results(nil)
		}
		return
	}

	s.mu.Lock()
	s.results = products
	s.selected = 0
	s.mu.Unlock()
	if s.events.Results != nil {
		s.events.Results(products)
	}
}

// evaluateBurst runs after classifyDelay of inactivity. A scanner burst
// resolves the query immediately and arms the Enter suppression window.
func (s *Session) evaluateBurst() {
	s.mu.Lock()
	isScanner := s.classifier.Evaluate() && strings.TrimSpace(s.query) != ""
	s.classifier.Reset()
	if obs.ScannerClassificationsTotal != nil {
		outcome := "human"
		if isScanner {
			outcome = "scanner"
		}
		obs.ScannerClassificationsTotal.WithLabelValues(outcome).Inc()
	}
	if !isScanner {
		s.mu.Unlock()
		return
	}
	query := strings.TrimSpace(s.query)
	s.suppressUntil = s.now().Add(suppressDuration)
	s.mu.Unlock()

	product, found, err := s.lookup.ResolveExact(s.ctx, query)
	if err != nil {
		if s.events.Warning != nil {
			s.events.Warning("product lookup failed")
		}
		return
	}
	if !found {
		if s.events.NotFound != nil {
			s.events.NotFound(query)
		}
		return
	}
	s.Clear()
	s.emitResolved(product, TriggerScanner)
}

func (s *Session) emitResolved(product store.Product, trigger Trigger) {
	if s.events.Resolved != nil {
		s.events.Resolved(product, trigger)
	}
}
