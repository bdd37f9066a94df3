package cart

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/kuropos/backend-pos/internal/pricing"
	"github.com/kuropos/backend-pos/internal/store"
)

// ErrLineNotFound indicates the cart holds no line for the product.
var ErrLineNotFound = errors.New("cart line not found")

// warnCooldown throttles quantity warnings. Rapid keyboard edits on the
// quantity field would otherwise emit a warning per keystroke.
const warnCooldown = 1000 * time.Millisecond

// Line is one product entry in an in-flight sale.
type Line struct {
	ProductID            string        `json:"productId"`
	Code                 string        `json:"code"`
	Name                 string        `json:"name"`
	UnitPrice            pricing.Money `json:"unitPrice"`
	Quantity             float64       `json:"quantity"`
	LineTotal            pricing.Money `json:"lineTotal"`
	AllowDecimalQuantity bool          `json:"allowDecimalQuantity"`
}

// State is the cart snapshot emitted after every mutation: the full line
// list, the running summary, and at most one throttled warning.
type State struct {
	CartID  string          `json:"cartId"`
	Lines   []Line          `json:"lines"`
	Summary pricing.Summary `json:"summary"`
	Warning string          `json:"warning,omitempty"`
}

// Cart aggregates the lines of one terminal's in-flight sale. It lives
// purely in memory; nothing is persisted until the sale commits.
type Cart struct {
	mu sync.Mutex

	id        string
	lines     []Line
	warnUntil time.Time
	now       func() time.Time
}

// New constructs an empty cart with the given identifier.
func New(id string) *Cart {
	return &Cart{id: id, now: time.Now}
}

// SetNow overrides the clock for tests.
func (c *Cart) SetNow(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if now != nil {
		c.now = now
	}
}

// ID returns the cart identifier.
func (c *Cart) ID() string {
	return c.id
}

// AddOrIncrement appends a line for the product with quantity 1, or bumps
// an existing line's quantity by exactly 1.
func (c *Cart) AddOrIncrement(p store.Product) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.lines {
		if c.lines[i].ProductID == p.ID {
			c.lines[i].Quantity++
			c.lines[i].LineTotal = pricing.LineTotal(c.lines[i].Quantity, c.lines[i].UnitPrice)
			return c.stateLocked("")
		}
	}
	c.lines = append(c.lines, Line{
		ProductID:            p.ID,
		Code:                 p.Code,
		Name:                 p.Name,
		UnitPrice:            p.BasePrice,
		Quantity:             1,
		LineTotal:            pricing.LineTotal(1, p.BasePrice),
		AllowDecimalQuantity: p.AllowDecimalQuantity,
	})
	return c.stateLocked("")
}

// SetQuantity replaces a line's quantity. Non-positive quantities are
// rejected without mutating the line; non-integral quantities on products
// sold in whole units are floored. Both cases emit a throttled warning.
func (c *Cart) SetQuantity(productID string, quantity float64) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.findLocked(productID)
	if idx < 0 {
		return c.stateLocked(""), ErrLineNotFound
	}
	if quantity <= 0 {
		return c.stateLocked(c.warnLocked("quantity must be positive")), nil
	}
	quantity, warning := c.applyFloorLocked(c.lines[idx], quantity)
	if quantity <= 0 {
		return c.stateLocked(c.warnLocked("quantity must be at least one whole unit")), nil
	}
	c.lines[idx].Quantity = quantity
	c.lines[idx].LineTotal = pricing.LineTotal(quantity, c.lines[idx].UnitPrice)
	return c.stateLocked(warning), nil
}

// SetLineTotal back-computes a line's quantity from a target total, using
// the same floor-and-warn rule as SetQuantity.
func (c *Cart) SetLineTotal(productID string, total pricing.Money) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.findLocked(productID)
	if idx < 0 {
		return c.stateLocked(""), ErrLineNotFound
	}
	if total <= 0 {
		return c.stateLocked(c.warnLocked("line total must be positive")), nil
	}
	line := c.lines[idx]
	if line.UnitPrice <= 0 {
		return c.stateLocked(c.warnLocked("line has no unit price")), nil
	}
	quantity, warning := c.applyFloorLocked(line, float64(total)/float64(line.UnitPrice))
	if quantity <= 0 {
		return c.stateLocked(c.warnLocked("total is below the price of one whole unit")), nil
	}
	c.lines[idx].Quantity = quantity
	c.lines[idx].LineTotal = pricing.LineTotal(quantity, line.UnitPrice)
	return c.stateLocked(warning), nil
}

// Remove deletes a line unconditionally.
func (c *Cart) Remove(productID string) (State, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	idx := c.findLocked(productID)
	if idx < 0 {
		return c.stateLocked(""), ErrLineNotFound
	}
	c.lines = append(c.lines[:idx], c.lines[idx+1:]...)
	return c.stateLocked(""), nil
}

// Clear drops every line. Called after a successful commit.
func (c *Cart) Clear() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = nil
	return c.stateLocked("")
}

// State returns the current snapshot without mutating anything.
func (c *Cart) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked("")
}

// Lines returns a copy of the current line list.
func (c *Cart) Lines() []Line {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Line(nil), c.lines...)
}

// Len returns the number of lines.
func (c *Cart) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.lines)
}

func (c *Cart) findLocked(productID string) int {
	for i := range c.lines {
		if c.lines[i].ProductID == productID {
			return i
		}
	}
	return -1
}

// applyFloorLocked floors non-integral quantities for whole-unit products
// and returns the throttled warning, if one is due.
func (c *Cart) applyFloorLocked(line Line, quantity float64) (float64, string) {
	if line.AllowDecimalQuantity {
		return quantity, ""
	}
	floored := math.Floor(quantity)
	if floored == quantity {
		return quantity, ""
	}
	return floored, c.warnLocked("quantity rounded down to a whole unit")
}

// warnLocked returns message at most once per cooldown window.
func (c *Cart) warnLocked(message string) string {
	at := c.now()
	if at.Before(c.warnUntil) {
		return ""
	}
	c.warnUntil = at.Add(warnCooldown)
	return message
}

func (c *Cart) stateLocked(warning string) State {
	lines := append([]Line(nil), c.lines...)
	priced := make([]pricing.Line, 0, len(lines))
	for _, l := range lines {
		priced = append(priced, pricing.Line{Quantity: l.Quantity, UnitPrice: l.UnitPrice, LineTotal: l.LineTotal})
	}
	if lines == nil {
		lines = []Line{}
	}
	return State{
		CartID:  c.id,
		Lines:   lines,
		Summary: pricing.Compute(priced),
		Warning: warning,
	}
}
