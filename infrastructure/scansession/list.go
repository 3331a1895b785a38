package scansession

import (
	"time"

	"packtrack/infrastructure/lifecycle"
	"packtrack/infrastructure/scancode"
)

// Item is one row of a session list.
type Item struct {
	Code          string           `json:"code"`
	Product       string           `json:"product"`
	SKU           string           `json:"sku"`
	Quantity      int64            `json:"quantity"`
	Organization  string           `json:"organization"`
	SaleReference string           `json:"sale_reference"`
	AssignedTo    string           `json:"assigned_to,omitempty"`
	Status        lifecycle.Status `json:"status"`
	Reported      bool             `json:"reported,omitempty"`
	ReportDetails string           `json:"report_details,omitempty"`
	AddedAt       time.Time        `json:"added_at"`
}

// MEL reports whether the item follows the primary code convention.
func (i Item) MEL() bool {
	return scancode.IsMELCode(i.Code)
}

// List is an ordered, code-unique collection of items. It tracks whether the
// last export still matches its contents. List is not safe for concurrent
// use; Session guards it.
type List struct {
	items      []Item
	index      map[string]int
	stale      bool
	exportedAt time.Time
}

func NewList() *List {
	return &List{index: make(map[string]int), stale: true}
}

// Add appends item unless its code is already present.
func (l *List) Add(item Item) bool {
	if _, ok := l.index[item.Code]; ok {
		return false
	}
	l.index[item.Code] = len(l.items)
	l.items = append(l.items, item)
	l.stale = true
	return true
}

// Remove deletes code and reports whether it was present.
func (l *List) Remove(code string) bool {
	i, ok := l.index[code]
	if !ok {
		return false
	}
	l.items = append(l.items[:i], l.items[i+1:]...)
	delete(l.index, code)
	for j := i; j < len(l.items); j++ {
		l.index[l.items[j].Code] = j
	}
	l.stale = true
	return true
}

func (l *List) Clear() {
	l.items = nil
	l.index = make(map[string]int)
	l.stale = true
	l.exportedAt = time.Time{}
}

func (l *List) Contains(code string) bool {
	_, ok := l.index[code]
	return ok
}

func (l *List) Get(code string) (Item, bool) {
	i, ok := l.index[code]
	if !ok {
		return Item{}, false
	}
	return l.items[i], true
}

func (l *List) Len() int { return len(l.items) }

// Items returns a copy of the list in insertion order.
func (l *List) Items() []Item {
	return append([]Item(nil), l.items...)
}

func (l *List) Codes() []string {
	out := make([]string, 0, len(l.items))
	for _, it := range l.items {
		out = append(out, it.Code)
	}
	return out
}

// Counts splits the list into MEL and other codes.
func (l *List) Counts() (mel, other int) {
	for _, it := range l.items {
		if it.MEL() {
			mel++
		} else {
			other++
		}
	}
	return mel, other
}

// Stale reports whether the list changed since the last export, or was never
// exported.
func (l *List) Stale() bool { return l.stale }

func (l *List) ExportedAt() time.Time { return l.exportedAt }

func (l *List) MarkExported(at time.Time) {
	l.stale = false
	l.exportedAt = at
}
