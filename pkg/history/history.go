// Package history models navigation history for a client session.
//
// Memory is an in-process history stack that fires navigation events
// synchronously. Delayed wraps any Source and holds back "location changed"
// notifications until the page module for the destination route is loaded.
package history

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/vango-dev/splitroute/pkg/routepath"
)

// Action is the kind of navigation that produced a location.
type Action int

const (
	Push Action = iota
	Pop
	Replace
)

func (a Action) String() string {
	switch a {
	case Push:
		return "PUSH"
	case Pop:
		return "POP"
	case Replace:
		return "REPLACE"
	default:
		return fmt.Sprintf("Action(%d)", int(a))
	}
}

// Location is one navigation target. A new Location is created for every
// navigation event.
type Location struct {
	Path   string
	Search string
	Hash   string

	// Referrer is the path and search of the previous location, or "".
	Referrer string

	// Key identifies the navigation event.
	Key string
}

// URL returns path, search and hash joined.
func (l Location) URL() string {
	return l.Path + l.Search + l.Hash
}

// PathAndSearch returns the path with its query string.
func (l Location) PathAndSearch() string {
	return l.Path + l.Search
}

// Listener observes navigations.
type Listener func(loc Location, action Action)

// Source is a navigation event source.
type Source interface {
	// Location returns the current location.
	Location() Location

	// Listen registers l and returns a function that removes it.
	Listen(l Listener) (unlisten func())

	Push(to string) error
	Replace(to string) error
	Go(delta int)
}

// listeners is an ordered set of observers.
type listeners struct {
	mu     sync.Mutex
	nextID int
	list   []listenerEntry
}

type listenerEntry struct {
	id int
	fn Listener
}

func (ls *listeners) add(fn Listener) func() {
	ls.mu.Lock()
	id := ls.nextID
	ls.nextID++
	ls.list = append(ls.list, listenerEntry{id: id, fn: fn})
	ls.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			ls.mu.Lock()
			defer ls.mu.Unlock()
			for i, e := range ls.list {
				if e.id == id {
					ls.list = append(ls.list[:i:i], ls.list[i+1:]...)
					return
				}
			}
		})
	}
}

func (ls *listeners) notify(loc Location, action Action) {
	ls.mu.Lock()
	snapshot := make([]listenerEntry, len(ls.list))
	copy(snapshot, ls.list)
	ls.mu.Unlock()

	for _, e := range snapshot {
		e.fn(loc, action)
	}
}

func (ls *listeners) len() int {
	ls.mu.Lock()
	defer ls.mu.Unlock()
	return len(ls.list)
}

// Memory is an in-process history stack.
type Memory struct {
	mu        sync.Mutex
	entries   []Location
	index     int
	listeners listeners
}

// NewMemory creates a history whose only entry is initial.
func NewMemory(initial string) (*Memory, error) {
	loc, err := newLocation(initial, "")
	if err != nil {
		return nil, err
	}
	return &Memory{entries: []Location{loc}}, nil
}

// Location returns the current entry.
func (m *Memory) Location() Location {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[m.index]
}

// Listen implements Source.
func (m *Memory) Listen(l Listener) func() {
	return m.listeners.add(l)
}

// Push adds a new entry after the current one, discarding forward entries.
func (m *Memory) Push(to string) error {
	m.mu.Lock()
	loc, err := newLocation(to, m.entries[m.index].PathAndSearch())
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.entries = append(m.entries[:m.index+1], loc)
	m.index++
	m.mu.Unlock()

	m.listeners.notify(loc, Push)
	return nil
}

// Replace swaps the current entry.
func (m *Memory) Replace(to string) error {
	m.mu.Lock()
	loc, err := newLocation(to, m.entries[m.index].Referrer)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.entries[m.index] = loc
	m.mu.Unlock()

	m.listeners.notify(loc, Replace)
	return nil
}

// Go moves delta entries through the stack. Out-of-range moves are clamped;
// a move that does not change the index fires nothing.
func (m *Memory) Go(delta int) {
	m.mu.Lock()
	next := m.index + delta
	if next < 0 {
		next = 0
	}
	if next > len(m.entries)-1 {
		next = len(m.entries) - 1
	}
	if next == m.index {
		m.mu.Unlock()
		return
	}
	prev := m.entries[m.index]
	m.index = next
	loc := m.entries[next]
	loc.Referrer = prev.PathAndSearch()
	loc.Key = newKey()
	m.entries[next] = loc
	m.mu.Unlock()

	m.listeners.notify(loc, Pop)
}

// Back is Go(-1).
func (m *Memory) Back() { m.Go(-1) }

// Forward is Go(1).
func (m *Memory) Forward() { m.Go(1) }

// Len returns the number of entries.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func newLocation(target, referrer string) (Location, error) {
	if strings.TrimSpace(target) == "" {
		target = "/"
	}
	res, err := routepath.ValidateNavTarget(target)
	if err != nil {
		return Location{}, fmt.Errorf("history: %q: %w", target, err)
	}
	return Location{
		Path:     res.Path,
		Search:   res.Search,
		Hash:     res.Hash,
		Referrer: referrer,
		Key:      newKey(),
	}, nil
}

func newKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
