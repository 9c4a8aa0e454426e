// Package status maintains an in-process tree of named status items so the
// daemon can answer a `status` request with a live snapshot of what the
// scheduler, worker health loops, and transfer sessions are doing, without
// routing that state through a shared mutable struct.
//
// Adapted from a status-page pattern used elsewhere in the corpus; this
// version renders JSON only; nothing here serves HTML.
package status

import (
	"context"
	"maps"
	"os"
	"os/user"
	"runtime"
	"sync"
	"time"

	"github.com/rchlabs/rch/version"
)

var (
	hostname, _ = os.Hostname()
	username    = func() string {
		u, err := user.Current()
		if err != nil {
			return "unknown"
		}
		return u.Username
	}()
	startTime = time.Now()

	rootItem = &item{
		items: make(map[string]*item),
	}
)

type itemCtxKey struct{}

func parentItem(ctx context.Context) *item {
	v := ctx.Value(itemCtxKey{})
	if v == nil {
		return rootItem
	}
	return v.(*item)
}

// item is a single node in the status tree: a title, a current status
// string, and any number of named sub-items.
type item struct {
	mu    sync.RWMutex
	stat  string
	items map[string]*item
}

func (i *item) setStatus(s string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stat = s
}

func (i *item) addSubItem(title string, sub *item) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.items[title] = sub
}

func (i *item) delSubItem(title string) {
	i.mu.Lock()
	defer i.mu.Unlock()
	delete(i.items, title)
}

func (i *item) snapshot() Item {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := Item{Status: i.stat}
	if len(i.items) > 0 {
		out.Items = make(map[string]Item, len(i.items))
		for title, sub := range maps.Clone(i.items) {
			out.Items[title] = sub.snapshot()
		}
	}
	return out
}

// Item is the JSON-serializable form of a status tree node.
type Item struct {
	Status string          `json:"status,omitempty"`
	Items  map[string]Item `json:"items,omitempty"`
}

// Snapshot is the full daemon status response.
type Snapshot struct {
	Version      string    `json:"version"`
	Build        string    `json:"build"`
	Hostname     string    `json:"hostname"`
	Username     string    `json:"username"`
	PID          int       `json:"pid"`
	GOOS         string    `json:"goos"`
	GOARCH       string    `json:"goarch"`
	NumGoroutine int       `json:"num_goroutine"`
	StartedAt    time.Time `json:"started_at"`
	Uptime       string    `json:"uptime"`
	Items        Item      `json:"items"`
}

// Current renders the current status tree as a JSON-able value.
func Current() Snapshot {
	return Snapshot{
		Version:      version.Version(),
		Build:        version.BuildNumber(),
		Hostname:     hostname,
		Username:     username,
		PID:          os.Getpid(),
		GOOS:         runtime.GOOS,
		GOARCH:       runtime.GOARCH,
		NumGoroutine: runtime.NumGoroutine(),
		StartedAt:    startTime,
		Uptime:       time.Since(startTime).Round(time.Second).String(),
		Items:        rootItem.snapshot(),
	}
}

// AddSimpleItem adds a status item under parent, returning a context carrying
// the new item (for nesting sub-items), a setter to update its status
// string, and a teardown func to remove it once its owner is done.
func AddSimpleItem(parent context.Context, title string) (ctx context.Context, setStatus func(string), done func()) {
	it := &item{
		items: make(map[string]*item),
		stat:  "unknown",
	}
	p := parentItem(parent)
	p.addSubItem(title, it)

	return context.WithValue(parent, itemCtxKey{}, it), it.setStatus, func() { p.delSubItem(title) }
}

// DelItem removes the named item from parent's status tree.
func DelItem(parent context.Context, title string) {
	parentItem(parent).delSubItem(title)
}
