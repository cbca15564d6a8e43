package watcher

import (
	"errors"
	"sync"

	"github.com/vanderheijden86/conceptmap/internal/datasource"
	"github.com/vanderheijden86/conceptmap/pkg/debug"
	"github.com/vanderheijden86/conceptmap/pkg/model"
)

// GraphEvent reports a reload of the watched graph file. Exactly one of
// Graph (with Diff) or Err is meaningful.
type GraphEvent struct {
	Graph model.ConceptGraph
	Diff  datasource.GraphDiff
	Err   error
}

// GraphWatcher reloads a concept-graph file whenever it changes and delivers
// the new graph when its content actually differs from the last one seen.
type GraphWatcher struct {
	w      *Watcher
	events chan GraphEvent

	mu   sync.Mutex
	last model.ConceptGraph
}

// WatchGraph starts watching path. initial is the graph already loaded from
// it; saves that do not change the graph produce no event.
func WatchGraph(path string, initial model.ConceptGraph, opts ...WatcherOption) (*GraphWatcher, error) {
	gw := &GraphWatcher{
		events: make(chan GraphEvent, 1),
		last:   initial,
	}
	opts = append(opts, WithOnChange(gw.reload), WithOnError(gw.fail))
	w, err := NewWatcher(path, opts...)
	if err != nil {
		return nil, err
	}
	gw.w = w
	if err := w.Start(); err != nil {
		return nil, err
	}
	return gw, nil
}

// Events delivers reloads. Only the most recent undelivered event is kept.
func (gw *GraphWatcher) Events() <-chan GraphEvent { return gw.events }

// Path returns the watched file.
func (gw *GraphWatcher) Path() string { return gw.w.Path() }

// IsPolling reports whether the polling fallback is active.
func (gw *GraphWatcher) IsPolling() bool { return gw.w.IsPolling() }

// Stop stops watching.
func (gw *GraphWatcher) Stop() { gw.w.Stop() }

func (gw *GraphWatcher) reload() {
	g, err := datasource.LoadGraph(gw.w.Path())
	if err != nil {
		gw.send(GraphEvent{Err: err})
		return
	}

	gw.mu.Lock()
	diff := datasource.DiffGraphs(gw.last, g)
	if !diff.HasChanges() {
		gw.mu.Unlock()
		debug.Log("watcher: %s saved without graph changes", gw.w.Path())
		return
	}
	gw.last = g
	gw.mu.Unlock()

	debug.Log("watcher: %s changed: %s", gw.w.Path(), diff.Summary())
	gw.send(GraphEvent{Graph: g, Diff: diff})
}

func (gw *GraphWatcher) fail(err error) {
	if errors.Is(err, ErrFileRemoved) {
		gw.mu.Lock()
		gw.last = model.ConceptGraph{}
		gw.mu.Unlock()
	}
	gw.send(GraphEvent{Err: err})
}

// send replaces any pending event so a slow consumer always sees the latest.
func (gw *GraphWatcher) send(ev GraphEvent) {
	for {
		select {
		case gw.events <- ev:
			return
		default:
		}
		select {
		case <-gw.events:
		default:
		}
	}
}
