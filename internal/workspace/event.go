package workspace

import (
	"context"
	"errors"
)

type EventType int

const (
	DocumentCreated EventType = iota // A document was added.
	DocumentUpdated                  // A document was replaced by a new revision or its state changed.
	DocumentRemoved                  // A document was removed.
	EdgeAdded                        // A source started linking to a target.
	EdgeRemoved                      // A source no longer links to a target.
)

func (t EventType) String() string {
	switch t {
	case DocumentCreated:
		return "document-created"
	case DocumentUpdated:
		return "document-updated"
	case DocumentRemoved:
		return "document-removed"
	case EdgeAdded:
		return "edge-added"
	case EdgeRemoved:
		return "edge-removed"
	}
	return "unknown"
}

// DocumentEvent describes a document for subscribers.
type DocumentEvent struct {
	URI      string `json:"uri"`
	Revision int64  `json:"revision"`
	Open     bool   `json:"open"`
	Language string `json:"language"`
}

// EdgeEvent carries only topology. Edges that differ only in their source
// span are not removed and added again.
type EdgeEvent struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Event describes a single change in the workspace.
type Event struct {
	Type     EventType
	Document *DocumentEvent // Populated for document events.
	Edge     *EdgeEvent     // Populated for edge events.
}

var ErrNotFound = errors.New("workspace: document not found")

// Subscribe returns a channel of change events until ctx is canceled.
// Events are dropped for subscribers that do not keep up.
func (w *Workspace) Subscribe(ctx context.Context) (<-chan Event, error) {
	w.mu.Lock()
	ch := make(chan Event, 64)
	sid := w.nextSubID
	w.nextSubID++
	w.subscribers[sid] = ch
	w.mu.Unlock()

	go func() {
		<-ctx.Done()
		w.mu.Lock()
		delete(w.subscribers, sid)
		close(ch)
		w.mu.Unlock()
	}()
	return ch, nil
}

// emit sends event to all subscribers without blocking. Callers hold w.mu.
func (w *Workspace) emit(event Event) {
	for _, ch := range w.subscribers {
		select {
		case ch <- event:
		default:
		}
	}
}
