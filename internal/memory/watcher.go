package memory

import (
	"path/filepath"
	"sync"
	"time"

	"presence/internal/logging"

	"github.com/fsnotify/fsnotify"
)

// PersonaChangeFunc is invoked when a persona file (SOUL.md or USER.md)
// changes on disk, e.g. after a direct edit by the owner. The agentID is
// derived from the workspace directory name.
type PersonaChangeFunc func(agentID, path string)

// PersonaWatcher watches agent workspaces for external edits to the persona
// tiers so the evaluation loops can pick up changes without waiting for the
// next scheduled tick.
type PersonaWatcher struct {
	mu          sync.Mutex
	watcher     *fsnotify.Watcher
	store       *Store
	onChange    PersonaChangeFunc
	debounceMap map[string]time.Time
	debounceDur time.Duration
	stopCh      chan struct{}
	doneCh      chan struct{}
	running     bool
}

// NewPersonaWatcher creates a watcher over the store's workspace root.
func NewPersonaWatcher(store *Store, onChange PersonaChangeFunc) (*PersonaWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &PersonaWatcher{
		watcher:     watcher,
		store:       store,
		onChange:    onChange,
		debounceMap: make(map[string]time.Time),
		debounceDur: 500 * time.Millisecond, // Debounce rapid saves
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// WatchAgent adds an agent workspace to the watch set.
func (pw *PersonaWatcher) WatchAgent(agentID string) error {
	return pw.watcher.Add(pw.store.AgentWorkspace(agentID))
}

// Start begins processing filesystem events. Non-blocking.
func (pw *PersonaWatcher) Start() {
	pw.mu.Lock()
	if pw.running {
		pw.mu.Unlock()
		return
	}
	pw.running = true
	pw.mu.Unlock()

	go pw.loop()
}

func (pw *PersonaWatcher) loop() {
	defer close(pw.doneCh)

	for {
		select {
		case <-pw.stopCh:
			return
		case event, ok := <-pw.watcher.Events:
			if !ok {
				return
			}
			pw.handleEvent(event)
		case err, ok := <-pw.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryMemory).Warn("persona watcher error: %v", err)
		}
	}
}

func (pw *PersonaWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
		return
	}

	name := filepath.Base(event.Name)
	if name != SoulPath && name != UserPath {
		return
	}

	// Editors fire several events per save; collapse them.
	pw.mu.Lock()
	last, seen := pw.debounceMap[event.Name]
	now := time.Now()
	if seen && now.Sub(last) < pw.debounceDur {
		pw.mu.Unlock()
		return
	}
	pw.debounceMap[event.Name] = now
	pw.mu.Unlock()

	agentID := filepath.Base(filepath.Dir(event.Name))
	logging.MemoryDebug("persona file changed: agent=%s file=%s", agentID, name)

	if pw.onChange != nil {
		pw.onChange(agentID, name)
	}
}

// Stop halts the watcher and waits for the event loop to exit.
func (pw *PersonaWatcher) Stop() {
	pw.mu.Lock()
	if !pw.running {
		pw.mu.Unlock()
		return
	}
	pw.running = false
	pw.mu.Unlock()

	close(pw.stopCh)
	_ = pw.watcher.Close()
	<-pw.doneCh
}
