// Package memory implements the path-addressed, per-agent file workspace
// backing the persona memory tiers (Soul, UserProfile, LongTermMemory,
// SocialMemory, ReplyStrategy, per-target GroupProfiles).
//
// The store never truncates content: tier limits are enforced by the prompt
// assembler via fill-ratio guidance, not by the store. Edits are atomic -
// a failed match leaves the file byte-for-byte unchanged.
package memory

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"presence/internal/logging"
)

// Confirmer approves or declines Soul-tier mutations. Implementations block
// until the human owner responds; the store holds no locks while waiting.
type Confirmer interface {
	ConfirmSoulEdit(ctx context.Context, agentID, preview string) (bool, error)
}

// WriteResult reports the outcome of a Write or Edit.
type WriteResult struct {
	// Declined is true when the owner refused a Soul confirmation.
	// A declined write is a successful no-op, not an error.
	Declined bool

	// Bytes is the number of bytes written.
	Bytes int
}

// Store is the durable, path-addressed file store. Each agent gets its own
// workspace directory under root. Writes within one agent are serialized;
// reads proceed unlocked.
type Store struct {
	root string

	// confirmer gates Soul-tier writes. Nil means Soul writes are declined.
	confirmer Confirmer

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-agent write lock
}

// NewStore creates a store rooted at the given directory.
func NewStore(root string) *Store {
	_ = os.MkdirAll(root, 0755)
	return &Store{
		root:  root,
		locks: make(map[string]*sync.Mutex),
	}
}

// SetConfirmer installs the Soul confirmation gate.
func (s *Store) SetConfirmer(c Confirmer) {
	s.confirmer = c
}

// Root returns the store's root directory.
func (s *Store) Root() string {
	return s.root
}

// agentLock returns the write lock for an agent, creating it on first use.
func (s *Store) agentLock(agentID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[agentID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[agentID] = l
	}
	return l
}

// AgentWorkspace returns the workspace directory for an agent.
func (s *Store) AgentWorkspace(agentID string) string {
	return filepath.Join(s.root, agentID)
}

// resolveSafePath maps a workspace-relative path to an absolute path,
// rejecting absolute paths and traversal out of the agent workspace.
func (s *Store) resolveSafePath(agentID, relative string) (string, error) {
	if filepath.IsAbs(relative) {
		return "", fmt.Errorf("%w: %s", ErrPathUnsafe, relative)
	}

	workspace := s.AgentWorkspace(agentID)
	joined := filepath.Clean(filepath.Join(workspace, relative))

	if joined != workspace && !strings.HasPrefix(joined, workspace+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathUnsafe, relative)
	}

	return joined, nil
}

// Read returns the content of a workspace file.
// Returns ErrNotFound if the file does not exist.
func (s *Store) Read(agentID, path string) (string, error) {
	full, err := s.resolveSafePath(agentID, path)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), nil
}

// ReadOrEmpty returns the file content, or "" if the file does not exist.
func (s *Store) ReadOrEmpty(agentID, path string) (string, error) {
	content, err := s.Read(agentID, path)
	if err != nil {
		if IsNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return content, nil
}

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// Exists reports whether a workspace file exists.
func (s *Store) Exists(agentID, path string) bool {
	full, err := s.resolveSafePath(agentID, path)
	if err != nil {
		return false
	}
	_, err = os.Stat(full)
	return err == nil
}

// Write creates or overwrites a workspace file. Parent directories are
// created as needed. Oversized writes succeed; the prompt assembler surfaces
// the fill ratio on the next read.
//
// Writes against the Soul tier require owner confirmation first.
func (s *Store) Write(ctx context.Context, agentID, path, content string) (WriteResult, error) {
	if IsSoulPath(path) {
		ok, err := s.confirmSoul(ctx, agentID, content)
		if err != nil {
			return WriteResult{}, err
		}
		if !ok {
			logging.Memory("Soul write declined for agent %s", agentID)
			return WriteResult{Declined: true}, nil
		}
	}

	lock := s.agentLock(agentID)
	lock.Lock()
	defer lock.Unlock()

	return s.writeLocked(agentID, path, content)
}

func (s *Store) writeLocked(agentID, path, content string) (WriteResult, error) {
	full, err := s.resolveSafePath(agentID, path)
	if err != nil {
		return WriteResult{}, err
	}

	if dir := filepath.Dir(full); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return WriteResult{}, fmt.Errorf("write %s: %w", path, err)
		}
	}

	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return WriteResult{}, fmt.Errorf("write %s: %w", path, err)
	}

	logging.MemoryDebug("wrote %d bytes to %s/%s", len(content), agentID, path)
	return WriteResult{Bytes: len(content)}, nil
}

// Edit replaces oldText with newText in a workspace file by exact match.
//
//   - oldText must match exactly once; multiple matches return ErrAmbiguousEdit
//   - zero exact matches fall back to whitespace-tolerant matching
//   - a replacement that changes nothing returns ErrNoChange
//
// On any error the stored content is unchanged.
func (s *Store) Edit(ctx context.Context, agentID, path, oldText, newText string) (WriteResult, error) {
	lock := s.agentLock(agentID)
	lock.Lock()

	full, err := s.resolveSafePath(agentID, path)
	if err != nil {
		lock.Unlock()
		return WriteResult{}, err
	}

	data, err := os.ReadFile(full)
	if err != nil {
		lock.Unlock()
		if os.IsNotExist(err) {
			return WriteResult{}, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return WriteResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	content := string(data)

	newContent, err := applyEdit(content, oldText, newText)
	if err != nil {
		lock.Unlock()
		return WriteResult{}, fmt.Errorf("%w in %s", err, path)
	}

	if IsSoulPath(path) {
		// Release the lock while waiting on the human; re-check under lock
		// after confirmation in case the file changed meanwhile.
		lock.Unlock()

		ok, cerr := s.confirmSoul(ctx, agentID, newContent)
		if cerr != nil {
			return WriteResult{}, cerr
		}
		if !ok {
			logging.Memory("Soul edit declined for agent %s", agentID)
			return WriteResult{Declined: true}, nil
		}

		lock.Lock()
		defer lock.Unlock()

		data, err = os.ReadFile(full)
		if err != nil {
			return WriteResult{}, fmt.Errorf("read %s: %w", path, err)
		}
		newContent, err = applyEdit(string(data), oldText, newText)
		if err != nil {
			return WriteResult{}, fmt.Errorf("%w in %s", err, path)
		}

		return s.writeResolved(full, path, newContent)
	}

	defer lock.Unlock()
	return s.writeResolved(full, path, newContent)
}

func (s *Store) writeResolved(full, path, content string) (WriteResult, error) {
	if err := os.WriteFile(full, []byte(content), 0644); err != nil {
		return WriteResult{}, fmt.Errorf("write %s: %w", path, err)
	}
	logging.MemoryDebug("edited %s (%d bytes)", path, len(content))
	return WriteResult{Bytes: len(content)}, nil
}

// confirmSoul runs the human-in-the-loop gate. A nil confirmer declines.
func (s *Store) confirmSoul(ctx context.Context, agentID, preview string) (bool, error) {
	if s.confirmer == nil {
		return false, nil
	}
	return s.confirmer.ConfirmSoulEdit(ctx, agentID, preview)
}

// applyEdit computes the edited content, enforcing uniqueness and falling
// back to whitespace-tolerant matching when no exact match exists.
func applyEdit(content, oldText, newText string) (string, error) {
	matches := strings.Count(content, oldText)

	if matches == 0 {
		fuzzy, ok := fuzzyReplace(content, oldText, newText)
		if !ok {
			return "", ErrNotFound
		}
		if fuzzy == content {
			return "", ErrNoChange
		}
		return fuzzy, nil
	}

	if matches > 1 {
		return "", fmt.Errorf("%w (%d matches)", ErrAmbiguousEdit, matches)
	}

	newContent := strings.Replace(content, oldText, newText, 1)
	if newContent == content {
		return "", ErrNoChange
	}
	return newContent, nil
}
