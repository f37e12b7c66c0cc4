package session

import (
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/franz/photo-janitor/internal/util"
)

// Persister stores session documents keyed by library fingerprint.
// *store.Store implements it; a nil Persister keeps the cache in-memory.
type Persister interface {
	SaveSession(fingerprint string, doc []byte) error
	LoadSessions() (map[string][]byte, error)
	DeleteSession(fingerprint string) error
}

// Cache holds the most recent completed session per library fingerprint.
//
// Sessions are immutable once published, so consistency reduces to a
// single pointer swap under the lock: readers either see the old session
// or the new one in full, never a mix. Readers never block on analysis
// work; writers never expose a session before it is fully constructed.
type Cache struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	store    Persister
}

// NewCache creates a session cache, warm-loading any persisted sessions
func NewCache(store Persister) (*Cache, error) {
	c := &Cache{
		sessions: make(map[string]*Session),
		store:    store,
	}

	if store != nil {
		docs, err := store.LoadSessions()
		if err != nil {
			return nil, fmt.Errorf("failed to load persisted sessions: %w", err)
		}
		for fp, doc := range docs {
			var s Session
			if err := json.Unmarshal(doc, &s); err != nil {
				util.WarnLog("Dropping corrupt session document for %s: %v", fp, err)
				continue
			}
			c.sessions[fp] = &s
		}
		if len(c.sessions) > 0 {
			util.DebugLog("Loaded %d cached sessions", len(c.sessions))
		}
	}

	return c, nil
}

// Publish atomically replaces the stored session for its library
// fingerprint. The session must be complete; partial results are never
// published.
func (c *Cache) Publish(s *Session) error {
	if s == nil || s.LibraryFingerprint == "" {
		return fmt.Errorf("%w: session without library fingerprint", util.ErrInvalidConfig)
	}

	if c.store != nil {
		doc, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to encode session: %w", err)
		}
		if err := c.store.SaveSession(s.LibraryFingerprint, doc); err != nil {
			return fmt.Errorf("failed to persist session: %w", err)
		}
	}

	c.mu.Lock()
	c.sessions[s.LibraryFingerprint] = s
	c.mu.Unlock()

	return nil
}

// Get returns the current session for a fingerprint.
// Returns util.ErrNotFound when no session exists; the caller recovers
// by triggering a fresh scan.
func (c *Cache) Get(fingerprint string) (*Session, error) {
	c.mu.RLock()
	s, ok := c.sessions[fingerprint]
	c.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no session for fingerprint %s", util.ErrNotFound, fingerprint)
	}
	return s, nil
}

// Fingerprints lists the fingerprints with a cached session, sorted
func (c *Cache) Fingerprints() []string {
	c.mu.RLock()
	fps := make([]string, 0, len(c.sessions))
	for fp := range c.sessions {
		fps = append(fps, fp)
	}
	c.mu.RUnlock()
	sort.Strings(fps)
	return fps
}

// Delete drops the cached session for a fingerprint
func (c *Cache) Delete(fingerprint string) error {
	if c.store != nil {
		if err := c.store.DeleteSession(fingerprint); err != nil {
			return fmt.Errorf("failed to delete persisted session: %w", err)
		}
	}
	c.mu.Lock()
	delete(c.sessions, fingerprint)
	c.mu.Unlock()
	return nil
}

// DeriveFiltered resolves cluster ids against the stored session and
// returns a filtered sub-session carrying the resolved member ids per
// cluster. Fails with ValidationError when nothing was selected or the
// selection resolves to zero photos: a filtered session with no
// analyzable photos must not exist, by construction.
func (c *Cache) DeriveFiltered(fingerprint string, clusterIDs []string) (*Filtered, error) {
	if len(clusterIDs) == 0 {
		return nil, &ValidationError{Reason: ReasonNoClustersSelected}
	}

	s, err := c.Get(fingerprint)
	if err != nil {
		return nil, err
	}

	resolved := make([]ResolvedCluster, 0, len(clusterIDs))
	total := 0
	for _, id := range clusterIDs {
		cl, ok := s.FindCluster(id)
		if !ok {
			util.DebugLog("Filter: cluster %s not in session %s", id, s.ID)
			continue
		}
		members := make([]string, len(cl.Members))
		copy(members, cl.Members)
		resolved = append(resolved, ResolvedCluster{ClusterID: cl.ID, Members: members})
		total += len(members)
	}

	if total == 0 {
		return nil, &ValidationError{Reason: ReasonNoResolvedPhotos}
	}

	return &Filtered{
		SessionID:          s.ID,
		LibraryFingerprint: s.LibraryFingerprint,
		CreatedAt:          s.CreatedAt,
		Clusters:           resolved,
	}, nil
}
