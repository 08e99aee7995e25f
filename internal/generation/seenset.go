package generation

import "sync"

// DefaultSeenCapacity bounds a session's fingerprint history.
const DefaultSeenCapacity = 50

// SeenSet is a bounded ring of recently returned fingerprints. It is safe for
// concurrent use; two generations for one session may race on Add.
type SeenSet struct {
	mu    sync.Mutex
	ring  []string
	next  int
	count int
}

// NewSeenSet returns a SeenSet holding at most capacity fingerprints.
func NewSeenSet(capacity int) *SeenSet {
	if capacity <= 0 {
		capacity = DefaultSeenCapacity
	}
	return &SeenSet{ring: make([]string, capacity)}
}

// Add records fp, evicting the oldest entry when full. Re-adding a present
// fingerprint moves it to the most recent position.
func (s *SeenSet) Add(fp string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.containsLocked(fp) {
		s.refreshLocked(fp)
		return
	}
	s.ring[s.next] = fp
	s.next = (s.next + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
}

// refreshLocked rewrites the ring oldest first with fp moved to the end.
func (s *SeenSet) refreshLocked(fp string) {
	ordered := make([]string, 0, s.count)
	for _, held := range s.recentLocked() {
		if held != fp {
			ordered = append(ordered, held)
		}
	}
	ordered = append(ordered, fp)
	copy(s.ring, ordered)
	s.next = s.count % len(s.ring)
}

// Contains reports whether fp is held.
func (s *SeenSet) Contains(fp string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.containsLocked(fp)
}

func (s *SeenSet) containsLocked(fp string) bool {
	for i := 0; i < s.count; i++ {
		if s.ring[i] == fp {
			return true
		}
	}
	return false
}

// Recent returns the held fingerprints, oldest first.
func (s *SeenSet) Recent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recentLocked()
}

func (s *SeenSet) recentLocked() []string {
	out := make([]string, 0, s.count)
	start := 0
	if s.count == len(s.ring) {
		start = s.next
	}
	for i := 0; i < s.count; i++ {
		out = append(out, s.ring[(start+i)%len(s.ring)])
	}
	return out
}

// Len returns the number of held fingerprints.
func (s *SeenSet) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}
