package agent

import (
	"strconv"
	"time"
)

// rotationBucket is the time slice used to rotate persona assignment
// within an active roster. Two minutes keeps a persona stable across a
// short exchange without pinning it for the whole stream.
const rotationBucket = 2 * time.Minute

// Selection is the outcome of a persona pick: the persona answering this
// message and the full active roster it was drawn from.
type Selection struct {
	Agent  Profile
	Active []Profile
}

// Selector deterministically assigns personas to broadcasts. The same
// (live, message, time bucket) always yields the same persona, so replies
// stay attributable without any per-live state.
type Selector struct {
	catalog []Profile
	slots   int
	now     func() time.Time
}

// Option customizes a Selector.
type Option func(*Selector)

// WithNow overrides the selector clock. Useful in tests.
func WithNow(now func() time.Time) Option {
	return func(s *Selector) {
		s.now = now
	}
}

// WithCatalog replaces the built-in persona catalog.
func WithCatalog(catalog []Profile) Option {
	return func(s *Selector) {
		s.catalog = catalog
	}
}

// NewSelector returns a Selector exposing the given number of active
// roster slots. Slots are clamped to [2, 10].
func NewSelector(slots int, opts ...Option) *Selector {
	if slots < 2 {
		slots = 2
	}
	if slots > 10 {
		slots = 10
	}
	s := &Selector{
		catalog: Catalog,
		slots:   slots,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// hashText is a 31-based rolling hash over the runes of the input, folded
// into 32 bits. It only needs to spread roster offsets, not
// resist collisions.
func hashText(input string) uint32 {
	var hash uint32
	for _, r := range input {
		hash = hash*31 + uint32(r)
	}
	return hash
}

// monthKey returns the UTC "YYYY-MM" label for t. Rosters rotate on this
// boundary so every live sees a fresh lineup each month.
func monthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// ActiveRoster returns the personas on shift for the live this month. The
// roster is a contiguous window into the catalog starting at a hash offset
// derived from the month and the live id.
func (s *Selector) ActiveRoster(liveID string) []Profile {
	offset := int(hashText(monthKey(s.now())+":"+liveID)) % len(s.catalog)
	active := make([]Profile, 0, s.slots)
	for cursor := 0; cursor < s.slots; cursor++ {
		active = append(active, s.catalog[(offset+cursor)%len(s.catalog)])
	}
	return active
}

// Pick selects the persona answering the given message on the given live.
// A preferred persona id wins if it is on the active roster; otherwise the
// pick hashes the live, the message and the current two-minute bucket.
func (s *Selector) Pick(liveID, message, preferredAgentID string) Selection {
	active := s.ActiveRoster(liveID)

	if preferredAgentID != "" {
		for _, candidate := range active {
			if candidate.ID == preferredAgentID {
				return Selection{Agent: candidate, Active: active}
			}
		}
	}

	bucket := s.now().UnixMilli() / rotationBucket.Milliseconds()
	index := int(hashText(liveID+":"+message+":"+strconv.FormatInt(bucket, 10))) % len(active)
	return Selection{Agent: active[index], Active: active}
}

// ByID looks a persona up in the selector's catalog.
func (s *Selector) ByID(id string) (Profile, bool) {
	for _, candidate := range s.catalog {
		if candidate.ID == id {
			return candidate, true
		}
	}
	return Profile{}, false
}
