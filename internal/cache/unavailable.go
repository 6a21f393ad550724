package cache

// Unavailable is the store used when caching is disabled or the cache
// directory cannot be opened. Reads miss with ErrCacheUnavailable and writes
// fail the same way, so callers proceed without caching.
type Unavailable struct {
	Reason error
}

func (u Unavailable) err() error {
	if u.Reason != nil {
		return u.Reason
	}
	return ErrCacheUnavailable
}

func (u Unavailable) Get(string) ([]byte, error) { return nil, u.err() }
func (u Unavailable) Put(string, []byte) error { return u.err() }
func (u Unavailable) Contains(string) bool { return false }
func (u Unavailable) Stats() (Stats, error) { return Stats{}, u.err() }
func (u Unavailable) Clear() error { return u.err() }

var (
	_ AudioStore = (*Store)(nil)
	_ AudioStore = Unavailable{}
)
