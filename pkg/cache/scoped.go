package cache

// ScopedKeyer prefixes every key of an inner Keyer, so that several viewer
// deployments can share one Redis or Mongo backend.
//
//	keyer := cache.NewScopedKeyer(cache.NewDefaultKeyer(), "staging:")
type ScopedKeyer struct {
	inner  Keyer
	prefix string
}

// NewScopedKeyer creates a keyer with a prefix. A nil inner keyer means the
// DefaultKeyer.
func NewScopedKeyer(inner Keyer, prefix string) Keyer {
	if inner == nil {
		inner = NewDefaultKeyer()
	}
	return &ScopedKeyer{inner: inner, prefix: prefix}
}

// SnapshotKey implements Keyer.
func (k *ScopedKeyer) SnapshotKey(graphHash string, opts ViewKeyOpts) string {
	return k.prefix + k.inner.SnapshotKey(graphHash, opts)
}

// ArtifactKey implements Keyer.
func (k *ScopedKeyer) ArtifactKey(graphHash, format string, opts ViewKeyOpts) string {
	return k.prefix + k.inner.ArtifactKey(graphHash, format, opts)
}
