// Package cache provides the persistent store for spoken audio clips.
// Entries are keyed by the exact text they voice. A disk store (L2) holds
// zstd-compressed payloads behind a gob index and is fronted by an in-memory
// LRU (L1) for hot clips. The package also exposes the small administrative
// surface (stats and clear) used by settings screens.
package cache
