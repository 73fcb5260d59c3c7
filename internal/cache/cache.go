package cache

import "time"

// Cache defines the interface for caching
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V, ttl time.Duration)
	Delete(key string)
	Clear()
	Len() int
}

// Key namespaces an identifier, e.g. Key("counts", "S1")
func Key(namespace, id string) string {
	return "doppelganger:v1:" + namespace + ":" + id
}
