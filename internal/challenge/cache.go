package challenge

import "sync"

// Cache holds one Client per distinct API credential. Multi-tenant
// deployments derive the vendor credential from the caller's own credential;
// the cache keeps client construction off the hot path. Unbounded, which is
// acceptable at the scale of distinct tenant credentials.
type Cache struct {
	mu      sync.Mutex
	clients map[string]Client
	build   func(secret string) (Client, error)
}

// NewCache returns a Cache that constructs missing clients with build.
func NewCache(build func(secret string) (Client, error)) *Cache {
	return &Cache{
		clients: make(map[string]Client),
		build:   build,
	}
}

// Get returns the cached client for secret, constructing it on first use.
func (c *Cache) Get(secret string) (Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if client, ok := c.clients[secret]; ok {
		return client, nil
	}
	client, err := c.build(secret)
	if err != nil {
		return nil, err
	}
	c.clients[secret] = client
	return client, nil
}

// Len reports the number of cached clients.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.clients)
}
