package agents

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
)

// DirectoryConfig sizes the agent cache
type DirectoryConfig struct {
	Size int
	TTL  time.Duration
}

// DefaultDirectoryConfig returns the cache settings used when none are configured
func DefaultDirectoryConfig() DirectoryConfig {
	return DirectoryConfig{Size: 1024, TTL: 5 * time.Minute}
}

// Directory caches agents by e-mail in front of a Store. Every request resolves
// its agent through the directory, so the cache saves a query per request.
type Directory struct {
	store *Store
	cache *lru.LRU[string, Agent]
}

// NewDirectory creates a directory over store
func NewDirectory(store *Store, config DirectoryConfig) *Directory {
	if config.Size <= 0 {
		config.Size = DefaultDirectoryConfig().Size
	}
	return &Directory{
		store: store,
		cache: lru.NewLRU[string, Agent](config.Size, nil, config.TTL),
	}
}

// Store returns the underlying store
func (d *Directory) Store() *Store {
	return d.store
}

// Lookup returns the agent owning email
func (d *Directory) Lookup(ctx context.Context, email string) (*Agent, error) {
	key := NormalizeEmail(email)
	if agent, ok := d.cache.Get(key); ok {
		return &agent, nil
	}

	agent, err := d.store.GetByEmail(ctx, key)
	if err != nil {
		return nil, err
	}
	d.cache.Add(key, *agent)
	return agent, nil
}

// Get returns the agent with id. Lookups by id bypass the cache.
func (d *Directory) Get(ctx context.Context, id int64) (*Agent, error) {
	return d.store.Get(ctx, id)
}

// List returns every agent
func (d *Directory) List(ctx context.Context) ([]*Agent, error) {
	return d.store.List(ctx)
}

// FindOrCreate resolves email to an agent, creating it when unknown
func (d *Directory) FindOrCreate(ctx context.Context, email, name string) (*Agent, bool, error) {
	key := NormalizeEmail(email)
	if agent, ok := d.cache.Get(key); ok {
		return &agent, false, nil
	}

	agent, created, err := d.store.FindOrCreate(ctx, email, name)
	if err != nil {
		return nil, false, err
	}
	d.cache.Add(agent.Email, *agent)
	return agent, created, nil
}

// Update changes an agent and drops its cache entry
func (d *Directory) Update(ctx context.Context, id int64, name string, profile json.RawMessage) (*Agent, error) {
	agent, err := d.store.Update(ctx, id, name, profile)
	if err != nil {
		return nil, err
	}
	d.cache.Remove(agent.Email)
	return agent, nil
}

// Delete removes an agent and drops its cache entry
func (d *Directory) Delete(ctx context.Context, id int64) error {
	agent, err := d.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := d.store.Delete(ctx, id); err != nil {
		return err
	}
	d.cache.Remove(agent.Email)
	return nil
}

// Len returns the number of cached agents
func (d *Directory) Len() int {
	return d.cache.Len()
}
