package jvm

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

type memberKey struct {
	class  string
	name   string
	sig    string
	static bool
	field  bool
}

func (k memberKey) String() string {
	prefix := "m:"
	if k.field {
		prefix = "f:"
	}
	if k.static {
		prefix += "s:"
	}
	return prefix + k.class + "." + k.name + k.sig
}

// HandleCache maps class names and member signatures to resolved handles.
// Reads take the shared lock; a miss resolves once through singleflight and
// inserts under the exclusive lock, so concurrent resolvers of the same key
// share a single VM lookup.
type HandleCache struct {
	mu      sync.RWMutex
	classes map[string]*Class
	methods map[memberKey]*Method
	fields  map[memberKey]*Field
	group   singleflight.Group

	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats is a snapshot of cache activity.
type CacheStats struct {
	Classes int
	Methods int
	Fields  int
	Hits    int64
	Misses  int64
}

func newHandleCache() *HandleCache {
	return &HandleCache{
		classes: make(map[string]*Class),
		methods: make(map[memberKey]*Method),
		fields:  make(map[memberKey]*Field),
	}
}

// Stats reports the cache size and hit counters.
func (c *HandleCache) Stats() CacheStats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return CacheStats{
		Classes: len(c.classes),
		Methods: len(c.methods),
		Fields:  len(c.fields),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *HandleCache) class(name string) (*Class, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cls, ok := c.classes[name]
	return cls, ok
}

func (c *HandleCache) method(k memberKey) (*Method, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	m, ok := c.methods[k]
	return m, ok
}

func (c *HandleCache) field(k memberKey) (*Field, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	f, ok := c.fields[k]
	return f, ok
}

// loadClass returns the cached class or runs resolve exactly once across
// concurrent callers.
func (c *HandleCache) loadClass(name string, resolve func() (*Class, error)) (*Class, error) {
	if cls, ok := c.class(name); ok {
		c.hits.Add(1)
		return cls, nil
	}
	v, err, _ := c.group.Do("c:"+name, func() (any, error) {
		if cls, ok := c.class(name); ok {
			return cls, nil
		}
		c.misses.Add(1)
		cls, err := resolve()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.classes[name] = cls
		c.mu.Unlock()
		return cls, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Class), nil
}

func (c *HandleCache) loadMethod(k memberKey, resolve func() (*Method, error)) (*Method, error) {
	if m, ok := c.method(k); ok {
		c.hits.Add(1)
		return m, nil
	}
	v, err, _ := c.group.Do(k.String(), func() (any, error) {
		if m, ok := c.method(k); ok {
			return m, nil
		}
		c.misses.Add(1)
		m, err := resolve()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.methods[k] = m
		c.mu.Unlock()
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Method), nil
}

func (c *HandleCache) loadField(k memberKey, resolve func() (*Field, error)) (*Field, error) {
	if f, ok := c.field(k); ok {
		c.hits.Add(1)
		return f, nil
	}
	v, err, _ := c.group.Do(k.String(), func() (any, error) {
		if f, ok := c.field(k); ok {
			return f, nil
		}
		c.misses.Add(1)
		f, err := resolve()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.fields[k] = f
		c.mu.Unlock()
		return f, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*Field), nil
}

// reset releases the class references and empties the cache. Only Runtime
// teardown calls it.
func (c *HandleCache) reset(t Thread) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cls := range c.classes {
		if cls.h != 0 {
			t.DeleteGlobalRef(cls.h)
		}
	}
	c.classes = make(map[string]*Class)
	c.methods = make(map[memberKey]*Method)
	c.fields = make(map[memberKey]*Field)
}
