package repository

// refCache memoizes association reads for one entity. A nil entry in single
// records a resolved absence. missing holds the id of a belongs_to target
// that was not found.
type refCache struct {
	single  map[string]map[string]*Entity
	missing map[string]map[string]string
	many    map[string]map[string][]*Entity
	counts  map[string]map[string]int
}

func newRefCache() *refCache {
	c := &refCache{}
	c.reset()
	return c
}

func (c *refCache) getSingle(name, key string) (*Entity, bool) {
	v, ok := c.single[name][key]
	return v, ok
}

func (c *refCache) putSingle(name, key string, e *Entity) {
	if c.single[name] == nil {
		c.single[name] = make(map[string]*Entity)
	}
	c.single[name][key] = e
	delete(c.missing[name], key)
}

func (c *refCache) getMissing(name, key string) (string, bool) {
	id, ok := c.missing[name][key]
	return id, ok
}

func (c *refCache) putMissing(name, key, id string) {
	if c.missing[name] == nil {
		c.missing[name] = make(map[string]string)
	}
	c.missing[name][key] = id
	delete(c.single[name], key)
}

func (c *refCache) dropSingle(name string) {
	delete(c.single, name)
	delete(c.missing, name)
}

func (c *refCache) getMany(name, key string) ([]*Entity, bool) {
	v, ok := c.many[name][key]
	if !ok {
		return nil, false
	}
	out := make([]*Entity, len(v))
	copy(out, v)
	return out, true
}

func (c *refCache) putMany(name, key string, list []*Entity) {
	if c.many[name] == nil {
		c.many[name] = make(map[string][]*Entity)
	}
	stored := make([]*Entity, len(list))
	copy(stored, list)
	c.many[name][key] = stored
}

// appendAll adds e to the unfiltered collection, if it has been loaded.
func (c *refCache) appendAll(name string, e *Entity) {
	list, ok := c.many[name][allKey]
	if !ok {
		return
	}
	for _, existing := range list {
		if existing.id == e.id {
			return
		}
	}
	c.many[name][allKey] = append(list, e)
}

// removeAll drops id from the unfiltered collection, if it has been loaded.
func (c *refCache) removeAll(name, id string) {
	list, ok := c.many[name][allKey]
	if !ok {
		return
	}
	kept := list[:0:0]
	for _, existing := range list {
		if existing.id != id {
			kept = append(kept, existing)
		}
	}
	c.many[name][allKey] = kept
}

func (c *refCache) getCount(name, key string) (int, bool) {
	v, ok := c.counts[name][key]
	return v, ok
}

func (c *refCache) putCount(name, key string, n int) {
	if c.counts[name] == nil {
		c.counts[name] = make(map[string]int)
	}
	c.counts[name][key] = n
}

func (c *refCache) reset() {
	c.single = make(map[string]map[string]*Entity)
	c.missing = make(map[string]map[string]string)
	c.many = make(map[string]map[string][]*Entity)
	c.counts = make(map[string]map[string]int)
}
