package request

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
)

// ErrNoObjects is returned when an operation needs an existing object and
// the pool has none.
var ErrNoObjects = errors.New("no objects available")

// Object is an object known to exist on the target.
type Object struct {
	Container string
	Name      string
	Size      int64
}

// ObjectPool tracks the objects a test has written and not yet deleted.
//
// It keeps itself up to date by listening to request/response pairs:
// successful writes add objects, failed deletes put them back and reads
// answered with 404 drop them.
type ObjectPool struct {
	mu      sync.Mutex
	objects []Object
	index   map[string]int
}

// NewObjectPool creates a pool holding the given objects.
func NewObjectPool(initial ...Object) *ObjectPool {
	p := &ObjectPool{index: make(map[string]int)}
	for _, o := range initial {
		p.Add(o)
	}
	return p
}

func key(container, name string) string { return container + "/" + name }

// Add records o. Adding a known object updates its size.
func (p *ObjectPool) Add(o Object) {
	p.mu.Lock()
	defer p.mu.Unlock()

	k := key(o.Container, o.Name)
	if i, ok := p.index[k]; ok {
		p.objects[i] = o
		return
	}
	p.index[k] = len(p.objects)
	p.objects = append(p.objects, o)
}

// Remove forgets an object. It reports whether the object was known.
func (p *ObjectPool) Remove(container, name string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.removeLocked(key(container, name))
}

func (p *ObjectPool) removeLocked(k string) bool {
	i, ok := p.index[k]
	if !ok {
		return false
	}
	last := len(p.objects) - 1
	if i != last {
		p.objects[i] = p.objects[last]
		p.index[key(p.objects[i].Container, p.objects[i].Name)] = i
	}
	p.objects = p.objects[:last]
	delete(p.index, k)
	return true
}

// Random returns a random known object without removing it.
func (p *ObjectPool) Random(rng *rand.Rand) (Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.objects) == 0 {
		return Object{}, ErrNoObjects
	}
	return p.objects[rng.IntN(len(p.objects))], nil
}

// Take removes and returns a random known object.
func (p *ObjectPool) Take(rng *rand.Rand) (Object, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.objects) == 0 {
		return Object{}, ErrNoObjects
	}
	o := p.objects[rng.IntN(len(p.objects))]
	p.removeLocked(key(o.Container, o.Name))
	return o, nil
}

// Len returns the number of known objects.
func (p *ObjectPool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.objects)
}

// OnRequestResponse updates the pool from a completed request.
func (p *ObjectPool) OnRequestResponse(req *Request, resp *Response) {
	obj := Object{Container: req.Container, Name: req.Object, Size: req.Size}

	switch req.Operation {
	case OpWrite:
		if resp.Success() {
			p.Add(obj)
		}
	case OpDelete:
		// The object was taken out when the delete was issued.
		if !resp.Success() && resp.StatusCode != http.StatusNotFound {
			p.Add(obj)
		}
	case OpRead, OpMetadata:
		if resp.StatusCode == http.StatusNotFound {
			p.Remove(obj.Container, obj.Name)
		}
	}
}
