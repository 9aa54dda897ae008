package request

import (
	"math/rand/v2"

	"github.com/google/uuid"
)

// Supplier produces requests for one operation.
//
// Suppliers are called by a Manager with its random source. They do not
// need to be safe for concurrent use.
type Supplier interface {
	Supply(rng *rand.Rand) (*Request, error)
}

// SupplierFunc adapts a function to Supplier.
type SupplierFunc func(rng *rand.Rand) (*Request, error)

// Supply calls f(rng).
func (f SupplierFunc) Supply(rng *rand.Rand) (*Request, error) { return f(rng) }

// SizeRange is an inclusive range of object sizes in bytes.
type SizeRange struct {
	Min int64
	Max int64
}

// Pick returns a uniformly distributed size in the range.
func (s SizeRange) Pick(rng *rand.Rand) int64 {
	if s.Max <= s.Min {
		return s.Min
	}
	return s.Min + rng.Int64N(s.Max-s.Min+1)
}

// WriteSupplier creates new objects with random names.
type WriteSupplier struct {
	Container string
	Prefix    string
	Sizes     SizeRange
}

// Supply implements Supplier.
func (w *WriteSupplier) Supply(rng *rand.Rand) (*Request, error) {
	return New(OpWrite, w.Container, w.Prefix+uuid.NewString(), w.Sizes.Pick(rng)), nil
}

// PoolSupplier issues op against a random object of the pool. Deletes take
// the object out of the pool so that no two deletes race for it.
type PoolSupplier struct {
	Operation Operation
	Pool      *ObjectPool
}

// Supply implements Supplier.
func (s *PoolSupplier) Supply(rng *rand.Rand) (*Request, error) {
	var (
		obj Object
		err error
	)
	if s.Operation == OpDelete {
		obj, err = s.Pool.Take(rng)
	} else {
		obj, err = s.Pool.Random(rng)
	}
	if err != nil {
		return nil, err
	}
	return New(s.Operation, obj.Container, obj.Name, obj.Size), nil
}
