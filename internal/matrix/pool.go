package matrix

import "sync"

var scratchPool = make(map[int]*sync.Pool)

// Borrow returns a zeroed scratch slice of length n. Give it back with Return.
func Borrow(n int) []float32 {
	if p, ok := scratchPool[n]; ok {
		retVal := p.Get().([]float32)
		for i := range retVal {
			retVal[i] = 0
		}
		return retVal
	}
	return make([]float32, n)
}

// Return puts a slice obtained from Borrow back into the pool.
func Return(a []float32) {
	n := len(a)
	p, ok := scratchPool[n]
	if !ok {
		p = &sync.Pool{
			New: func() interface{} { return make([]float32, n) },
		}
		scratchPool[n] = p
	}
	p.Put(a)
}
