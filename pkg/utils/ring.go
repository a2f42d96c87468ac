package utils

//Ring is a fixed capacity FIFO buffer. Pushing into a full ring evicts the oldest element.
//A Ring is not safe for concurrent use; every session owns its own rings.
type Ring[T any] struct {
	items []T
	head  int //index of the oldest element
	size  int
}

//NewRing allocates a ring holding at most capacity elements. capacity below 1 is treated as 1.
func NewRing[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring[T]{items: make([]T, capacity)}
}

//Push appends v, evicting the oldest element when the ring is full
func (r *Ring[T]) Push(v T) {
	if r.size < len(r.items) {
		r.items[(r.head+r.size)%len(r.items)] = v
		r.size++
		return
	}

	r.items[r.head] = v
	r.head = (r.head + 1) % len(r.items)
}

//Len returns the number of stored elements
func (r *Ring[T]) Len() int {
	return r.size
}

//Cap returns the maximum number of stored elements
func (r *Ring[T]) Cap() int {
	return len(r.items)
}

//At returns the i-th element, 0 being the oldest. It panics when i is out of range.
func (r *Ring[T]) At(i int) T {
	if i < 0 || i >= r.size {
		panic("utils: ring index out of range")
	}
	return r.items[(r.head+i)%len(r.items)]
}

//Last returns the newest element, ok is false for an empty ring
func (r *Ring[T]) Last() (v T, ok bool) {
	if r.size == 0 {
		return v, false
	}
	return r.At(r.size - 1), true
}

//Slice copies the stored elements, oldest first
func (r *Ring[T]) Slice() []T {
	out := make([]T, r.size)
	for i := range out {
		out[i] = r.At(i)
	}
	return out
}

//Clear drops every element
func (r *Ring[T]) Clear() {
	var zero T
	for i := range r.items {
		r.items[i] = zero
	}
	r.head = 0
	r.size = 0
}
