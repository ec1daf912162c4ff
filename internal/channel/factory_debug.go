//go:build debug

package channel

// New returns an unbuffered channel regardless of size, forcing synchronous
// handoff in debug builds.
func New[T any](size int) Channel[T] {
	return &direct[T]{ch: make(chan T)}
}
