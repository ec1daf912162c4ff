// Package channel wraps Go channels behind narrow Sender and Receiver
// interfaces, so a producer can hand out write access without also handing
// out the ability to drain or close the feed.
package channel

// Receiver is the draining side of a feed.
type Receiver[E any] interface {
	Receive() <-chan E
	Len() int
}

// Sender is the producing side of a feed.
type Sender[E any] interface {
	Send(E)
}

// Channel is both sides plus the ability to end the feed.
type Channel[E any] interface {
	Receiver[E]
	Sender[E]
	Close()
}

// buffered decouples producer and consumer up to its capacity.
type buffered[E any] struct {
	ch chan E
}

func (b *buffered[E]) Send(v E)          { b.ch <- v }
func (b *buffered[E]) Receive() <-chan E { return b.ch }
func (b *buffered[E]) Len() int          { return len(b.ch) }
func (b *buffered[E]) Close()            { close(b.ch) }

// direct hands every value over synchronously.
type direct[E any] struct {
	ch chan E
}

func (d *direct[E]) Send(v E)          { d.ch <- v }
func (d *direct[E]) Receive() <-chan E { return d.ch }
func (d *direct[E]) Len() int          { return 0 }
func (d *direct[E]) Close()            { close(d.ch) }
