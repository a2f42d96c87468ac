//Package stream fans encoded frames out to any number of viewers and serves them as MJPEG
package stream

import (
	"context"
	"fmt"
	"net/http"
	"sync"
)

//Boundary separates the parts of the multipart MJPEG response
const Boundary = "frame"

//Broadcaster delivers the newest frame to every subscriber. Slow subscribers miss frames instead of blocking
//the producer.
type Broadcaster struct {
	mu     sync.Mutex
	subs   map[chan []byte]struct{}
	closed bool
	onJoin func(delta int)
}

//NewBroadcaster creates a broadcaster. onJoin, when not nil, is called with +1/-1 as viewers come and go.
func NewBroadcaster(onJoin func(delta int)) *Broadcaster {
	return &Broadcaster{subs: make(map[chan []byte]struct{}), onJoin: onJoin}
}

//Subscribe registers a viewer. The returned func unsubscribes; it is safe to call more than once.
//The channel is closed when the broadcaster is closed or the viewer unsubscribes.
func (b *Broadcaster) Subscribe() (<-chan []byte, func()) {
	ch := make(chan []byte, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	b.joined(1)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			_, ok := b.subs[ch]
			if ok {
				delete(b.subs, ch)
				close(ch)
			}
			b.mu.Unlock()
			if ok {
				b.joined(-1)
			}
		})
	}
}

//Publish hands frame to every subscriber, replacing any frame the subscriber has not read yet.
//frame must not be modified afterwards.
func (b *Broadcaster) Publish(frame []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs {
		select {
		case ch <- frame:
		default:
			select { //drop the stale frame
			case <-ch:
			default:
			}
			select {
			case ch <- frame:
			default:
			}
		}
	}
}

//Subscribers returns the number of current viewers
func (b *Broadcaster) Subscribers() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

//Close disconnects every subscriber. Later subscribers get a closed channel.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	n := len(b.subs)
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
	b.mu.Unlock()
	b.joined(-n)
}

func (b *Broadcaster) joined(delta int) {
	if b.onJoin != nil && delta != 0 {
		b.onJoin(delta)
	}
}

//ServeMJPEG writes frames as a multipart/x-mixed-replace stream until ctx is done or frames is closed
func ServeMJPEG(ctx context.Context, w http.ResponseWriter, frames <-chan []byte) error {
	w.Header().Set("Content-Type", "multipart/x-mixed-replace; boundary="+Boundary)
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "close")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			if _, err := fmt.Fprintf(w, "--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", Boundary, len(frame)); err != nil {
				return err
			}
			if _, err := w.Write(frame); err != nil {
				return err
			}
			if _, err := w.Write([]byte("\r\n")); err != nil {
				return err
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
	}
}
