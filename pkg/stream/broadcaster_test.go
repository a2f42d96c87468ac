package stream

import (
	"context"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBroadcasterDeliversNewestFrame(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, unsubscribe := b.Subscribe()
	defer unsubscribe()

	b.Publish([]byte("one"))
	b.Publish([]byte("two"))

	assert.Equal(t, []byte("two"), <-ch)
	select {
	case f := <-ch:
		t.Fatalf("unexpected extra frame %q", f)
	default:
	}
}

func TestBroadcasterSubscriberCount(t *testing.T) {
	var viewers atomic.Int64
	b := NewBroadcaster(func(delta int) { viewers.Add(int64(delta)) })

	_, first := b.Subscribe()
	_, second := b.Subscribe()
	assert.Equal(t, 2, b.Subscribers())
	assert.Equal(t, int64(2), viewers.Load())

	first()
	first()
	assert.Equal(t, 1, b.Subscribers())
	assert.Equal(t, int64(1), viewers.Load())

	b.Close()
	second()
	assert.Equal(t, 0, b.Subscribers())
	assert.Equal(t, int64(0), viewers.Load())
}

func TestBroadcasterClose(t *testing.T) {
	b := NewBroadcaster(nil)
	ch, _ := b.Subscribe()
	b.Close()
	b.Close()

	_, ok := <-ch
	assert.False(t, ok)

	late, unsubscribe := b.Subscribe()
	unsubscribe()
	_, ok = <-late
	assert.False(t, ok)

	b.Publish([]byte("ignored"))
}

func TestServeMJPEG(t *testing.T) {
	frames := make(chan []byte, 2)
	frames <- []byte("jpeg-1")
	frames <- []byte("jpeg-2")
	close(frames)

	rec := httptest.NewRecorder()
	require.NoError(t, ServeMJPEG(context.Background(), rec, frames))

	assert.Equal(t, "multipart/x-mixed-replace; boundary=frame", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Equal(t, 2, strings.Count(body, "--frame\r\n"))
	assert.Contains(t, body, "Content-Type: image/jpeg\r\nContent-Length: 6\r\n\r\njpeg-1\r\n")
	assert.True(t, rec.Flushed)
}

func TestServeMJPEGStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := ServeMJPEG(ctx, httptest.NewRecorder(), make(chan []byte))
	assert.ErrorIs(t, err, context.Canceled)
}
