package httpclient

import (
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestPool_ReusesClientPerProvider(t *testing.T) {
	pool := NewPool(DefaultConfig(), zap.NewNop())

	c1 := pool.Client("twilio")
	c2 := pool.Client("twilio")
	c3 := pool.Client("brevo")

	if c1 != c2 {
		t.Error("Expected same client for the same provider")
	}
	if c1 == c3 {
		t.Error("Expected distinct clients for different providers")
	}
	if c1.Timeout != DefaultConfig().RequestTimeout {
		t.Errorf("Expected timeout %s, got %s", DefaultConfig().RequestTimeout, c1.Timeout)
	}
}

func TestPool_Close(t *testing.T) {
	pool := NewPool(DefaultConfig(), nil)
	pool.Client("a")
	pool.Client("b")

	pool.Close()
	if n := pool.Len(); n != 0 {
		t.Errorf("Expected 0 clients after close, got %d", n)
	}
}

func TestPool_ConcurrentAccess(t *testing.T) {
	pool := NewPool(DefaultConfig(), nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pool.Client("s3")
		}()
	}
	wg.Wait()

	if n := pool.Len(); n != 1 {
		t.Errorf("Expected 1 client, got %d", n)
	}
}
