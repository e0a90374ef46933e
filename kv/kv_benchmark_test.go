package kv

import (
	"testing"

	"github.com/cpc-project/nvm3/hostmock"
)

func BenchmarkKVClient(b *testing.B) {
	d := hostmock.NewDaemon(hostmock.DaemonConfig{})
	d.Secondary().Put(1, []byte("value"))
	d.Secondary().SetCounter(2, 0)

	c, err := New(Config{Dialer: d})
	if err != nil {
		b.Fatalf("New failed: %v", err)
	}
	defer c.Close() //nolint:errcheck

	b.Run("Get", func(b *testing.B) {
		for range b.N {
			if _, err := c.Get(1); err != nil {
				b.Fatalf("Get failed: %v", err)
			}
		}
	})

	b.Run("Set", func(b *testing.B) {
		value := []byte("value")
		for range b.N {
			if err := c.Set(1, value); err != nil {
				b.Fatalf("Set failed: %v", err)
			}
		}
	})

	b.Run("Increment", func(b *testing.B) {
		for range b.N {
			if _, err := c.Increment(2); err != nil {
				b.Fatalf("Increment failed: %v", err)
			}
		}
	})

	b.Run("Keys", func(b *testing.B) {
		for range b.N {
			if _, err := c.Keys(); err != nil {
				b.Fatalf("Keys failed: %v", err)
			}
		}
	})
}
