package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/vovakirdan/iconchat-server/internal/log"
)

func benchmarkBroadcast(b *testing.B, recipients int) {
	r := NewRegistry()
	sinks := make([]*fakeTransport, 0, recipients)
	for i := range recipients {
		ft := newFakeTransport(fmt.Sprintf("bench-%d", i))
		conn := newConnection(fmt.Sprintf("c%d", i), ft, 0, 0, nil)
		if _, err := r.Register(conn, "user", "😎"); err != nil {
			b.Fatalf("register: %v", err)
		}
		sinks = append(sinks, ft)
	}

	// drain so sends never block
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	for _, ft := range sinks {
		go func(ft *fakeTransport) {
			for {
				select {
				case <-ft.out:
				case <-ctx.Done():
					return
				}
			}
		}(ft)
	}

	bc := NewBroadcaster(r, nil, log.Nop())

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		bc.Broadcast(ctx, FrameRelay, "😎 user: payload", "c0")
	}
}

func BenchmarkBroadcast_10(b *testing.B)  { benchmarkBroadcast(b, 10) }
func BenchmarkBroadcast_100(b *testing.B) { benchmarkBroadcast(b, 100) }
func BenchmarkBroadcast_500(b *testing.B) { benchmarkBroadcast(b, 500) }
