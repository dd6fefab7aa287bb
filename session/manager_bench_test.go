package session

import (
	"context"
	"fmt"
	"testing"
)

func benchManager(b *testing.B) *Manager {
	b.Helper()
	m := NewManager(ManagerConfig{Store: NewMemoryStore()})
	b.Cleanup(func() { _ = m.Close() })
	return m
}

func BenchmarkManagerCreateSession(b *testing.B) {
	m := benchManager(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = m.CreateSession(ctx, fmt.Sprintf("client-%d", i), true, 0, 4)
	}
}

func BenchmarkManagerResumeSession(b *testing.B) {
	m := benchManager(b)
	ctx := context.Background()
	_, _, _ = m.CreateSession(ctx, "durable", false, 0, 4)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = m.CreateSession(ctx, "durable", false, 0, 4)
	}
}

func BenchmarkManagerGetSession(b *testing.B) {
	m := benchManager(b)
	ctx := context.Background()
	_, _, _ = m.CreateSession(ctx, "client", true, 0, 4)

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.GetSession(ctx, "client")
	}
}

func BenchmarkManagerDisconnectReconnect(b *testing.B) {
	m := benchManager(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _, _ = m.CreateSession(ctx, "cycling", false, 0, 4)
		_ = m.DisconnectSession(ctx, "cycling", false)
	}
}

func BenchmarkManagerGenerateClientID(b *testing.B) {
	m := benchManager(b)
	ctx := context.Background()

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = m.GenerateClientID(ctx)
	}
}

func BenchmarkManagerConcurrentGetSession(b *testing.B) {
	m := benchManager(b)
	ctx := context.Background()
	_, _, _ = m.CreateSession(ctx, "shared", true, 0, 4)

	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			_, _ = m.GetSession(ctx, "shared")
		}
	})
}
