package grpcserver

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/test/bufconn"
)

func dial(t *testing.T, s *grpc.Server) healthpb.HealthClient {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func TestNew_HealthServing(t *testing.T) {
	t.Parallel()

	s, _ := New(Options{Log: zaptest.NewLogger(t), Reflection: true})
	hc := dial(t, s)

	resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{})
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		t.Fatalf("want SERVING, got %v", resp.GetStatus())
	}
}

func TestNew_HealthIgnoresCredentials(t *testing.T) {
	t.Parallel()

	s, _ := New(Options{Log: zaptest.NewLogger(t)})
	hc := dial(t, s)

	for _, v := range []string{"Bearer garbage", "Bearer a.b.c", "Basic x"} {
		ctx := metadata.AppendToOutgoingContext(context.Background(), "authorization", v)
		resp, err := hc.Check(ctx, &healthpb.HealthCheckRequest{})
		if err != nil {
			t.Fatalf("%q: Check: %v", v, err)
		}
		if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
			t.Fatalf("%q: want SERVING, got %v", v, resp.GetStatus())
		}
	}
}

func TestWatchDependency_FlipsStatus(t *testing.T) {
	t.Parallel()

	s, hs := New(Options{Log: zaptest.NewLogger(t)})
	hc := dial(t, s)

	var down atomic.Bool
	down.Store(true)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		WatchDependency(ctx, hs, zaptest.NewLogger(t), 10*time.Millisecond, func(context.Context) error {
			if down.Load() {
				return errors.New("db down")
			}
			return nil
		})
		close(done)
	}()
	defer func() { cancel(); <-done }()

	waitFor := func(want healthpb.HealthCheckResponse_ServingStatus) {
		t.Helper()
		deadline := time.Now().Add(2 * time.Second)
		for time.Now().Before(deadline) {
			resp, err := hc.Check(context.Background(), &healthpb.HealthCheckRequest{})
			if err == nil && resp.GetStatus() == want {
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
		t.Fatalf("status never became %v", want)
	}

	waitFor(healthpb.HealthCheckResponse_NOT_SERVING)
	down.Store(false)
	waitFor(healthpb.HealthCheckResponse_SERVING)
}
