package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}
	t.Cleanup(func() { mr.Close() })

	client, err := NewClient(DefaultConfig(fmt.Sprintf("redis://%s/0", mr.Addr())))
	if err != nil {
		t.Fatalf("failed to create Redis client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

func TestNewClient_InvalidURL(t *testing.T) {
	if _, err := NewClient(DefaultConfig("not-a-redis-url")); err == nil {
		t.Error("Expected error for invalid Redis URL")
	}
}

func TestClient_Health(t *testing.T) {
	client, _ := newTestClient(t)

	if err := client.Health(context.Background()); err != nil {
		t.Errorf("Health() returned error: %v", err)
	}
}

func TestClient_MarkRoundSeen(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	fresh, err := client.MarkRoundSeen(ctx, "20240101-deadbeef", time.Hour)
	if err != nil {
		t.Fatalf("MarkRoundSeen() returned error: %v", err)
	}
	if !fresh {
		t.Error("Expected first sighting to be fresh")
	}

	// Replay of the same game ID must be reported as already seen
	fresh, err = client.MarkRoundSeen(ctx, "20240101-deadbeef", time.Hour)
	if err != nil {
		t.Fatalf("MarkRoundSeen() returned error: %v", err)
	}
	if fresh {
		t.Error("Expected replayed game ID to be reported as seen")
	}

	// A different game ID is independent
	fresh, err = client.MarkRoundSeen(ctx, "20240101-cafef00d", time.Hour)
	if err != nil {
		t.Fatalf("MarkRoundSeen() returned error: %v", err)
	}
	if !fresh {
		t.Error("Expected different game ID to be fresh")
	}

	// After the dedup TTL lapses the game ID can be stored again
	mr.FastForward(2 * time.Hour)
	fresh, err = client.MarkRoundSeen(ctx, "20240101-deadbeef", time.Hour)
	if err != nil {
		t.Fatalf("MarkRoundSeen() returned error: %v", err)
	}
	if !fresh {
		t.Error("Expected game ID to be fresh after TTL expiry")
	}
}

func TestClient_Counters(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	val, err := client.IncrementCounter(ctx, "rounds:collected", 1)
	if err != nil {
		t.Fatalf("IncrementCounter() returned error: %v", err)
	}
	if val != 1 {
		t.Errorf("Expected counter value 1, got %d", val)
	}

	val, err = client.IncrementCounter(ctx, "rounds:collected", 3)
	if err != nil {
		t.Fatalf("IncrementCounter() returned error: %v", err)
	}
	if val != 4 {
		t.Errorf("Expected counter value 4, got %d", val)
	}

	val, err = client.GetCounter(ctx, "rounds:collected")
	if err != nil {
		t.Fatalf("GetCounter() returned error: %v", err)
	}
	if val != 4 {
		t.Errorf("Expected counter value 4, got %d", val)
	}

	// Missing counters read as zero
	val, err = client.GetCounter(ctx, "rounds:never_touched")
	if err != nil {
		t.Fatalf("GetCounter() returned error: %v", err)
	}
	if val != 0 {
		t.Errorf("Expected missing counter to read 0, got %d", val)
	}
}

func TestClient_RecentPeaks(t *testing.T) {
	client, _ := newTestClient(t)
	ctx := context.Background()

	peaks := []float64{1.2, 3.4, 50.1, 2.0, 7.75}
	for _, peak := range peaks {
		if err := client.PushRecentPeak(ctx, peak, 3); err != nil {
			t.Fatalf("PushRecentPeak() returned error: %v", err)
		}
	}

	recent, err := client.RecentPeaks(ctx, 10)
	if err != nil {
		t.Fatalf("RecentPeaks() returned error: %v", err)
	}

	// Ring keeps the last 3 pushes, newest first
	want := []float64{7.75, 2.0, 50.1}
	if len(recent) != len(want) {
		t.Fatalf("Expected %d peaks, got %d: %v", len(want), len(recent), recent)
	}
	for i, peak := range want {
		if recent[i] != peak {
			t.Errorf("Peak[%d]: expected %v, got %v", i, peak, recent[i])
		}
	}
}

func TestClient_Heartbeat(t *testing.T) {
	client, mr := newTestClient(t)
	ctx := context.Background()

	_, live, err := client.GetHeartbeat(ctx, "collectord")
	if err != nil {
		t.Fatalf("GetHeartbeat() returned error: %v", err)
	}
	if live {
		t.Error("Expected no heartbeat before one is set")
	}

	if err := client.SetHeartbeat(ctx, "collectord", 30*time.Second); err != nil {
		t.Fatalf("SetHeartbeat() returned error: %v", err)
	}

	at, live, err := client.GetHeartbeat(ctx, "collectord")
	if err != nil {
		t.Fatalf("GetHeartbeat() returned error: %v", err)
	}
	if !live {
		t.Error("Expected heartbeat to be live after set")
	}
	if at.IsZero() {
		t.Error("Expected heartbeat timestamp to be set")
	}

	// Heartbeat lapses with its TTL
	mr.FastForward(time.Minute)
	_, live, err = client.GetHeartbeat(ctx, "collectord")
	if err != nil {
		t.Fatalf("GetHeartbeat() returned error: %v", err)
	}
	if live {
		t.Error("Expected heartbeat to lapse after TTL")
	}
}
