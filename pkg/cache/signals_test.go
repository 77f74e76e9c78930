package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type recordingInvalidator struct {
	mu     sync.Mutex
	models []string
	result int
}

func (r *recordingInvalidator) InvalidateForModel(_ context.Context, model string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = append(r.models, model)
	return r.result
}

func (r *recordingInvalidator) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.models...)
}

func TestModelChangeListener_Handle(t *testing.T) {
	tests := []struct {
		name       string
		payload    string
		wantModels []string
		want       int
	}{
		{name: "model name", payload: "BlogPost", wantModels: []string{"BlogPost"}, want: 3},
		{name: "surrounding whitespace", payload: "  AITool\n", wantModels: []string{"AITool"}, want: 3},
		{name: "empty payload", payload: "   ", wantModels: nil, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inv := &recordingInvalidator{result: 3}
			l := NewModelChangeListener(inv, nil, zerolog.Nop())

			if got := l.Handle(context.Background(), tt.payload); got != tt.want {
				t.Errorf("Handle() = %d, want %d", got, tt.want)
			}
			got := inv.seen()
			if len(got) != len(tt.wantModels) {
				t.Fatalf("invalidated %v, want %v", got, tt.wantModels)
			}
			for i := range got {
				if got[i] != tt.wantModels[i] {
					t.Errorf("invalidated %v, want %v", got, tt.wantModels)
				}
			}
		})
	}
}

func TestModelChangeListener_CloseBeforeStart(t *testing.T) {
	l := NewModelChangeListener(&recordingInvalidator{}, nil, zerolog.Nop())
	if err := l.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := l.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}

	done := make(chan struct{})
	go func() {
		l.Start(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return on a closed listener")
	}
}

func TestModelChangeListener_Redis(t *testing.T) {
	client := setupTestRedis(t)
	inv := &recordingInvalidator{}
	l := NewModelChangeListener(inv, client, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Start(ctx)
	defer l.Close()

	// Publish until the subscription is live
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if err := PublishModelChange(ctx, client, "BlogPost"); err != nil {
			t.Fatalf("PublishModelChange() error = %v", err)
		}
		if len(inv.seen()) > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	seen := inv.seen()
	if len(seen) == 0 || seen[0] != "BlogPost" {
		t.Errorf("invalidated %v, want BlogPost", seen)
	}
}
