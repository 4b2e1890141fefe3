package store

import (
	"errors"
	"testing"
	"time"
)

func TestAcquireIdleBotHonorsExclusions(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	b1, err := st.CreateBotProfile(ctx, "Bot One", "shark", "idle")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	b2, err := st.CreateBotProfile(ctx, "Bot Two", "casual", "idle")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := st.AcquireIdleBot(ctx, []string{b1})
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got.ID != b2 {
		t.Fatalf("acquired %s, want %s (b1 excluded)", got.ID, b2)
	}
	if got.Status != "deployed" {
		t.Fatalf("status = %s, want deployed", got.Status)
	}

	// both excluded or deployed now
	if _, err := st.AcquireIdleBot(ctx, []string{b1}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("acquire error = %v, want ErrNotFound", err)
	}
}

func TestReleaseBotSetsCooldown(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	id, err := st.CreateBotProfile(ctx, "Bot Three", "shark", "deployed")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	until := time.Now().Add(5 * time.Minute)
	if err := st.ReleaseBot(ctx, id, until); err != nil {
		t.Fatalf("release: %v", err)
	}

	// still cooling down, not acquirable
	if _, err := st.AcquireIdleBot(ctx, nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("acquire during cooldown error = %v, want ErrNotFound", err)
	}

	if err := st.ReleaseBot(ctx, id, time.Now().Add(-time.Second)); err != nil {
		t.Fatalf("release again: %v", err)
	}
	got, err := st.AcquireIdleBot(ctx, nil)
	if err != nil {
		t.Fatalf("acquire after cooldown: %v", err)
	}
	if got.ID != id {
		t.Fatalf("acquired %s, want %s", got.ID, id)
	}
}

func TestCountBotsByArchetype(t *testing.T) {
	st, ctx, cleanup := openStore(t)
	defer cleanup()

	for i := 0; i < 3; i++ {
		if _, err := st.CreateBotProfile(ctx, "S", "shark", "idle"); err != nil {
			t.Fatalf("create: %v", err)
		}
	}
	if _, err := st.CreateBotProfile(ctx, "C", "casual", "idle"); err != nil {
		t.Fatalf("create: %v", err)
	}

	counts, err := st.CountBotsByArchetype(ctx)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts["shark"] != 3 || counts["casual"] != 1 {
		t.Fatalf("counts = %v, want shark:3 casual:1", counts)
	}
	idle, err := st.CountIdleBots(ctx)
	if err != nil {
		t.Fatalf("idle count: %v", err)
	}
	if idle != 4 {
		t.Fatalf("idle = %d, want 4", idle)
	}
}
