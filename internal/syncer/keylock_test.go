package syncer

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestKeyLockSerializesSameID(t *testing.T) {
	k := newKeyLock()
	unlock, err := k.Lock(context.Background(), 7)
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if _, ok := k.TryLock(7); ok {
		t.Fatal("TryLock on held id succeeded")
	}
	if _, ok := k.TryLock(8); !ok {
		t.Fatal("TryLock on free id failed")
	}

	got := make(chan struct{})
	go func() {
		u, err := k.Lock(context.Background(), 7)
		if err == nil {
			u()
		}
		close(got)
	}()
	select {
	case <-got:
		t.Fatal("second Lock returned while the first was held")
	case <-time.After(30 * time.Millisecond):
	}
	unlock()
	unlock() // second call is a no-op
	<-got
}

func TestKeyLockWaiterCancel(t *testing.T) {
	k := newKeyLock()
	unlock, _ := k.Lock(context.Background(), 1)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if _, err := k.Lock(ctx, 1); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Lock: got %v, want DeadlineExceeded", err)
	}
	unlock()
	k.mu.Lock()
	_, held := k.entries[1]
	k.mu.Unlock()
	if held {
		t.Error("entry should be dropped once nobody holds or waits")
	}
}

func TestMutationPhases(t *testing.T) {
	m := newMutation(OpToggle, 3)
	if m.Phase != PhaseIdle || m.ID == "" {
		t.Fatalf("new mutation: %+v", m)
	}
	m.begin(nil, 0)
	if m.Phase.String() != "pending" {
		t.Errorf("phase: got %s", m.Phase)
	}
	m.rollback()
	if m.Phase != PhaseRolledBack {
		t.Errorf("phase: got %s", m.Phase)
	}

	defer func() {
		if recover() == nil {
			t.Error("commit after rollback should panic")
		}
	}()
	m.commit()
}
