package lifecycle

import (
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

func TestCloseRunsInReverseOrder(t *testing.T) {
	m := NewManager(zerolog.Nop())

	var order []string
	for _, name := range []string{"pool", "store", "server"} {
		name := name
		m.RegisterFunc(name, func() error {
			order = append(order, name)
			return nil
		})
	}

	if err := m.Close(); err != nil {
		t.Fatalf("Close() = %v, want nil", err)
	}
	want := []string{"server", "store", "pool"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("close order = %v, want %v", order, want)
		}
	}
}

func TestCloseContinuesPastFailures(t *testing.T) {
	m := NewManager(zerolog.Nop())

	errPool := errors.New("pool close failed")
	m.RegisterFunc("pool", func() error { return errPool })

	storeClosed := false
	m.RegisterFunc("store", func() error {
		storeClosed = true
		return nil
	})

	err := m.Close()
	if !errors.Is(err, errPool) {
		t.Fatalf("Close() = %v, want wrapped %v", err, errPool)
	}
	if !storeClosed {
		t.Fatal("store closer did not run after an earlier failure")
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	m := NewManager(zerolog.Nop())

	calls := 0
	m.RegisterFunc("store", func() error {
		calls++
		return nil
	})

	if err := m.Close(); err != nil {
		t.Fatalf("first Close() = %v", err)
	}
	if err := m.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
	if calls != 1 {
		t.Fatalf("closer ran %d times, want 1", calls)
	}
}
