package tour

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestRegistryLoadCaches(t *testing.T) {
	var calls atomic.Int32
	src := SourceFunc(func(_ context.Context, id string) (*Definition, error) {
		calls.Add(1)
		return &Definition{ID: id, Published: true, Steps: steps(1, 0)}, nil
	})

	reg := NewRegistry(src)
	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := reg.Load(t.Context(), "t1")
			if err != nil {
				t.Errorf("Load: %v", err)
				return
			}
			if d.Steps[0].Order != 0 {
				t.Errorf("steps not sorted: %+v", d.Steps)
			}
		}()
	}
	wg.Wait()

	a, _ := reg.Load(t.Context(), "t1")
	b, _ := reg.Load(t.Context(), "t1")
	if a != b {
		t.Error("cached definition pointer changed")
	}
	if calls.Load() == 0 {
		t.Error("source never called")
	}

	before := calls.Load()
	reg.Forget("t1")
	if _, err := reg.Load(t.Context(), "t1"); err != nil {
		t.Fatalf("Load after Forget: %v", err)
	}
	if calls.Load() != before+1 {
		t.Errorf("calls = %d, want %d", calls.Load(), before+1)
	}
}

func TestRegistryDoesNotMutateSource(t *testing.T) {
	raw := &Definition{ID: "t1", Steps: steps(1, 0)}
	reg := NewRegistry(SourceFunc(func(context.Context, string) (*Definition, error) {
		return raw, nil
	}))
	if _, err := reg.Load(t.Context(), "t1"); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if raw.Steps[0].Order != 1 {
		t.Error("source definition was reordered")
	}
}

func TestRegistryNotFound(t *testing.T) {
	tests := []struct {
		name string
		src  SourceFunc
	}{
		{"nil", func(context.Context, string) (*Definition, error) { return nil, nil }},
		{"sentinel", func(context.Context, string) (*Definition, error) { return nil, ErrNotFound }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.src).Load(t.Context(), "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("err = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestRegistryMalformed(t *testing.T) {
	reg := NewRegistry(SourceFunc(func(_ context.Context, id string) (*Definition, error) {
		return &Definition{ID: id, Steps: steps(0, 2)}, nil
	}))
	_, err := reg.Load(t.Context(), "bad")
	if !IsMalformed(err) {
		t.Errorf("err = %v, want malformed", err)
	}
}

func TestRegistrySourceError(t *testing.T) {
	boom := errors.New("boom")
	reg := NewRegistry(SourceFunc(func(context.Context, string) (*Definition, error) {
		return nil, boom
	}))
	_, err := reg.Load(t.Context(), "x")
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want wrapped boom", err)
	}
	if errors.Is(err, ErrNotFound) {
		t.Error("source error reported as not found")
	}
}
