package ripple

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ripple-dev/ripple/pkg/future"
)

func TestDerivedBasic(t *testing.T) {
	computations := 0
	count := New(0)

	doubled := Derive(func() (int, error) {
		computations++
		v, err := count.Use()
		if err != nil {
			return 0, err
		}
		return v * 2, nil
	})

	if v, ok := doubled.Value(); !ok || v != 0 {
		t.Errorf("expected 0, got %d (ok=%v)", v, ok)
	}
	if computations != 1 {
		t.Errorf("expected 1 computation, got %d", computations)
	}

	count.Set(5)
	if v, _ := doubled.Value(); v != 10 {
		t.Errorf("expected 10, got %d", v)
	}
	if computations != 2 {
		t.Errorf("expected 2 computations, got %d", computations)
	}
}

func TestDerivedLazyFirstCompute(t *testing.T) {
	computations := 0
	count := New(1)

	d := Derive(func() (int, error) {
		computations++
		v, _ := count.Value()
		return v, nil
	})

	if computations != 0 {
		t.Errorf("computation must not run before first access, got %d", computations)
	}

	_, _ = d.Value()
	if computations != 1 {
		t.Errorf("expected 1 computation after first read, got %d", computations)
	}

	// Cached between changes.
	_, _ = d.Value()
	if computations != 1 {
		t.Errorf("expected cached read, got %d computations", computations)
	}
}

func TestDerivedDynamicDependencies(t *testing.T) {
	computations := 0
	flag := New(true)
	a := New("a")
	b := New("b")

	pick := Derive(func() (string, error) {
		computations++
		on, _ := flag.Value()
		if on {
			v, _ := a.Value()
			return v, nil
		}
		v, _ := b.Value()
		return v, nil
	})

	if v, _ := pick.Value(); v != "a" {
		t.Errorf("expected %q, got %q", "a", v)
	}

	// b was not read on the last run, so changing it is invisible.
	b.Set("b2")
	if computations != 1 {
		t.Errorf("unread atom must not trigger recomputation, got %d", computations)
	}

	flag.Set(false)
	if v, _ := pick.Value(); v != "b2" {
		t.Errorf("expected %q, got %q", "b2", v)
	}

	// After the branch switch, a is no longer a dependency.
	got := computations
	a.Set("a2")
	if computations != got {
		t.Errorf("stale dependency must not notify, got %d computations", computations)
	}

	b.Set("b3")
	if v, _ := pick.Value(); v != "b3" {
		t.Errorf("expected %q, got %q", "b3", v)
	}
}

func TestDerivedErrorPropagation(t *testing.T) {
	boom := errors.New("boom")
	src := New(1)

	d := Derive(func() (int, error) {
		v, err := src.Use()
		if err != nil {
			return 0, err
		}
		if v == 2 {
			return 0, boom
		}
		return v, nil
	})

	if _, ok := d.Value(); !ok {
		t.Error("expected initial value")
	}

	src.Set(2)
	if err := d.Err(); !errors.Is(err, boom) {
		t.Errorf("expected stored error, got %v", err)
	}
	if _, ok := d.Value(); ok {
		t.Error("failed derived should report no value")
	}

	// The error re-surfaces to downstream getters.
	outer := Derive(func() (int, error) {
		v, err := d.Use()
		if err != nil {
			return 0, err
		}
		return v + 1, nil
	})
	if err := outer.Err(); !errors.Is(err, boom) {
		t.Errorf("expected error to propagate downstream, got %v", err)
	}

	// Recovery on the next change.
	src.Set(3)
	if v, _ := d.Value(); v != 3 {
		t.Errorf("expected recovery to 3, got %d", v)
	}
	if v, _ := outer.Value(); v != 4 {
		t.Errorf("expected downstream recovery to 4, got %d", v)
	}
}

func TestDerivedPendingParks(t *testing.T) {
	computations := 0
	f := future.New[int]()
	src := FromFuture(f)

	d := Derive(func() (int, error) {
		computations++
		v, err := src.Use()
		if err != nil {
			return 0, err
		}
		return v + 1, nil
	})

	if !d.Loading() {
		t.Error("derived should park while its source is pending")
	}
	if computations != 1 {
		t.Errorf("expected 1 computation, got %d", computations)
	}

	f.Resolve(10)
	if v, ok := d.Value(); !ok || v != 11 {
		t.Errorf("expected 11 after the source resolved, got %d (ok=%v)", v, ok)
	}
	if computations != 2 {
		t.Errorf("expected 2 computations, got %d", computations)
	}
}

func TestDerivedSuspendGuard(t *testing.T) {
	guard := New("")
	var seen []string

	d := Derive(func() (string, error) {
		v, err := guard.Use()
		if err != nil {
			return "", err
		}
		if v == "" {
			return "", Suspend()
		}
		seen = append(seen, v)
		return v, nil
	})

	if !d.Loading() {
		t.Error("expected the guard to park the computation")
	}
	if len(seen) != 0 {
		t.Errorf("guarded body must not pass the guard, saw %v", seen)
	}

	guard.Set("x")
	if v, _ := d.Value(); v != "x" {
		t.Errorf("expected %q, got %q", "x", v)
	}
	if len(seen) != 1 {
		t.Errorf("expected exactly one passing run, got %v", seen)
	}
}

func TestDerivedChain(t *testing.T) {
	base := New(1)
	double := Derive(func() (int, error) {
		v, err := base.Use()
		if err != nil {
			return 0, err
		}
		return v * 2, nil
	})
	square := Derive(func() (int, error) {
		v, err := double.Use()
		if err != nil {
			return 0, err
		}
		return v * v, nil
	})

	if v, _ := square.Value(); v != 4 {
		t.Errorf("expected 4, got %d", v)
	}

	base.Set(3)
	if v, _ := square.Value(); v != 36 {
		t.Errorf("expected 36, got %d", v)
	}
}

func TestDerivedEqualitySuppression(t *testing.T) {
	count := New(0)
	parity := Derive(func() (int, error) {
		v, err := count.Use()
		if err != nil {
			return 0, err
		}
		return v % 2, nil
	})

	fired := 0
	unsub := parity.On(func() { fired++ })
	defer unsub()

	// Parity unchanged: recompute happens, notification does not.
	count.Set(2)
	if fired != 0 {
		t.Errorf("equal recomputed value should not notify, got %d", fired)
	}

	count.Set(3)
	if fired != 1 {
		t.Errorf("expected 1 notification, got %d", fired)
	}
}

func TestDerivedStaleParkDiscarded(t *testing.T) {
	computations := 0
	src := New(0)

	d := Derive(func() (int, error) {
		computations++
		v, err := src.Use()
		if err != nil {
			return 0, err
		}
		return v + 1, nil
	})

	if v, _ := d.Value(); v != 1 {
		t.Errorf("expected 1, got %d", v)
	}

	f := future.New[int]()
	src.SetFuture(f)
	if !d.Loading() {
		t.Error("derived should park on the pending fill")
	}

	// A plain write supersedes the fill before it settles.
	src.Set(5)
	if v, _ := d.Value(); v != 6 {
		t.Errorf("expected 6, got %d", v)
	}

	got := computations
	f.Resolve(99)
	if computations != got {
		t.Errorf("stale park settlement must not recompute, got %d computations", computations)
	}
	if v, _ := d.Value(); v != 6 {
		t.Errorf("stale fill must not surface, got %d", v)
	}
}

func TestDerivedWatch(t *testing.T) {
	f := future.New[int]()
	src := FromFuture(f)
	d := Derive(func() (int, error) {
		v, err := src.Use()
		if err != nil {
			return 0, err
		}
		return v * 10, nil
	})

	var seen []int
	unsub := d.Watch(func(v int) { seen = append(seen, v) })
	defer unsub()

	if len(seen) != 0 {
		t.Errorf("parked derived must not deliver values, got %v", seen)
	}

	f.Resolve(1)
	src.Set(2)
	if len(seen) != 2 || seen[0] != 10 || seen[1] != 20 {
		t.Errorf("expected [10 20], got %v", seen)
	}
}

func TestDerivedWait(t *testing.T) {
	f := future.New[int]()
	src := FromFuture(f)
	d := Derive(func() (int, error) {
		v, err := src.Use()
		if err != nil {
			return 0, err
		}
		return v + 100, nil
	})

	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve(1)
	}()

	v, err := d.Wait(context.Background())
	if err != nil || v != 101 {
		t.Errorf("expected 101, got %d (err=%v)", v, err)
	}
}

func TestDerivedUsePendingHandle(t *testing.T) {
	f := future.New[int]()
	src := FromFuture(f)
	d := Derive(func() (int, error) {
		return src.Use()
	})

	_, err := d.Use()
	p, ok := AsPending(err)
	if !ok {
		t.Fatalf("expected pending, got %v", err)
	}

	f.Resolve(42)
	if !p.Await.Done() {
		t.Error("park handle should settle with the source fill")
	}
	if v, err := d.Use(); err != nil || v != 42 {
		t.Errorf("expected 42, got %d (err=%v)", v, err)
	}
}

func TestDerivedOfDerivedDependencySwap(t *testing.T) {
	a := New(1)
	b := New(2)
	useA := New(true)

	inner := Derive(func() (int, error) {
		v, _ := a.Value()
		return v * 10, nil
	})

	computations := 0
	outer := Derive(func() (int, error) {
		computations++
		on, _ := useA.Value()
		if on {
			return inner.Use()
		}
		return b.Use()
	})

	if v, _ := outer.Value(); v != 10 {
		t.Errorf("expected 10, got %d", v)
	}

	useA.Set(false)
	if v, _ := outer.Value(); v != 2 {
		t.Errorf("expected 2, got %d", v)
	}

	// inner changes are invisible after the swap.
	got := computations
	a.Set(5)
	if computations != got {
		t.Errorf("dropped derived dependency must not notify, got %d", computations)
	}
}
