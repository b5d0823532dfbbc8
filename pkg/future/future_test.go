package future

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestResolve(t *testing.T) {
	f := New[int]()
	if f.Done() {
		t.Error("new future should not be done")
	}

	f.Resolve(42)
	if !f.Done() {
		t.Error("expected done after resolve")
	}
	v, err, ok := f.Result()
	if !ok || err != nil || v != 42 {
		t.Errorf("expected (42, nil, true), got (%d, %v, %v)", v, err, ok)
	}
}

func TestFirstSettlementWins(t *testing.T) {
	f := New[int]()
	f.Resolve(1)
	f.Resolve(2)
	f.Reject(errors.New("late"))

	v, err, _ := f.Result()
	if v != 1 || err != nil {
		t.Errorf("expected first settlement to win, got (%d, %v)", v, err)
	}
}

func TestReject(t *testing.T) {
	boom := errors.New("boom")
	f := Rejected[string](boom)

	if !f.Done() {
		t.Error("expected done")
	}
	if f.Err() != boom {
		t.Errorf("expected stored error, got %v", f.Err())
	}
	v, err, _ := f.Result()
	if v != "" || err != boom {
		t.Errorf("expected zero value and error, got (%q, %v)", v, err)
	}
}

func TestOnSettleBeforeAndAfter(t *testing.T) {
	f := New[int]()
	var early, late int

	f.OnSettle(func(v int, err error) { early = v })
	f.Resolve(5)
	if early != 5 {
		t.Errorf("expected early continuation to run, got %d", early)
	}

	// A continuation attached after settlement fires synchronously.
	f.OnSettle(func(v int, err error) { late = v })
	if late != 5 {
		t.Errorf("expected late continuation to fire immediately, got %d", late)
	}
}

func TestOnDoneReportsError(t *testing.T) {
	boom := errors.New("boom")
	f := New[int]()
	var got error
	f.OnDone(func(err error) { got = err })

	f.Reject(boom)
	if got != boom {
		t.Errorf("expected %v, got %v", boom, got)
	}
}

func TestWait(t *testing.T) {
	f := New[int]()
	go func() {
		time.Sleep(10 * time.Millisecond)
		f.Resolve(9)
	}()

	v, err := f.Wait(context.Background())
	if err != nil || v != 9 {
		t.Errorf("expected (9, nil), got (%d, %v)", v, err)
	}
}

func TestWaitContextCancelled(t *testing.T) {
	f := New[int]()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.Wait(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestGo(t *testing.T) {
	f := Go(func() (int, error) { return 3, nil })
	v, err := f.Wait(context.Background())
	if err != nil || v != 3 {
		t.Errorf("expected (3, nil), got (%d, %v)", v, err)
	}
}

func TestThenComposes(t *testing.T) {
	f := New[int]()
	doubled := Then(f, func(v int) (int, error) { return v * 2, nil })

	f.Resolve(21)
	v, err, ok := doubled.Result()
	if !ok || err != nil || v != 42 {
		t.Errorf("expected (42, nil, true), got (%d, %v, %v)", v, err, ok)
	}
}

func TestThenPropagatesRejection(t *testing.T) {
	boom := errors.New("boom")
	f := New[int]()
	ran := false
	out := Then(f, func(v int) (int, error) {
		ran = true
		return v, nil
	})

	f.Reject(boom)
	if ran {
		t.Error("fn should not run on rejection")
	}
	if out.Err() != boom {
		t.Errorf("expected rejection to propagate, got %v", out.Err())
	}
}

func TestMap(t *testing.T) {
	f := Resolved(2)
	s := Map(f, func(v int) string {
		if v == 2 {
			return "two"
		}
		return "other"
	})
	v, err, ok := s.Result()
	if !ok || err != nil || v != "two" {
		t.Errorf("expected (two, nil, true), got (%q, %v, %v)", v, err, ok)
	}
}

func TestAfterAllResolvesWhenAllDo(t *testing.T) {
	a := New[int]()
	b := New[string]()
	all := AfterAll(a, b)

	if all.Done() {
		t.Error("should not be done yet")
	}
	a.Resolve(1)
	if all.Done() {
		t.Error("should wait for every input")
	}
	b.Resolve("x")
	if !all.Done() || all.Err() != nil {
		t.Errorf("expected resolved, got done=%v err=%v", all.Done(), all.Err())
	}
}

func TestAfterAllRejectsEarly(t *testing.T) {
	boom := errors.New("boom")
	a := New[int]()
	b := New[int]()
	all := AfterAll(a, b)

	a.Reject(boom)
	if !all.Done() || all.Err() != boom {
		t.Errorf("expected early rejection, got done=%v err=%v", all.Done(), all.Err())
	}
}

func TestAfterAllEmpty(t *testing.T) {
	all := AfterAll()
	if !all.Done() || all.Err() != nil {
		t.Error("expected empty AfterAll to be resolved")
	}
}

func TestAfterFirst(t *testing.T) {
	a := New[int]()
	b := New[int]()
	first := AfterFirst(a, b)

	b.Resolve(1)
	if !first.Done() || first.Err() != nil {
		t.Errorf("expected first settlement to win, got done=%v err=%v", first.Done(), first.Err())
	}

	// The slower input settles afterwards without effect.
	a.Reject(errors.New("late"))
	if first.Err() != nil {
		t.Errorf("late rejection must not override, got %v", first.Err())
	}
}

func TestAfterFirstError(t *testing.T) {
	boom := errors.New("boom")
	a := New[int]()
	b := New[int]()
	first := AfterFirst(a, b)

	a.Reject(boom)
	if !first.Done() || first.Err() != boom {
		t.Errorf("expected first rejection to settle, got done=%v err=%v", first.Done(), first.Err())
	}
}
