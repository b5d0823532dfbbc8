package ripple

import "testing"

func TestOnCreateReportsCells(t *testing.T) {
	var infos []CellInfo
	remove := OnCreate(func(info CellInfo) {
		infos = append(infos, info)
	})

	a := New(1, WithKey[int]("a"))
	d := Derive(func() (int, error) { return 0, nil }, WithKey[int]("d"))
	e := NewEffect(func() (Cleanup, error) { return nil, nil }, EffectKey("e"))
	defer e.Dispose()

	if len(infos) != 3 {
		t.Fatalf("expected 3 creations, got %d", len(infos))
	}
	if infos[0].Kind != KindAtom || infos[0].Key != "a" || infos[0].ID != a.ID() {
		t.Errorf("unexpected atom info %+v", infos[0])
	}
	if infos[1].Kind != KindDerived || infos[1].Key != "d" || infos[1].ID != d.ID() {
		t.Errorf("unexpected derived info %+v", infos[1])
	}
	if infos[2].Kind != KindEffect || infos[2].Key != "e" || infos[2].ID != e.ID() {
		t.Errorf("unexpected effect info %+v", infos[2])
	}

	remove()
	_ = New(2)
	if len(infos) != 3 {
		t.Errorf("removed hook must not fire, got %d", len(infos))
	}
}

func TestOnDisposeReportsEffect(t *testing.T) {
	var disposed []uint64
	remove := OnDispose(func(id uint64) {
		disposed = append(disposed, id)
	})
	defer remove()

	e := NewEffect(func() (Cleanup, error) { return nil, nil })
	e.Dispose()
	e.Dispose()

	if len(disposed) != 1 || disposed[0] != e.ID() {
		t.Errorf("expected one dispose for %d, got %v", e.ID(), disposed)
	}
}

func TestOnFlushReportsStats(t *testing.T) {
	var stats []FlushStats
	remove := OnFlush(func(s FlushStats) {
		stats = append(stats, s)
	})
	defer remove()

	a := New(0)
	unsub := a.On(func() {})
	defer unsub()

	Batch(func() {
		a.Set(1)
		a.Set(2)
	})

	if len(stats) != 1 {
		t.Fatalf("expected 1 flush report, got %d", len(stats))
	}
	if stats[0].Passes != 1 || stats[0].Delivered != 1 {
		t.Errorf("expected 1 pass delivering 1 listener, got %+v", stats[0])
	}
}

func TestCellKindString(t *testing.T) {
	cases := map[CellKind]string{
		KindAtom:     "atom",
		KindDerived:  "derived",
		KindEffect:   "effect",
		CellKind(99): "unknown",
	}
	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	}
}
