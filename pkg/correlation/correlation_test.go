package correlation

import (
	"errors"
	"testing"
)

func TestTableDeliverToReservedSlot(t *testing.T) {
	tbl := NewTable[int]()
	ch := tbl.Reserve(1)
	if !tbl.Deliver(1, 42, nil) {
		t.Fatal("expected delivery to succeed")
	}
	res := <-ch
	if res.Value != 42 || res.Err != nil {
		t.Fatalf("unexpected result: %+v", res)
	}
	if tbl.Len() != 0 {
		t.Fatalf("expected empty table after delivery, got %d", tbl.Len())
	}
}

func TestTableDeliverUnknownIDDropped(t *testing.T) {
	tbl := NewTable[int]()
	if tbl.Deliver(99, 1, nil) {
		t.Fatal("expected delivery to an unknown id to report false")
	}
}

func TestTableSecondDeliveryDropped(t *testing.T) {
	tbl := NewTable[int]()
	tbl.Reserve(5)
	if !tbl.Deliver(5, 1, nil) {
		t.Fatal("first delivery should succeed")
	}
	if tbl.Deliver(5, 2, nil) {
		t.Fatal("second delivery for the same id should be dropped")
	}
}

func TestTableAbortSignalsAllPending(t *testing.T) {
	tbl := NewTable[int]()
	chs := []<-chan Result[int]{tbl.Reserve(1), tbl.Reserve(2)}
	sentinel := errors.New("disconnect")
	tbl.Abort(sentinel)
	for _, ch := range chs {
		res := <-ch
		if res.Err != sentinel {
			t.Fatalf("expected abort error, got %v", res.Err)
		}
	}
	if tbl.Len() != 0 {
		t.Fatal("table should be empty after abort")
	}
}

func TestArrayOverwritesOldestOnWraparound(t *testing.T) {
	arr := NewArray[int]()
	first := arr.Reserve(1)
	second := arr.Reserve(1 + MaxInflight)
	if !arr.Deliver(1+MaxInflight, 7, nil) {
		t.Fatal("expected delivery to the overwriting slot to succeed")
	}
	select {
	case <-first:
		t.Fatal("the overwritten slot should never be signalled")
	default:
	}
	res := <-second
	if res.Value != 7 {
		t.Fatalf("unexpected value: %d", res.Value)
	}
}

func TestCounterStepsByTwo(t *testing.T) {
	c := NewCounter(0)
	got := []uint32{c.Next(), c.Next(), c.Next()}
	want := []uint32{0, 2, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Next() sequence = %v, want %v", got, want)
		}
	}
}
