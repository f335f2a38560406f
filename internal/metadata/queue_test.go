package metadata

import "testing"

func TestQueuePopOrdersByPTS(t *testing.T) {
	q := NewQueue[int]()
	q.Push(Metadata[int]{InputID: 1, PTS: 300, Value: 3})
	q.Push(Metadata[int]{InputID: 1, PTS: 100, Value: 1})
	q.Push(Metadata[int]{InputID: 1, PTS: 200, Value: 2})

	for _, want := range []int{1, 2, 3} {
		m, ok := q.Pop(1, 0, 1000)
		if !ok {
			t.Fatalf("want ok, got false")
		}
		if m.Value != want {
			t.Fatalf("got %d, want %d", m.Value, want)
		}
	}
	if _, ok := q.Pop(1, 0, 1000); ok {
		t.Fatal("expected empty queue")
	}
}

func TestQueuePopDropsEarlierItems(t *testing.T) {
	q := NewQueue[int]()
	q.Push(Metadata[int]{InputID: 1, PTS: 50, Value: 1})  // before since, should be dropped
	q.Push(Metadata[int]{InputID: 1, PTS: 150, Value: 2}) // in range

	m, ok := q.Pop(1, 100, 200)
	if !ok || m.Value != 2 {
		t.Fatalf("got %+v, %v, want {150 2}, true", m, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("queue should be drained, has %d left", q.Len())
	}
}

func TestQueuePopStopsBeforeUntil(t *testing.T) {
	q := NewQueue[int]()
	q.Push(Metadata[int]{InputID: 1, PTS: 250, Value: 1})

	if _, ok := q.Pop(1, 0, 200); ok {
		t.Fatal("expected no match: item is past until")
	}
	if q.Len() != 1 {
		t.Fatalf("item past until must not be consumed, queue has %d", q.Len())
	}
}

func TestQueuePopRejectsWrongInput(t *testing.T) {
	q := NewQueue[int]()
	q.Push(Metadata[int]{InputID: 2, PTS: 100, Value: 1})
	q.Push(Metadata[int]{InputID: 1, PTS: 150, Value: 2})

	// Same-PTS collision aside, input 2 at 100 isn't in until-bound yet for input
	// 1's query once we ask with since=0 until=1000: the input-2 item is popped
	// and discarded (wrong input), then input 1 at 150 matches.
	m, ok := q.Pop(1, 0, 1000)
	if !ok || m.Value != 2 {
		t.Fatalf("got %+v, %v", m, ok)
	}
}

func TestQueuePopCollisionDropsOtherInput(t *testing.T) {
	q := NewQueue[int]()
	q.Push(Metadata[int]{InputID: 1, PTS: 100, Value: 1})
	q.Push(Metadata[int]{InputID: 2, PTS: 100, Value: 2})

	m, ok := q.Pop(1, 0, 1000)
	if !ok || m.Value != 1 {
		t.Fatalf("got %+v, %v", m, ok)
	}
	if q.Len() != 0 {
		t.Fatalf("colliding same-PTS item from another input should be dropped, queue has %d", q.Len())
	}
}

func TestQueuePopOrderTiebreak(t *testing.T) {
	q := NewQueue[int]()
	q.Push(Metadata[int]{InputID: 1, PTS: 100, Order: 5, Value: 1})
	q.Push(Metadata[int]{InputID: 1, PTS: 100, Order: -5, Value: 2})

	m, ok := q.Pop(1, 0, 1000)
	if !ok || m.Value != 2 {
		t.Fatalf("got %+v, %v, want the lower-Order item first", m, ok)
	}
}

func TestQueuePopAll(t *testing.T) {
	q := NewQueue[int]()
	q.Push(Metadata[int]{InputID: 1, PTS: 100, Value: 1})
	q.Push(Metadata[int]{InputID: 1, PTS: 150, Value: 2})
	q.Push(Metadata[int]{InputID: 1, PTS: 300, Value: 3}) // past until

	got := q.PopAll(1, 0, 200)
	if len(got) != 2 || got[0].Value != 1 || got[1].Value != 2 {
		t.Fatalf("got %+v", got)
	}
	if q.Len() != 1 {
		t.Fatalf("item past until must remain queued, has %d", q.Len())
	}
}

func TestQueueDropID(t *testing.T) {
	q := NewQueue[int]()
	q.Push(Metadata[int]{InputID: 1, PTS: 100, Value: 1})
	q.Push(Metadata[int]{InputID: 2, PTS: 150, Value: 2})
	q.Push(Metadata[int]{InputID: 1, PTS: 200, Value: 3})

	n := q.DropID(1)
	if n != 2 {
		t.Fatalf("got %d dropped, want 2", n)
	}
	if q.Len() != 1 {
		t.Fatalf("queue should have 1 item left, has %d", q.Len())
	}
	m, ok := q.Pop(2, 0, 1000)
	if !ok || m.Value != 2 {
		t.Fatalf("got %+v, %v", m, ok)
	}
}
