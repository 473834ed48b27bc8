package conversation

import (
	"testing"
)

func TestSerialQueue_Order(t *testing.T) {
	q := newSerialQueue("test", testLogger())

	var got []int
	for i := 0; i < 100; i++ {
		i := i
		q.Submit(func() { got = append(got, i) })
	}
	q.Close()
	q.Wait()

	if len(got) != 100 {
		t.Fatalf("ran %d functions, want 100", len(got))
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("position %d ran %d", i, v)
		}
	}
}

func TestSerialQueue_PanicIsolated(t *testing.T) {
	q := newSerialQueue("test", testLogger())

	ran := false
	q.Submit(func() { panic("callback bug") })
	q.Submit(func() { ran = true })
	q.Close()
	q.Wait()

	if !ran {
		t.Error("function after a panic did not run")
	}
}

func TestSerialQueue_SubmitAfterClose(t *testing.T) {
	q := newSerialQueue("test", testLogger())
	q.Close()
	q.Close()
	q.Wait()

	if q.Submit(func() {}) {
		t.Error("Submit after Close should report false")
	}
}
