package search

import (
	"testing"
	"time"
)

func TestRecoveryCallbackFires(t *testing.T) {
	m := &Meili{done: make(chan struct{})}
	fired := make(chan struct{})
	m.SetOnRecover(func() { close(fired) })

	m.notifyRecovered()

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("recovery callback not invoked")
	}
}

func TestRecoveryWithoutCallbackIsANoOp(t *testing.T) {
	m := &Meili{done: make(chan struct{})}
	m.notifyRecovered()
}
