package observability

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestShutdownManager(t *testing.T) {
	manager := NewShutdownManager(Discard(), &http.Server{}, time.Second)

	var calls atomic.Int32
	for i := 0; i < 3; i++ {
		manager.RegisterShutdownFunc(func(context.Context) error {
			calls.Add(1)
			return nil
		})
	}

	assert.NoError(t, manager.Shutdown())
	assert.Equal(t, int32(3), calls.Load())
}

func TestShutdownManager_Error(t *testing.T) {
	manager := NewShutdownManager(Discard(), nil, 0)
	errFlush := errors.New("flush failed")
	manager.RegisterShutdownFunc(func(context.Context) error { return errFlush })
	manager.RegisterShutdownFunc(func(context.Context) error { return nil })

	assert.ErrorIs(t, manager.Shutdown(), errFlush)
}

func TestRecoverPanic(t *testing.T) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer RecoverPanic(Discard(), "test")
		panic("boom")
	}()
	<-done
}

func TestMustRecover(t *testing.T) {
	assert.NoError(t, MustRecover(nil))
	assert.EqualError(t, MustRecover("boom"), "panic: boom")
}
