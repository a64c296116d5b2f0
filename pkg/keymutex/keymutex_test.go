package keymutex

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyMutexSerialisesSameKey(t *testing.T) {
	km := New[string]()
	counter := 0

	var wg sync.WaitGroup
	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("driver-1")
			defer unlock()
			v := counter
			v++
			counter = v
		}()
	}
	wg.Wait()

	assert.Equal(t, 100, counter)
	assert.Equal(t, 0, km.Len())
}

func TestKeyMutexIndependentKeys(t *testing.T) {
	km := New[int]()

	unlockA := km.Lock(1)
	done := make(chan struct{})
	go func() {
		unlockB := km.Lock(2)
		unlockB()
		close(done)
	}()
	<-done

	assert.Equal(t, 1, km.Len())
	unlockA()
	unlockA()
	assert.Equal(t, 0, km.Len())
}
