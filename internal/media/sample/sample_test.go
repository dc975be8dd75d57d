package sample

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMediaSample_ReleaseOnce(t *testing.T) {
	calls := 0
	var released *MediaSample
	s := NewWithRelease(make([]byte, 16), 0, 7, func(s *MediaSample) {
		calls++
		released = s
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, calls)
	assert.Equal(t, 7, released.BufferID)
}

func TestMediaSample_Data(t *testing.T) {
	s := NewWithRelease([]byte{0, 1, 2, 3, 4, 5}, 2, 0, nil)
	s.Info.Size = 3
	assert.Equal(t, []byte{2, 3, 4}, s.Data())

	s.Info.Size = 10
	assert.Equal(t, []byte{2, 3, 4, 5}, s.Data())

	s.Release() // nil release callback is fine
}

func TestFlags(t *testing.T) {
	f := FlagEndOfStream | FlagCodecConfig
	assert.True(t, f.Has(FlagEndOfStream))
	assert.False(t, f.Has(FlagPartialFrame))
}
