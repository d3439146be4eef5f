package transport

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBrowserFetcherWidensPacingAfterErrors(t *testing.T) {
	f := NewBrowserFetcher(nil, slog.Default())

	min0, max0 := f.limiter.Bounds()
	assert.Equal(t, 5*time.Second, min0)

	for i := 0; i < 3; i++ {
		f.limiter.RecordError()
	}

	min1, max1 := f.limiter.Bounds()
	assert.Greater(t, min1, min0, "repeated failures must slow browser launches down")
	assert.Greater(t, max1, max0)
}
