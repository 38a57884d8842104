package system

import (
	"image"
	"sync"
)

// FramePool reuses image.RGBA frame buffers per frame size so a long capture
// does not allocate a fresh buffer for every screencast frame.
type FramePool struct {
	pools map[image.Point]*sync.Pool
	mu    sync.RWMutex
}

var frames = NewFramePool()

func NewFramePool() *FramePool {
	return &FramePool{pools: make(map[image.Point]*sync.Pool)}
}

// GetFrame returns a w×h buffer from the shared pool. Its pixels are not
// cleared.
func GetFrame(w, h int) *image.RGBA {
	return frames.Get(w, h)
}

// PutFrame returns a buffer to the shared pool.
func PutFrame(img *image.RGBA) {
	frames.Put(img)
}

func (p *FramePool) Get(w, h int) *image.RGBA {
	key := image.Pt(w, h)
	p.mu.RLock()
	pool, ok := p.pools[key]
	p.mu.RUnlock()

	if !ok {
		p.mu.Lock()
		pool, ok = p.pools[key]
		if !ok {
			pool = &sync.Pool{
				New: func() any {
					return image.NewRGBA(image.Rect(0, 0, w, h))
				},
			}
			p.pools[key] = pool
		}
		p.mu.Unlock()
	}

	return pool.Get().(*image.RGBA)
}

// Put ignores nil and buffers that do not start at the origin.
func (p *FramePool) Put(img *image.RGBA) {
	if img == nil || img.Rect.Min != (image.Point{}) {
		return
	}
	key := img.Rect.Max
	p.mu.RLock()
	pool, ok := p.pools[key]
	p.mu.RUnlock()

	if ok {
		pool.Put(img)
	}
}
