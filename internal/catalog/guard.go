package catalog

// writerGuard admits one import at a time.
type writerGuard struct {
	slot chan struct{}
}

func newWriterGuard() *writerGuard {
	return &writerGuard{slot: make(chan struct{}, 1)}
}

// tryAcquire takes the guard without waiting.
func (g *writerGuard) tryAcquire() bool {
	select {
	case g.slot <- struct{}{}:
		return true
	default:
		return false
	}
}

// release frees the guard. Releasing a free guard does nothing.
func (g *writerGuard) release() {
	select {
	case <-g.slot:
	default:
	}
}
