package bridge

import (
	"sync"
	"sync/atomic"

	"lahja/internal/domain"
)

// pendingRequest is the single-slot deferred-result cell bridging a
// push-driven capture session to pull-driven host polls. It is settled
// exactly once and claimed by exactly one poll.
type pendingRequest struct {
	done    chan struct{}
	once    sync.Once
	claimed atomic.Bool
	result  domain.AnalysisResult
}

func newPendingRequest() *pendingRequest {
	return &pendingRequest{done: make(chan struct{})}
}

// settle records the session result. Only the first call takes effect.
func (p *pendingRequest) settle(result domain.AnalysisResult) {
	p.once.Do(func() {
		p.result = result
		close(p.done)
	})
}

// settled reports whether the result has been recorded yet.
func (p *pendingRequest) settled() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// claim blocks until the result is settled, then hands it to exactly one
// caller; every other caller gets ok=false.
func (p *pendingRequest) claim() (domain.AnalysisResult, bool) {
	<-p.done
	if !p.claimed.CompareAndSwap(false, true) {
		return domain.AnalysisResult{}, false
	}
	return p.result, true
}
