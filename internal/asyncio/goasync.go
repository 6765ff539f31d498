package asyncio

import "os"

// goAsync is the portable Writer: a single background goroutine performs
// the actual write syscall so Submit can return to the consumer loop
// immediately, while Wait blocks for the prior write's completion.
//
// Grounded on the other_examples double-buffer logger's flushWorker: a
// request channel feeds a dedicated goroutine, and completion is
// reported back over a result channel instead of the logger blocking in
// the write call itself.
type goAsync struct {
	f       *os.File
	reqCh   chan writeReq
	doneCh  chan writeResult
	closing chan struct{}
}

type writeReq struct {
	data   []byte
	offset int64
}

type writeResult struct {
	n   int
	err error
}

func newGoAsync(f *os.File) *goAsync {
	g := &goAsync{
		f:       f,
		reqCh:   make(chan writeReq),
		doneCh:  make(chan writeResult, 1),
		closing: make(chan struct{}),
	}
	go g.loop()
	return g
}

func (g *goAsync) loop() {
	for {
		select {
		case req := <-g.reqCh:
			n, err := g.f.WriteAt(req.data, req.offset)
			g.doneCh <- writeResult{n: n, err: err}
		case <-g.closing:
			return
		}
	}
}

func (g *goAsync) Submit(data []byte, offset int64) error {
	g.reqCh <- writeReq{data: data, offset: offset}
	return nil
}

func (g *goAsync) Wait() (int, error) {
	r := <-g.doneCh
	return r.n, r.err
}

func (g *goAsync) Sync() error {
	return g.f.Sync()
}

func (g *goAsync) Close() error {
	close(g.closing)
	return g.f.Close()
}
