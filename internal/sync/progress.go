package sync

const progressBufferSize = 64

// ProgressUpdate carries one increment of run progress. All fields are
// optional; consumers must not assume every field is set on every call.
type ProgressUpdate struct {
	Current int
	Total   int
	Step    string
	Name    string
	Type    string
}

// ProgressFunc receives progress updates. It is called from a dedicated
// goroutine; a slow consumer loses updates rather than stalling the run.
type ProgressFunc func(ProgressUpdate)

// progressSink decouples the pipeline from the consumer: updates are
// pushed into a buffered channel and dropped when the buffer is full.
type progressSink struct {
	ch   chan ProgressUpdate
	done chan struct{}
}

func newProgressSink(fn ProgressFunc) *progressSink {
	s := &progressSink{
		ch:   make(chan ProgressUpdate, progressBufferSize),
		done: make(chan struct{}),
	}
	go func() {
		defer close(s.done)
		for update := range s.ch {
			if fn != nil {
				fn(update)
			}
		}
	}()
	return s
}

func (s *progressSink) Send(update ProgressUpdate) {
	select {
	case s.ch <- update:
	default:
		// consumer is lagging, drop
	}
}

func (s *progressSink) Close() {
	close(s.ch)
	<-s.done
}
