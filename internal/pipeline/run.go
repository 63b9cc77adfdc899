package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/donbonifacio/scavenger8/internal/model"
)

// Source produces the items entering the pipeline. Run must write exactly
// one end-of-stream marker after its last item, including when it fails,
// unless ctx is cancelled first.
type Source interface {
	Run(ctx context.Context, out chan<- model.Item) error
}

// Sink consumes the items leaving the pipeline. Run must return once it has
// read the end-of-stream marker.
type Sink interface {
	Run(ctx context.Context, in <-chan model.Item) error
}

// Run starts the stages, feeds them from src and drains them into snk.
// It returns when the sink has seen the marker and every stage is terminal.
//
// Errors from the source, the sink and the stages are joined. A source error
// does not stop the pipeline: the marker it still emits drains every stage.
// Cancelling ctx interrupts everything.
func (p *Pipeline) Run(ctx context.Context, src Source, snk Sink) error {
	if err := p.Start(ctx); err != nil {
		return err
	}

	startTime := time.Now()

	var (
		mu   sync.Mutex
		errs []error
	)
	record := func(what string, err error) {
		if err == nil {
			return
		}
		mu.Lock()
		errs = append(errs, fmt.Errorf("%s: %w", what, err))
		mu.Unlock()
	}

	// One participant failing does not stop the others mid-drain.
	var wg sync.WaitGroup
	wg.Go(func() {
		record("source", src.Run(ctx, p.queues[0]))
	})
	wg.Go(func() {
		record("sink", snk.Run(ctx, p.Output()))
	})
	wg.Go(func() {
		// Stages observe ctx themselves; waiting without it guarantees every
		// stage is terminal when Run returns.
		record("stages", p.Wait(context.WithoutCancel(ctx)))
	})
	wg.Wait()

	p.logger.Info("pipeline finished",
		"elapsed", time.Since(startTime).Round(time.Millisecond),
		"errors", len(errs),
	)

	return errors.Join(errs...)
}
