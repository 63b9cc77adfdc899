// Package pipeline chains stages into a single pipeline that shares bounded
// queues: the output queue of stage i is the input queue of stage i+1.
//
// A pipeline is built from one Spec value by New, which returns every stage
// handle and queue together. Start launches all stages at once; each begins
// consuming as soon as items appear on its input queue.
//
// Shutdown is driven by a single end-of-stream marker written to the input
// queue. Each stage drains its workers before re-emitting the marker, so the
// marker moves through the chain as one wavefront and reaches the final
// queue only after every upstream stage has finished its work.
//
//	p, err := pipeline.New(pipeline.Spec{
//	    InputCapacity: 100,
//	    Stages: []pipeline.StageSpec{
//	        {Name: "fetch", Workers: 80, OutputCapacity: 100, Task: fetcher.Task()},
//	        {Name: "match", Workers: 4, OutputCapacity: 100, Task: techs.Task()},
//	    },
//	}, pipeline.WithLogger(logger))
//	if err != nil {
//	    return err
//	}
//	err = p.Run(ctx, loader, sink)
//
// Backpressure is structural: every queue has a fixed capacity, so a slow
// stage blocks the one before it without any cross-stage signalling.
package pipeline
