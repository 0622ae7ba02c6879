/*
Package recorder hands profiler samples from the sampler to a store.

A Recorder takes each captured sample through the same steps:

 1. Stamp the configured sampling period if the sampler did not set one
 2. Optionally validate, dropping invalid samples
 3. Truncate frames to Settings.MaxFrames, keeping NFrames as the real depth
 4. Correlate with the span active in the caller's context
 5. Buffer, flushing to the Store when the buffer is full

Run flushes the buffer periodically until its context is done.

# Usage

	tracker := otelspan.NewRootTracker()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(tracker))

	st, _ := store.NewSQLiteStore(settings.StorePath)
	rec, err := recorder.New(settings, st,
	    recorder.WithSpanSource(tracker.FromContext),
	    recorder.WithLogger(slog.Default()),
	    recorder.WithMetrics(observability.NewMetricsRecorder()),
	)
	if err != nil {
	    return err
	}
	go rec.Run(ctx)

	// From the sampler, with the context of the sampled request:
	err = rec.Record(ctx, event.NewStackBasedEvent(frames, depth,
	    event.WithThread(tid, name)))

Samples belong to the recorder once passed to Record.
*/
package recorder
