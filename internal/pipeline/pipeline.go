package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/donbonifacio/scavenger8/internal/model"
	"github.com/donbonifacio/scavenger8/internal/stage"
)

// Pipeline construction errors.
var (
	// ErrNoStages is returned by New when no stage is described.
	ErrNoStages = errors.New("pipeline must have at least one stage")

	// ErrInvalidCapacity is returned by New when a queue capacity is not positive.
	ErrInvalidCapacity = errors.New("queue capacity must be positive")

	// ErrDuplicateStage is returned by New when two stages share a name.
	ErrDuplicateStage = errors.New("duplicate stage name")
)

// StageSpec describes one stage of the pipeline.
type StageSpec struct {
	// Name identifies the stage in logs and metrics. Must be unique.
	Name string

	// Workers is the worker pool size, in [stage.MinWorkers, stage.MaxWorkers].
	Workers int

	// OutputCapacity is the capacity of the queue the stage writes to.
	OutputCapacity int

	// OutputName names the output queue. Defaults to "<Name> output".
	OutputName string

	// Task is applied to every data item.
	Task stage.TaskFunc
}

// Spec is the complete description of a pipeline.
type Spec struct {
	// InputCapacity is the capacity of the queue feeding the first stage.
	InputCapacity int

	// InputName names the input queue. Defaults to "input".
	InputName string

	// Stages are chained in order.
	Stages []StageSpec
}

// QueueInfo is a point-in-time view of one queue.
type QueueInfo struct {
	Name string
	Len  int
	Cap  int
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger for the pipeline and its stages.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithDrainTimeout sets the drain timeout of every stage.
func WithDrainTimeout(d time.Duration) Option {
	return func(p *Pipeline) {
		p.drainTimeout = d
	}
}

// Pipeline is an ordered chain of stages sharing bounded queues.
type Pipeline struct {
	// stages in chain order.
	stages []*stage.Stage

	// queues has len(stages)+1 entries; queues[i] feeds stages[i].
	queues     []stage.Queue
	queueNames []string

	logger       *slog.Logger
	drainTimeout time.Duration
}

// New builds every queue and stage described by spec.
// Nothing runs until Start or Run is called.
func New(spec Spec, opts ...Option) (*Pipeline, error) {
	if len(spec.Stages) == 0 {
		return nil, ErrNoStages
	}
	if spec.InputCapacity < 1 {
		return nil, fmt.Errorf("%w: input queue has capacity %d", ErrInvalidCapacity, spec.InputCapacity)
	}

	p := &Pipeline{}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}

	inputName := spec.InputName
	if inputName == "" {
		inputName = "input"
	}
	p.queues = append(p.queues, make(stage.Queue, spec.InputCapacity))
	p.queueNames = append(p.queueNames, inputName)

	stageOpts := []stage.Option{stage.WithLogger(p.logger)}
	if p.drainTimeout > 0 {
		stageOpts = append(stageOpts, stage.WithDrainTimeout(p.drainTimeout))
	}

	names := make(map[string]bool, len(spec.Stages))
	for i, ss := range spec.Stages {
		if names[ss.Name] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateStage, ss.Name)
		}
		names[ss.Name] = true

		if ss.OutputCapacity < 1 {
			return nil, fmt.Errorf("%w: stage %q output has capacity %d", ErrInvalidCapacity, ss.Name, ss.OutputCapacity)
		}

		out := make(stage.Queue, ss.OutputCapacity)
		s, err := stage.New(ss.Name, p.queues[i], out, ss.Workers, ss.Task, stageOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create stage %q: %w", ss.Name, err)
		}

		outputName := ss.OutputName
		if outputName == "" {
			outputName = ss.Name + " output"
		}
		p.stages = append(p.stages, s)
		p.queues = append(p.queues, out)
		p.queueNames = append(p.queueNames, outputName)
	}

	return p, nil
}

// Input returns the queue feeding the first stage.
func (p *Pipeline) Input() chan<- model.Item {
	return p.queues[0]
}

// Output returns the queue written by the last stage.
func (p *Pipeline) Output() <-chan model.Item {
	return p.queues[len(p.queues)-1]
}

// Stages returns the stages in chain order.
func (p *Pipeline) Stages() []*stage.Stage {
	return append([]*stage.Stage(nil), p.stages...)
}

// Stage returns the stage with the given name.
func (p *Pipeline) Stage(name string) (*stage.Stage, bool) {
	for _, s := range p.stages {
		if s.Name() == name {
			return s, true
		}
	}
	return nil, false
}

// Queues returns the occupancy of every queue, input first.
func (p *Pipeline) Queues() []QueueInfo {
	infos := make([]QueueInfo, len(p.queues))
	for i, q := range p.queues {
		infos[i] = QueueInfo{
			Name: p.queueNames[i],
			Len:  len(q),
			Cap:  cap(q),
		}
	}
	return infos
}

// Start starts every stage and returns immediately.
func (p *Pipeline) Start(ctx context.Context) error {
	for _, s := range p.stages {
		if err := s.Start(ctx); err != nil {
			return fmt.Errorf("failed to start stage %q: %w", s.Name(), err)
		}
	}
	p.logger.Info("pipeline started", "stages", len(p.stages))
	return nil
}

// Wait blocks until every stage has reached a terminal state, or ctx is done.
// It returns the stage errors joined together.
func (p *Pipeline) Wait(ctx context.Context) error {
	var errs []error
	for _, s := range p.stages {
		if err := s.Wait(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// IsShutdown reports whether every stage has reached a terminal state.
func (p *Pipeline) IsShutdown() bool {
	for _, s := range p.stages {
		if !s.IsShutdown() {
			return false
		}
	}
	return true
}
