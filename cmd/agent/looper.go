package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/opst/weft/cmd/agent/recurring"
	"github.com/opst/weft/cmd/agent/tasks/archiver"
	"github.com/opst/weft/cmd/agent/tasks/carrier"
	"github.com/opst/weft/cmd/agent/tasks/clerk"
	"github.com/opst/weft/cmd/agent/tasks/conductor"
	"github.com/opst/weft/cmd/agent/tasks/transformer"
	"github.com/opst/weft/pkg/domain"
	"github.com/opst/weft/pkg/domain/weft"
	"github.com/opst/weft/pkg/loop"
)

type LoggerOptions func(*log.Logger) *log.Logger

func byLogger(l *log.Logger, opt ...LoggerOptions) *log.Logger {
	for _, o := range opt {
		l = o(l)
	}
	return l
}

func Copied() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		return log.New(l.Writer(), l.Prefix(), l.Flags())
	}
}

func WithPrefix(pre string) LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetPrefix(pre)
		return l
	}
}

func WithTimestamp() LoggerOptions {
	return func(l *log.Logger) *log.Logger {
		l.SetFlags(l.Flags() | log.Ldate | log.Ltime | log.Lmicroseconds)
		return l
	}
}

// Wrapper for monitoring loop tasks
//
//	Log the start and end of each time a task is executed. Essentially, it executes a task.
func monitor[T any](logger *log.Logger, task loop.Task[T]) loop.Task[T] {
	// counter for execution of the task
	var counter uint64
	return func(ctx context.Context, t T) (ret T, next loop.Next) {
		counter += 1
		timestamp := time.Now()

		logger.Printf("task start: #0x%X: ", counter)

		defer func() {
			logger.Printf(
				"task end: #0x%X (takes %s): %s",
				counter, time.Since(timestamp), next,
			)
		}()

		ret, next = task(ctx, t)
		return
	}
}

// Manifest for starting a loop, which determines how the loop should behave.
type LoopManifest struct {
	// role of this agent process
	Role domain.AgentRole

	// Policy for the looping
	Policy recurring.Policy
}

// StartLoop runs every loop of the manifest's role until the first
// error or context cancellation.
func StartLoop(
	ctx context.Context,
	logger *log.Logger,
	w weft.Weft,
	owner string,
	manifest LoopManifest,
) error {
	switch manifest.Role {
	case domain.Clerk:
		return startClerkLoop(ctx, logger, w, owner, manifest)
	case domain.Transformer:
		return startTransformerLoops(ctx, logger, w, owner, manifest)
	case domain.Carrier:
		return startCarrierLoop(ctx, logger, w, owner, manifest)
	case domain.Conductor:
		return startConductorLoops(ctx, logger, w, owner, manifest)
	case domain.Archiver:
		return startArchiverLoops(ctx, logger, w, owner, manifest)
	default:
		return fmt.Errorf("'%s' is not a startable role", manifest.Role)
	}
}

// inParallel runs all starters and returns the first error. Any
// failure stops the siblings.
func inParallel(ctx context.Context, starters ...func(context.Context) error) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, len(starters))
	for _, starter := range starters {
		go func(s func(context.Context) error) {
			errs <- s(ctx)
		}(starter)
	}

	var first error
	for range starters {
		if err := <-errs; err != nil && first == nil {
			first = err
			cancel()
		}
	}
	return first
}

func startClerkLoop(
	ctx context.Context,
	logger *log.Logger,
	w weft.Weft,
	owner string,
	manifest LoopManifest,
) error {
	l := byLogger(logger, Copied(), WithPrefix("[clerk loop]"))
	_, err := loop.Start(
		ctx, clerk.Seed(),
		monitor(
			l,
			clerk.Task(
				l, owner, w.Config().Agent().StaleLock(),
				w.Database().Request(),
			).Applied(manifest.Policy),
		),
	)
	return err
}

func startTransformerLoops(
	ctx context.Context,
	logger *log.Logger,
	w weft.Weft,
	owner string,
	manifest LoopManifest,
) error {
	agent := w.Config().Agent()
	db := w.Database()

	return inParallel(ctx,
		func(ctx context.Context) error {
			l := byLogger(logger, Copied(), WithPrefix("[submit loop]"))
			_, err := loop.Start(
				ctx, transformer.Seed(agent.Debounce()),
				monitor(
					l,
					transformer.Task(
						l, owner, agent.StaleLock(),
						w.Config().Executors().DefaultName(), w.Executors(),
						db.Transform(), db.Processing(), db.Throttle(),
					).Applied(manifest.Policy),
				),
				loop.WithTimeout(30*time.Second),
			)
			return err
		},
		func(ctx context.Context) error {
			l := byLogger(logger, Copied(), WithPrefix("[trigger loop]"))
			_, err := loop.Start(
				ctx, struct{}{},
				monitor(
					l,
					transformer.Trigger(
						l, db.Request(), db.Transform(), db.Condition(),
					).Applied(manifest.Policy),
				),
			)
			return err
		},
	)
}

func startCarrierLoop(
	ctx context.Context,
	logger *log.Logger,
	w weft.Weft,
	owner string,
	manifest LoopManifest,
) error {
	db := w.Database()
	l := byLogger(logger, Copied(), WithPrefix("[carrier loop]"))
	_, err := loop.Start(
		ctx, carrier.Seed(),
		monitor(
			l,
			carrier.Task(
				l, owner, w.Config().Agent().StaleLock(), w.Executors(),
				db.Processing(), db.Transform(), db.Request(),
				db.Catalog(), db.Message(),
			).Applied(manifest.Policy),
		),
		loop.WithTimeout(30*time.Second),
	)
	return err
}

func startConductorLoops(
	ctx context.Context,
	logger *log.Logger,
	w weft.Weft,
	owner string,
	manifest LoopManifest,
) error {
	agent := w.Config().Agent()
	db := w.Database()
	stores := conductor.Stores{
		Request:    db.Request(),
		Transform:  db.Transform(),
		Processing: db.Processing(),
		Condition:  db.Condition(),
		Message:    db.Message(),
	}

	hostname, err := os.Hostname()
	if err != nil {
		return err
	}
	self := domain.HealthItem{
		Agent:    domain.Conductor.String(),
		Hostname: hostname,
		Pid:      os.Getpid(),
		ThreadId: owner,
	}

	return inParallel(ctx,
		func(ctx context.Context) error {
			l := byLogger(logger, Copied(), WithPrefix("[command loop]"))
			_, err := loop.Start(
				ctx, conductor.Seed(),
				monitor(
					l,
					conductor.Commands(
						l, owner, agent.StaleLock(), w.Executors(), stores,
					).Applied(manifest.Policy),
				),
				loop.WithTimeout(30*time.Second),
			)
			return err
		},
		func(ctx context.Context) error {
			l := byLogger(logger, Copied(), WithPrefix("[event loop]"))
			_, err := loop.Start(
				ctx, conductor.Seed(),
				monitor(
					l,
					conductor.Events(
						l, owner, agent.StaleLock(), stores, db.Catalog(),
					).Applied(manifest.Policy),
				),
			)
			return err
		},
		func(ctx context.Context) error {
			l := byLogger(logger, Copied(), WithPrefix("[steward loop]"))
			_, err := loop.Start(
				ctx, conductor.Seed(),
				monitor(
					l,
					// the steward beats at the configured interval
					// regardless of how hot the other loops run.
					conductor.Steward(
						l, self, agent.LeaderWindow(),
						db.Health(), db.Throttle(),
					).Applied(recurring.UntilError(recurring.Forever(agent.Heartbeat()))),
				),
			)
			return err
		},
	)
}

func startArchiverLoops(
	ctx context.Context,
	logger *log.Logger,
	w weft.Weft,
	owner string,
	manifest LoopManifest,
) error {
	agent := w.Config().Agent()
	db := w.Database()

	return inParallel(ctx,
		func(ctx context.Context) error {
			l := byLogger(logger, Copied(), WithPrefix("[expire loop]"))
			_, err := loop.Start(
				ctx, archiver.Seed(),
				monitor(
					l,
					archiver.Expire(
						l, db.Request(), db.Transform(), db.Condition(),
					).Applied(manifest.Policy),
				),
			)
			return err
		},
		func(ctx context.Context) error {
			l := byLogger(logger, Copied(), WithPrefix("[finalize loop]"))
			_, err := loop.Start(
				ctx, archiver.Seed(),
				monitor(
					l,
					archiver.Finalize(l, db.Request()).Applied(manifest.Policy),
				),
			)
			return err
		},
		func(ctx context.Context) error {
			l := byLogger(logger, Copied(), WithPrefix("[cleanup loop]"))
			_, err := loop.Start(
				ctx, archiver.Seed(),
				monitor(
					l,
					archiver.Cleanup(
						l, agent.MessageRetention(),
						db.Request(), db.Message(),
					).Applied(manifest.Policy),
				),
			)
			return err
		},
	)
}
