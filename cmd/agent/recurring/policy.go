package recurring

import (
	"fmt"
	"strings"
	"time"

	"github.com/opst/weft/pkg/loop"
)

// Policy decides how an agent task is rescheduled after each cycle,
// from whether the cycle did any work and whether it failed.
type Policy interface {
	Next(updated bool, err error) loop.Next
	String() string
}

// ParsePolicy reads a policy from its command-line form:
// "forever", "forever:COOLDOWN" or "backlog".
func ParsePolicy(s string) (Policy, error) {
	name, param, hasParam := strings.Cut(s, ":")
	switch name {
	case "forever":
		if !hasParam || param == "" {
			return Forever(0), nil
		}
		cooldown, err := time.ParseDuration(param)
		if err != nil {
			return nil, fmt.Errorf(`failed to parse: %s as "forever:COOLDOWN": %w`, s, err)
		}
		return Forever(cooldown), nil
	case "backlog":
		if hasParam {
			return nil, fmt.Errorf("backlog policy does not take parameters: %s", s)
		}
		return Backlog(), nil
	}
	return nil, fmt.Errorf("unknown policy name: %s (should be one of -- forever|backlog)", name)
}

// Forever reschedules without end: immediately while cycles keep
// finding work, after the cooldown once the backlog drains.
//
// This is how deployed agents run.
func Forever(cooldown time.Duration) Policy {
	return forever(cooldown)
}

type forever time.Duration

func (f forever) String() string {
	return fmt.Sprintf("forever:%s", time.Duration(f).String())
}

func (f forever) Next(updated bool, err error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.Continue(time.Duration(f))
}

// Backlog reschedules immediately while cycles keep finding work and
// stops as soon as one finds none.
//
// Useful for one-shot draining, as in "weft-agent --policy backlog"
// from a cron job.
func Backlog() Policy {
	return backlog
}

var backlog backlogPolicy

type backlogPolicy struct{}

func (backlogPolicy) String() string {
	return "backlog"
}

func (backlogPolicy) Next(updated bool, err error) loop.Next {
	if updated {
		return loop.Continue(0)
	}
	return loop.Break(nil)
}

// UntilError wraps a policy so that any cycle error stops the loop,
// carrying that error out.
func UntilError(p Policy) Policy {
	return untilError{base: p}
}

type untilError struct {
	base Policy
}

func (u untilError) String() string {
	return fmt.Sprintf("%s (until error)", u.base.String())
}

func (u untilError) Next(updated bool, err error) loop.Next {
	if err != nil {
		return loop.Break(err)
	}
	return u.base.Next(updated, err)
}
