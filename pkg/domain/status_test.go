package domain_test

import (
	"testing"

	"github.com/opst/weft/pkg/domain"
)

func TestStatus_codes_round_trip(t *testing.T) {
	for _, status := range []domain.Status{
		domain.New, domain.Transforming, domain.Submitted, domain.Running,
		domain.Available, domain.Finished, domain.SubFinished, domain.Failed,
		domain.Cancelling, domain.Cancelled, domain.Suspended, domain.Expired,
		domain.Lost, domain.Broken,
	} {
		t.Run(status.String(), func(t *testing.T) {
			back, err := domain.StatusByCode(status.Code())
			if err != nil {
				t.Fatal(err)
			}
			if back != status {
				t.Errorf("unmatch: (actual, expected) = (%s, %s)", back, status)
			}

			parsed, err := domain.AsStatus(status.String())
			if err != nil {
				t.Fatal(err)
			}
			if parsed != status {
				t.Errorf("unmatch: (actual, expected) = (%s, %s)", parsed, status)
			}
		})
	}

	t.Run("Running keeps its wire name", func(t *testing.T) {
		// the Go identifier differs from the rendered name so the
		// constant does not shadow the Processing entity type.
		if domain.Running.String() != "processing" {
			t.Errorf("unmatch: (actual, expected) = (%s, processing)", domain.Running)
		}
		parsed, err := domain.AsStatus("processing")
		if err != nil {
			t.Fatal(err)
		}
		if parsed != domain.Running {
			t.Errorf("unmatch: (actual, expected) = (%s, %s)", parsed, domain.Running)
		}
	})

	t.Run("unknown code can not be resolved", func(t *testing.T) {
		if _, err := domain.StatusByCode(9999); err == nil {
			t.Error("expected error does not occured")
		}
	})

	t.Run("unknown name can not be parsed", func(t *testing.T) {
		if _, err := domain.AsStatus("no-such-status"); err == nil {
			t.Error("expected error does not occured")
		}
	})
}

func TestStatus_Terminal(t *testing.T) {
	terminal := []domain.Status{
		domain.Finished, domain.SubFinished, domain.Failed,
		domain.Cancelled, domain.Expired, domain.Lost, domain.Broken,
	}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("%s should be terminal", s)
		}
	}

	live := []domain.Status{
		domain.New, domain.Transforming, domain.Submitted,
		domain.Running, domain.Available, domain.Cancelling, domain.Suspended,
	}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
}

func TestRollUp(t *testing.T) {
	for name, testcase := range map[string]struct {
		when []domain.Status
		then domain.Status
	}{
		"no children yet keeps the parent transforming": {
			when: []domain.Status{},
			then: domain.Transforming,
		},
		"all finished rolls up to finished": {
			when: []domain.Status{domain.Finished, domain.Finished},
			then: domain.Finished,
		},
		"a subfinished child degrades the whole to subfinished": {
			when: []domain.Status{domain.Finished, domain.SubFinished},
			then: domain.SubFinished,
		},
		"a failed child degrades the whole to failed": {
			when: []domain.Status{domain.Finished, domain.SubFinished, domain.Failed},
			then: domain.Failed,
		},
		"a cancelled child degrades the whole to cancelled": {
			when: []domain.Status{domain.Finished, domain.Cancelled},
			then: domain.Cancelled,
		},
		"a suspended child holds the whole at suspended": {
			when: []domain.Status{domain.Finished, domain.Failed, domain.Suspended},
			then: domain.Suspended,
		},
		"an expired child holds the whole at expired": {
			when: []domain.Status{domain.Finished, domain.Suspended, domain.Expired},
			then: domain.Expired,
		},
		"one running child keeps the parent transforming": {
			when: []domain.Status{domain.Finished, domain.Failed, domain.Running},
			then: domain.Transforming,
		},
		"one new child keeps the parent transforming": {
			when: []domain.Status{domain.Finished, domain.New},
			then: domain.Transforming,
		},
		"a lost child keeps the parent transforming until resolved": {
			when: []domain.Status{domain.Finished, domain.Lost},
			then: domain.Transforming,
		},
		"only failures rolls up to failed": {
			when: []domain.Status{domain.Failed, domain.Failed},
			then: domain.Failed,
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual := domain.RollUp(testcase.when)
			if actual != testcase.then {
				t.Errorf(
					"unmatch: (actual, expected) = (%s, %s)", actual, testcase.then,
				)
			}
		})
	}
}

func TestRollUp_is_order_insensitive(t *testing.T) {
	a := domain.RollUp([]domain.Status{domain.Finished, domain.Failed, domain.Cancelled})
	b := domain.RollUp([]domain.Status{domain.Cancelled, domain.Finished, domain.Failed})
	if a != b {
		t.Errorf("unmatch: (%s, %s)", a, b)
	}
}
