package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/opst/weft/pkg/domain"
	"github.com/opst/weft/pkg/utils/cmp"
)

func TestExpression_Evaluate(t *testing.T) {
	statuses := map[string]domain.Status{
		"extract":   domain.Finished,
		"transform": domain.Running,
		"load":      domain.Failed,
	}

	for name, testcase := range map[string]struct {
		when domain.Expression
		then bool
	}{
		"a status leaf matches a listed status": {
			when: domain.StatusIn("extract", domain.Finished),
			then: true,
		},
		"a status leaf rejects an unlisted status": {
			when: domain.StatusIn("transform", domain.Finished, domain.SubFinished),
			then: false,
		},
		"a status leaf over an unknown transform waits (false)": {
			when: domain.StatusIn("no-such-node", domain.Finished),
			then: false,
		},
		"all requires every branch": {
			when: domain.AllOf(
				domain.TransformDone("extract"),
				domain.StatusIn("load", domain.Failed),
			),
			then: true,
		},
		"all rejects when one branch is false": {
			when: domain.AllOf(
				domain.TransformDone("extract"),
				domain.TransformDone("transform"),
			),
			then: false,
		},
		"empty all is vacuously true": {
			when: domain.AllOf(),
			then: true,
		},
		"any requires one branch": {
			when: domain.AnyOf(
				domain.TransformDone("transform"),
				domain.TransformDone("extract"),
			),
			then: true,
		},
		"empty any is false": {
			when: domain.AnyOf(),
			then: false,
		},
		"not inverts": {
			when: domain.Not(domain.StatusIn("load", domain.Finished)),
			then: true,
		},
		"nesting works": {
			when: domain.AllOf(
				domain.TransformDone("extract"),
				domain.Not(domain.AnyOf(
					domain.StatusIn("transform", domain.Failed),
					domain.StatusIn("load", domain.Finished),
				)),
			),
			then: true,
		},
	} {
		t.Run(name, func(t *testing.T) {
			actual, err := testcase.when.Evaluate(statuses)
			if err != nil {
				t.Fatal(err)
			}
			if actual != testcase.then {
				t.Errorf(
					"unmatch: (actual, expected) = (%v, %v)", actual, testcase.then,
				)
			}
		})
	}
}

func TestExpression_Evaluate_broken_expressions(t *testing.T) {
	for name, testcase := range map[string]domain.Expression{
		"unknown op": {Op: "xor"},
		"not without operand": {Op: domain.OpNot},
		"bad branch inside all": domain.AllOf(
			domain.StatusIn("a", domain.Finished),
			domain.Expression{Op: "???"},
		),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := testcase.Evaluate(map[string]domain.Status{
				"a": domain.Finished,
			}); err == nil {
				t.Error("expected error does not occured")
			}
		})
	}
}

func TestExpression_Previous(t *testing.T) {
	testee := domain.AllOf(
		domain.TransformDone("extract"),
		domain.AnyOf(
			domain.StatusIn("transform", domain.Failed),
			domain.Not(domain.TransformDone("load")),
		),
		domain.TransformDone("extract"), // duplicated on purpose
	)

	actual := testee.Previous()
	expected := []string{"extract", "transform", "load"}
	if !cmp.SliceContentEq(actual, expected) {
		t.Errorf(
			"unmatch:\n===actual===\n%+v\n===expected===\n%+v", actual, expected,
		)
	}
}

func TestExpression_JSON_round_trip(t *testing.T) {
	testee := domain.AllOf(
		domain.TransformDone("extract"),
		domain.Not(domain.StatusIn("load", domain.Failed, domain.Lost)),
	)

	buf, err := json.Marshal(testee)
	if err != nil {
		t.Fatal(err)
	}
	var back domain.Expression
	if err := json.Unmarshal(buf, &back); err != nil {
		t.Fatal(err)
	}

	want, err := testee.Evaluate(map[string]domain.Status{"extract": domain.Finished})
	if err != nil {
		t.Fatal(err)
	}
	got, err := back.Evaluate(map[string]domain.Status{"extract": domain.Finished})
	if err != nil {
		t.Fatal(err)
	}
	if want != got {
		t.Errorf("unmatch: (actual, expected) = (%v, %v)", got, want)
	}
}
