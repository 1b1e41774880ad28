package task

import "testing"

func TestDepsSatisfied(t *testing.T) {
	byID := map[string]Task{
		"a": {ID: "a", Status: StatusCompleted},
		"b": {ID: "b", Status: StatusOpen},
	}

	cases := []struct {
		name string
		deps []string
		want bool
	}{
		{"no deps", nil, true},
		{"satisfied dep", []string{"a"}, true},
		{"unsatisfied dep", []string{"b"}, false},
		{"missing dep", []string{"missing"}, false},
		{"mixed", []string{"a", "b"}, false},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := DepsSatisfied(Task{Deps: c.deps}, byID)
			if got != c.want {
				t.Errorf("DepsSatisfied(%v) = %v, want %v", c.deps, got, c.want)
			}
		})
	}
}

func TestEligibleFiltersStatusAndDeps(t *testing.T) {
	all := []Task{
		{ID: "t1", Status: StatusOpen},
		{ID: "t2", Status: StatusInProgress},
		{ID: "t3", Status: StatusBlocked},
		{ID: "t4", Status: StatusCompleted},
		{ID: "t5", Status: StatusCancelled},
		{ID: "t6", Status: StatusOpen, Deps: []string{"t1"}},
		{ID: "t7", Status: StatusOpen, Deps: []string{"t4"}},
	}

	got := Eligible(all)

	var ids []string
	for _, t := range got {
		ids = append(ids, t.ID)
	}

	want := map[string]bool{"t1": true, "t2": true, "t7": true}
	if len(ids) != len(want) {
		t.Fatalf("Eligible() = %v, want 3 entries", ids)
	}
	for _, id := range ids {
		if !want[id] {
			t.Errorf("unexpected eligible task %q", id)
		}
	}
}

func TestEligiblePreservesInputOrder(t *testing.T) {
	all := []Task{
		{ID: "t3", Status: StatusOpen},
		{ID: "t1", Status: StatusOpen},
		{ID: "t2", Status: StatusInProgress},
	}
	got := Eligible(all)
	if len(got) != 3 || got[0].ID != "t3" || got[1].ID != "t1" || got[2].ID != "t2" {
		t.Fatalf("Eligible() did not preserve order: %+v", got)
	}
}

func TestIterationResultDuration(t *testing.T) {
	r := IterationResult{DurationMS: 1500}
	if got := r.Duration(); got.Milliseconds() != 1500 {
		t.Errorf("Duration() = %v, want 1500ms", got)
	}
}
