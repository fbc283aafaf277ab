package profile

import (
	"reflect"
	"strings"
	"testing"
)

func TestDeepMerge(t *testing.T) {
	tests := []struct {
		name string
		dst  map[string]any
		src  map[string]any
		want map[string]any
	}{
		{
			name: "untouched keys survive",
			dst:  map[string]any{"a": 1, "b": 2},
			src:  map[string]any{"b": 3, "c": 4},
			want: map[string]any{"a": 1, "b": 3, "c": 4},
		},
		{
			name: "nested maps merge recursively",
			dst:  map[string]any{"food": map[string]any{"diet": "vegetarian", "spice": "mild"}},
			src:  map[string]any{"food": map[string]any{"spice": "hot"}},
			want: map[string]any{"food": map[string]any{"diet": "vegetarian", "spice": "hot"}},
		},
		{
			name: "arrays replaced wholesale",
			dst:  map[string]any{"cities": []any{"Tokyo", "Kyoto"}},
			src:  map[string]any{"cities": []any{"Osaka"}},
			want: map[string]any{"cities": []any{"Osaka"}},
		},
		{
			name: "scalar replaces map",
			dst:  map[string]any{"budget": map[string]any{"max": 100}},
			src:  map[string]any{"budget": "flexible"},
			want: map[string]any{"budget": "flexible"},
		},
		{
			name: "nil dst",
			dst:  nil,
			src:  map[string]any{"a": 1},
			want: map[string]any{"a": 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DeepMerge(tt.dst, tt.src)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("DeepMerge = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestMergeAck(t *testing.T) {
	p := &Profile{Preferences: map[string]any{"pace": "relaxed"}}

	ack := p.Merge(map[string]any{"budget": "mid-range", "pace": "packed"}, "prefers window seats")

	if !reflect.DeepEqual(ack.UpdatedKeys, []string{"budget", "pace"}) {
		t.Errorf("UpdatedKeys = %v", ack.UpdatedKeys)
	}
	if !ack.NotesChanged {
		t.Error("expected NotesChanged")
	}
	if p.Notes != "prefers window seats" {
		t.Errorf("Notes = %q", p.Notes)
	}
	if p.Preferences["pace"] != "packed" {
		t.Errorf("pace = %v, want packed", p.Preferences["pace"])
	}

	summary := ack.Summary()
	if !strings.Contains(summary, "budget, pace") || !strings.Contains(summary, "notes") {
		t.Errorf("Summary = %q", summary)
	}
}

func TestMergeEmptyDelta(t *testing.T) {
	p := &Profile{Preferences: map[string]any{"pace": "relaxed"}, Notes: "keep"}

	ack := p.Merge(nil, "")

	if len(ack.UpdatedKeys) != 0 || ack.NotesChanged {
		t.Errorf("ack = %+v, want empty", ack)
	}
	if ack.Summary() != "Nothing to update." {
		t.Errorf("Summary = %q", ack.Summary())
	}
	if p.Notes != "keep" {
		t.Errorf("Notes = %q, want unchanged", p.Notes)
	}
}

func TestRender(t *testing.T) {
	p := &Profile{
		Preferences: map[string]any{"pace": "relaxed", "budget": "mid-range"},
		Notes:       "vegetarian",
	}

	got := p.Render()

	// Stable key order: budget before pace.
	budgetIdx := strings.Index(got, "budget")
	paceIdx := strings.Index(got, "pace")
	if budgetIdx < 0 || paceIdx < 0 || budgetIdx > paceIdx {
		t.Errorf("Render order wrong:\n%s", got)
	}
	if !strings.Contains(got, "Notes: vegetarian") {
		t.Errorf("Render missing notes:\n%s", got)
	}

	var empty *Profile
	if empty.Render() != "" {
		t.Error("nil profile should render empty")
	}
}
