// Package profile holds the per-conversation preference profile and its merge rules.
package profile

import (
	"fmt"
	"sort"
	"strings"
)

// Profile is the mutable preference state attached to a conversation.
// Preferences is an open key-value mapping (scalars, arrays, nested maps);
// Notes is free text overwritten wholesale on update.
type Profile struct {
	Preferences map[string]any `json:"preferences,omitempty"`
	Notes       string         `json:"notes,omitempty"`
}

// Ack summarizes what an upsert changed.
type Ack struct {
	UpdatedKeys  []string `json:"updated_keys,omitempty"`
	NotesChanged bool     `json:"notes_changed,omitempty"`
}

// Summary renders the ack as a short human-readable acknowledgment.
func (a Ack) Summary() string {
	switch {
	case len(a.UpdatedKeys) == 0 && !a.NotesChanged:
		return "Nothing to update."
	case len(a.UpdatedKeys) == 0:
		return "Updated your notes."
	case a.NotesChanged:
		return fmt.Sprintf("Updated preferences (%s) and your notes.", strings.Join(a.UpdatedKeys, ", "))
	default:
		return fmt.Sprintf("Updated preferences (%s).", strings.Join(a.UpdatedKeys, ", "))
	}
}

// Merge deep-merges delta into the profile's preferences and, if notes is
// non-empty, replaces Notes wholesale. Keys absent from delta are never
// touched. Returns an ack naming the top-level keys that were set.
func (p *Profile) Merge(delta map[string]any, notes string) Ack {
	var ack Ack

	if len(delta) > 0 {
		if p.Preferences == nil {
			p.Preferences = make(map[string]any, len(delta))
		}
		p.Preferences = DeepMerge(p.Preferences, delta)

		ack.UpdatedKeys = make([]string, 0, len(delta))
		for k := range delta {
			ack.UpdatedKeys = append(ack.UpdatedKeys, k)
		}
		sort.Strings(ack.UpdatedKeys)
	}

	if notes != "" && notes != p.Notes {
		p.Notes = notes
		ack.NotesChanged = true
	}

	return ack
}

// DeepMerge merges src into dst recursively: when both sides hold a map the
// maps combine key by key, otherwise the incoming value replaces the existing
// one (arrays and scalars overwrite wholesale). dst is modified and returned.
func DeepMerge(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = make(map[string]any, len(src))
	}
	for k, v := range src {
		existing, ok := dst[k]
		if ok {
			em, eIsMap := existing.(map[string]any)
			sm, sIsMap := v.(map[string]any)
			if eIsMap && sIsMap {
				dst[k] = DeepMerge(em, sm)
				continue
			}
		}
		dst[k] = v
	}
	return dst
}

// Render formats the profile for inclusion in a generation prompt: one line
// per preference in stable key order, then the notes if present. Returns ""
// for an empty profile.
func (p *Profile) Render() string {
	if p == nil || (len(p.Preferences) == 0 && p.Notes == "") {
		return ""
	}

	keys := make([]string, 0, len(p.Preferences))
	for k := range p.Preferences {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %v\n", k, p.Preferences[k])
	}
	if p.Notes != "" {
		fmt.Fprintf(&b, "Notes: %s\n", p.Notes)
	}
	return b.String()
}
