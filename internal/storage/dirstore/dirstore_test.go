package dirstore

import (
	"testing"
)

type testMeta struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

type testLine struct {
	Seq int    `json:"seq"`
	Msg string `json:"msg"`
}

func TestWriteReadMeta(t *testing.T) {
	ds := NewDirStore(t.TempDir(), "entry")

	if err := ds.EnsureDir("e1"); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}

	want := testMeta{ID: "e1", Label: "hello"}
	if err := ds.WriteMeta("e1", want); err != nil {
		t.Fatalf("WriteMeta: %v", err)
	}

	var got testMeta
	if err := ds.ReadMeta("e1", &got); err != nil {
		t.Fatalf("ReadMeta: %v", err)
	}
	if got != want {
		t.Errorf("ReadMeta = %+v, want %+v", got, want)
	}
}

func TestReadMetaNotFound(t *testing.T) {
	ds := NewDirStore(t.TempDir(), "entry")

	var got testMeta
	err := ds.ReadMeta("missing", &got)
	if err == nil {
		t.Fatal("expected error for missing entry")
	}
}

func TestListDirs(t *testing.T) {
	ds := NewDirStore(t.TempDir(), "entry")

	for _, id := range []string{"a", "b", "c"} {
		if err := ds.EnsureDir(id); err != nil {
			t.Fatalf("EnsureDir(%s): %v", id, err)
		}
	}

	names, err := ds.ListDirs()
	if err != nil {
		t.Fatalf("ListDirs: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected 3 dirs, got %d", len(names))
	}
}

func TestListDirsMissingBase(t *testing.T) {
	ds := NewDirStore(t.TempDir()+"/nope", "entry")

	names, err := ds.ListDirs()
	if err != nil {
		t.Fatalf("ListDirs on missing base: %v", err)
	}
	if names != nil {
		t.Errorf("expected nil names, got %v", names)
	}
}

func TestAppendLoadJSONL(t *testing.T) {
	ds := NewDirStore(t.TempDir(), "entry")

	if err := ds.EnsureDir("e1"); err != nil {
		t.Fatalf("EnsureDir: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := ds.AppendJSONL("e1", "attempts.jsonl", testLine{Seq: i, Msg: "ok"}); err != nil {
			t.Fatalf("AppendJSONL: %v", err)
		}
	}

	lines, err := LoadJSONL[testLine](ds, "e1", "attempts.jsonl")
	if err != nil {
		t.Fatalf("LoadJSONL: %v", err)
	}
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d", len(lines))
	}
	if lines[2].Seq != 2 {
		t.Errorf("last line seq = %d, want 2", lines[2].Seq)
	}
}

func TestLoadJSONLMissingFile(t *testing.T) {
	ds := NewDirStore(t.TempDir(), "entry")

	lines, err := LoadJSONL[testLine](ds, "e1", "attempts.jsonl")
	if err != nil {
		t.Fatalf("LoadJSONL on missing file: %v", err)
	}
	if lines != nil {
		t.Errorf("expected nil lines, got %v", lines)
	}
}
