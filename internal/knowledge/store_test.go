package knowledge

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const suffix = "知识图谱.json"

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
}

func TestLoad_ClassifiesAndProjects(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "李白"+suffix, `[
		{"relation_to_poet": "本人", "type": "人物", "dynasty": "唐", "birth_year": 701, "death_year": 762, "title": "诗仙", "works": "静夜思、将进酒"},
		{"relation_to_poet": "代表作", "type": "作品", "name": "静夜思"},
		{"relation_to_poet": "代表作", "type": "作品", "name": "将进酒"},
		{"relation_to_poet": "好友", "type": "人物", "name": "杜甫"},
		{"relation_to_poet": "出生地", "type": "地点", "name": "碎叶城"}
	]`)
	writeFile(t, dir, "notes.json", `[]`)

	store, err := Load(dir, suffix)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	names := store.List()
	if len(names) != 1 || names[0] != "李白" {
		t.Fatalf("List = %v, want [李白]", names)
	}

	entry, ok := store.Get("李白")
	if !ok {
		t.Fatalf("Get(李白) missing")
	}

	detail := entry.Detail()
	if detail.Dynasty != "唐" {
		t.Errorf("Dynasty = %q, want 唐", detail.Dynasty)
	}
	if len(detail.Works) != 2 {
		t.Errorf("len(Works) = %d, want 2", len(detail.Works))
	}
	if len(detail.Relations) != 1 || detail.Relations[0].Name != "杜甫" {
		t.Errorf("Relations = %v, want one 杜甫", detail.Relations)
	}
	if len(detail.Places) != 1 || detail.Places[0].Name != "碎叶城" {
		t.Errorf("Places = %v, want one 碎叶城", detail.Places)
	}
	if detail.BirthYear == nil || *detail.BirthYear != 701 {
		t.Errorf("BirthYear = %v, want 701", detail.BirthYear)
	}
	if detail.BasicInfo == nil || detail.BasicInfo.Works != "静夜思、将进酒" {
		t.Errorf("BasicInfo = %+v, want works string", detail.BasicInfo)
	}
}

func TestLoad_SanitizesNonFiniteValues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "杜甫"+suffix, `[
		{"relation_to_poet": "本人", "type": "人物", "dynasty": "唐", "birth_year": NaN, "death_year": Infinity}
	]`)

	store, err := Load(dir, suffix)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	entry, ok := store.Get("杜甫")
	if !ok {
		t.Fatalf("Get(杜甫) missing: NaN tokens should not abort the file")
	}

	detail := entry.Detail()
	if detail.BirthYear != nil {
		t.Errorf("BirthYear = %v, want nil", *detail.BirthYear)
	}
	if detail.DeathYear != nil {
		t.Errorf("DeathYear = %v, want nil", *detail.DeathYear)
	}
	if prompt := entry.PromptJSON(); strings.Contains(prompt, "NaN") {
		t.Errorf("PromptJSON still carries NaN: %s", prompt)
	}
}

func TestLoad_SkipsBrokenFileAndContinues(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "坏档"+suffix, `{not json at all`)
	writeFile(t, dir, "白居易"+suffix, `[{"relation_to_poet": "本人", "type": "人物", "dynasty": "唐"}]`)

	store, err := Load(dir, suffix)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if store.Len() != 1 {
		t.Fatalf("Len = %d, want 1 (broken file skipped)", store.Len())
	}
	if _, ok := store.Get("坏档"); ok {
		t.Fatalf("broken file must not produce an entry")
	}
}

func TestLoad_MissingDir(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "absent"), suffix); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
