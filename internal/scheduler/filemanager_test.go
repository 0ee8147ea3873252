package scheduler

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
)

func mustMode(m os.FileMode) *os.FileMode {
	return &m
}

func TestRuleDestinationSubstitution(t *testing.T) {
	r := Rule{
		SrcRe: regexp.MustCompile(`^/watch/(?P<name>.+)\.tmp$`),
		DstRe: "/done/${name}.done",
	}

	if !r.matches("/watch/report.tmp") {
		t.Fatal("expected rule to match")
	}
	got := r.destination("/watch/report.tmp")
	want := "/done/report.done"
	if got != want {
		t.Fatalf("destination() = %q, want %q", got, want)
	}
}

func TestRuleNoMatch(t *testing.T) {
	r := Rule{SrcRe: regexp.MustCompile(`\.tmp$`)}
	if r.matches("/watch/report.txt") {
		t.Fatal("expected no match for non-.tmp path")
	}
}

func TestFileManagerSchedulerDropsUnmatchedEvents(t *testing.T) {
	rules := []Rule{{
		Action: ActionCopy,
		SrcRe:  regexp.MustCompile(`\.tmp$`),
		DstRe:  "${0}.done",
	}}

	fms := NewFileManagerScheduler(rules)

	// A path no rule matches must be rejected before it ever reaches the
	// debounce engine.
	if fms.fm.filterByRule(mkEvent("IN_CLOSE_WRITE", "/watch/report.txt")) {
		t.Fatal("expected no rule to match /watch/report.txt")
	}
	if !fms.fm.filterByRule(mkEvent("IN_CLOSE_WRITE", "/watch/report.tmp")) {
		t.Fatal("expected the .tmp rule to match")
	}
}

func TestRunCopyOrMoveAutoCreatesDestinationDir(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.txt")
	if err := os.WriteFile(src, []byte("hello"), 0o644); err != nil {
		t.Fatal(err)
	}

	dstDir := filepath.Join(tmp, "newdir", "nested")
	dst := filepath.Join(dstDir, "src.txt")

	dirMode := mustMode(0o750)
	rule := Rule{
		Action:     ActionMove,
		SrcRe:      regexp.MustCompile(regexp.QuoteMeta(src)),
		DstRe:      dst,
		AutoCreate: true,
		DirMode:    dirMode,
	}

	fm := &fileManagerJob{rules: []Rule{rule}}
	if err := fm.runCopyOrMove(rule, src); err != nil {
		t.Fatalf("runCopyOrMove: %v", err)
	}

	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected moved file to exist at %q: %v", dst, err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone after move, stat err = %v", err)
	}

	info, err := os.Stat(filepath.Join(tmp, "newdir"))
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0o750 {
		t.Fatalf("expected auto-created root dir mode 0750, got %v", info.Mode().Perm())
	}
}

func TestRunCopyOrMoveRefusesExistingDestination(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.txt")
	dst := filepath.Join(tmp, "dst.txt")
	os.WriteFile(src, []byte("a"), 0o644)
	os.WriteFile(dst, []byte("b"), 0o644)

	rule := Rule{
		Action: ActionCopy,
		SrcRe:  regexp.MustCompile(regexp.QuoteMeta(src)),
		DstRe:  dst,
	}
	fm := &fileManagerJob{rules: []Rule{rule}}

	if err := fm.runCopyOrMove(rule, src); err == nil {
		t.Fatal("expected error when destination already exists")
	}
}

func TestRunDeleteRecursive(t *testing.T) {
	tmp := t.TempDir()
	dir := filepath.Join(tmp, "victim")
	if err := os.MkdirAll(filepath.Join(dir, "sub"), 0o755); err != nil {
		t.Fatal(err)
	}

	rule := Rule{Action: ActionDelete, Rec: true, SrcRe: regexp.MustCompile(regexp.QuoteMeta(dir))}
	fm := &fileManagerJob{rules: []Rule{rule}}

	if err := fm.runDelete(rule, dir); err != nil {
		t.Fatalf("runDelete: %v", err)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("expected directory to be gone, stat err = %v", err)
	}
}

func TestShallowestMissingAncestor(t *testing.T) {
	tmp := t.TempDir()
	existing := filepath.Join(tmp, "existing")
	if err := os.MkdirAll(existing, 0o755); err != nil {
		t.Fatal(err)
	}

	target := filepath.Join(existing, "a", "b", "c")
	got := shallowestMissingAncestor(target)
	want := filepath.Join(existing, "a")

	if got != want {
		t.Fatalf("shallowestMissingAncestor() = %q, want %q", got, want)
	}
}
