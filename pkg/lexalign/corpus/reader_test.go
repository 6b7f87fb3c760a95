package corpus

import (
	"compress/gzip"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cognicore/lexalign/pkg/lexalign/internalerr"
	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

func writeCorpus(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func readAll(t *testing.T, path string, v *vocab.Vocab) []Pair {
	t.Helper()
	r, err := Open(path, v)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	var pairs []Pair
	for r.Scan() {
		pairs = append(pairs, r.Pair())
	}
	if err := r.Err(); err != nil {
		t.Fatal(err)
	}
	return pairs
}

func TestReadPairs(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", "le chat ||| the cat\nle chien ||| the dog\n")
	v := vocab.New()

	pairs := readAll(t, path, v)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if len(pairs[0].Src) != 2 || len(pairs[0].Trg) != 2 {
		t.Errorf("pair 1 lengths = (%d, %d), want (2, 2)", len(pairs[0].Src), len(pairs[0].Trg))
	}
	// "le" and "the" repeat across lines and must keep their ids.
	if pairs[0].Src[0] != pairs[1].Src[0] {
		t.Error("repeated source token interned to different ids")
	}
	if pairs[0].Trg[0] != pairs[1].Trg[0] {
		t.Error("repeated target token interned to different ids")
	}
	if pairs[1].Line != 2 {
		t.Errorf("second pair line = %d, want 2", pairs[1].Line)
	}
}

func TestTrailingFieldIgnored(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", "le chat ||| the cat ||| 0-0 1-1\n")
	pairs := readAll(t, path, vocab.New())
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if len(pairs[0].Trg) != 2 {
		t.Errorf("target length = %d, want 2 (trailing field should be ignored)", len(pairs[0].Trg))
	}
}

func TestEmptySideRejected(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", "le chat ||| the cat\nle chien ||| \n")
	r, err := Open(path, vocab.New())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for r.Scan() {
	}
	err = r.Err()
	if err == nil {
		t.Fatal("expected an error for the empty target side")
	}
	if !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("error %v should wrap ErrInvalidInput", err)
	}
	if !strings.Contains(err.Error(), "line 2") {
		t.Errorf("error %q should name the offending line number", err)
	}
	if !strings.Contains(err.Error(), "le chien") {
		t.Errorf("error %q should include the offending line text", err)
	}
}

func TestMissingDelimiterRejected(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", "no delimiter here\n")
	r, err := Open(path, vocab.New())
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	for r.Scan() {
	}
	if err := r.Err(); !errors.Is(err, internalerr.ErrInvalidInput) {
		t.Errorf("error %v should wrap ErrInvalidInput", err)
	}
}

func TestGzipCorpus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corpus.txt.gz")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	gz := gzip.NewWriter(f)
	if _, err := gz.Write([]byte("le chat ||| the cat\n")); err != nil {
		t.Fatal(err)
	}
	if err := gz.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	pairs := readAll(t, path, vocab.New())
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair from gzip corpus, got %d", len(pairs))
	}
	if pairs[0].SrcText != "le chat" || pairs[0].TrgText != "the cat" {
		t.Errorf("surface text = (%q, %q)", pairs[0].SrcText, pairs[0].TrgText)
	}
}

func TestBlankLinesSkipped(t *testing.T) {
	path := writeCorpus(t, "corpus.txt", "\nle ||| the\n\n")
	pairs := readAll(t, path, vocab.New())
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Line != 2 {
		t.Errorf("line = %d, want 2", pairs[0].Line)
	}
}

func TestMissingFile(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent"), vocab.New()); err == nil {
		t.Fatal("expected an error opening a missing file")
	}
}
