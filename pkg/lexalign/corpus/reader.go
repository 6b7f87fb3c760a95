package corpus

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cognicore/lexalign/pkg/lexalign/internalerr"
	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

// Delimiter separates the two sides of a sentence pair.
const Delimiter = " ||| "

// maxLineBytes bounds a single corpus line.
const maxLineBytes = 16 * 1024 * 1024

// Pair is one parsed sentence pair. Src and Trg follow the file
// orientation; the trainer swaps them in reverse mode.
type Pair struct {
	Line    int
	Src     []vocab.WordID
	Trg     []vocab.WordID
	SrcText string
	TrgText string
}

// Reader streams sentence pairs from a possibly gzip-compressed
// corpus file, interning tokens through the shared vocabulary.
type Reader struct {
	f     *os.File
	gz    *gzip.Reader
	sc    *bufio.Scanner
	vocab *vocab.Vocab
	line  int
	pair  Pair
	err   error
}

// Open opens path for streaming. Files ending in ".gz" are
// transparently decompressed.
func Open(path string, v *vocab.Vocab) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open corpus %s: %w", path, err)
	}

	r := &Reader{f: f, vocab: v}
	var src io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("open gzip corpus %s: %w", path, err)
		}
		r.gz = gz
		src = gz
	}

	sc := bufio.NewScanner(src)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	r.sc = sc
	return r, nil
}

// Scan advances to the next sentence pair. It returns false at end of
// input or on error; Err distinguishes the two.
func (r *Reader) Scan() bool {
	if r.err != nil {
		return false
	}
	for r.sc.Scan() {
		r.line++
		line := r.sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		pair, err := r.parse(line)
		if err != nil {
			r.err = err
			return false
		}
		r.pair = pair
		return true
	}
	if err := r.sc.Err(); err != nil {
		r.err = fmt.Errorf("read corpus: %w", err)
	}
	return false
}

// Pair returns the pair produced by the last successful Scan.
func (r *Reader) Pair() Pair {
	return r.pair
}

// Err returns the first error encountered while scanning, if any.
func (r *Reader) Err() error {
	return r.err
}

// Close releases the underlying file and decompressor.
func (r *Reader) Close() error {
	if r.gz != nil {
		if err := r.gz.Close(); err != nil {
			r.f.Close()
			return err
		}
	}
	return r.f.Close()
}

// parse splits one line into a pair. An optional third field is
// ignored; a missing delimiter or an empty side is a format error
// reported with the offending line number and text.
func (r *Reader) parse(line string) (Pair, error) {
	fields := strings.Split(line, Delimiter)
	if len(fields) < 2 {
		return Pair{}, fmt.Errorf("line %d: missing delimiter %q in %q: %w",
			r.line, strings.TrimSpace(Delimiter), line, internalerr.ErrInvalidInput)
	}

	srcToks := strings.Fields(fields[0])
	trgToks := strings.Fields(fields[1])
	if len(srcToks) == 0 {
		return Pair{}, fmt.Errorf("line %d: empty source side in %q: %w",
			r.line, line, internalerr.ErrInvalidInput)
	}
	if len(trgToks) == 0 {
		return Pair{}, fmt.Errorf("line %d: empty target side in %q: %w",
			r.line, line, internalerr.ErrInvalidInput)
	}

	return Pair{
		Line:    r.line,
		Src:     r.vocab.InternAll(srcToks),
		Trg:     r.vocab.InternAll(trgToks),
		SrcText: strings.Join(srcToks, " "),
		TrgText: strings.Join(trgToks, " "),
	}, nil
}
