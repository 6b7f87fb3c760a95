// Package em implements the batch Expectation-Maximization driver for
// the lexical translation model. Each pass re-reads the corpus,
// computes per-position alignment posteriors under the current table
// and prior, accumulates expected counts, and renormalizes the table
// at the epoch boundary. The final pass emits Viterbi alignments
// instead of accumulating.
package em

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"math"
	"runtime"
	"sync"

	"github.com/cognicore/lexalign/pkg/lexalign/corpus"
	"github.com/cognicore/lexalign/pkg/lexalign/internalerr"
	"github.com/cognicore/lexalign/pkg/lexalign/ttable"
	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

// Config holds the training options.
type Config struct {
	Iterations       int
	Reverse          bool
	FavorDiagonal    bool
	ProbAlignNull    float64
	DiagonalTension  float64
	VariationalBayes bool
	Alpha            float64
	UseNull          bool
	// Workers caps E-step parallelism on non-final passes. 0 means
	// one worker per available CPU; the final pass always runs
	// sequentially so alignment output order is exact.
	Workers int
}

// DefaultConfig returns the stock training configuration.
func DefaultConfig() Config {
	return Config{
		Iterations:      5,
		ProbAlignNull:   0.08,
		DiagonalTension: 4.0,
		Alpha:           0.01,
		UseNull:         true,
		Workers:         1,
	}
}

// Trainer runs EM over a parallel corpus and owns the learned table.
type Trainer struct {
	cfg   Config
	vocab *vocab.Vocab
	tt    *ttable.TTable
	model Model

	viterbi map[vocab.WordID]map[vocab.WordID]struct{}

	totLenRatio          float64
	meanSrclenMultiplier float64
	unnormedA            []float64
	history              []IterationStats
}

// IterationStats reports one completed pass.
type IterationStats struct {
	Iteration     int
	LogLikelihood float64
	CrossEntropy  float64
	Perplexity    float64
}

// NewTrainer validates cfg and creates a trainer sharing the given
// vocabulary.
func NewTrainer(cfg Config, v *vocab.Vocab) (*Trainer, error) {
	if cfg.Iterations < 1 {
		return nil, fmt.Errorf("iterations must be at least 1: %w", internalerr.ErrInvalidConfig)
	}
	if cfg.VariationalBayes && cfg.Alpha <= 0 {
		return nil, fmt.Errorf("variational Bayes requires alpha > 0, got %g: %w",
			cfg.Alpha, internalerr.ErrInvalidConfig)
	}
	if cfg.ProbAlignNull < 0 || cfg.ProbAlignNull >= 1 {
		return nil, fmt.Errorf("prob_align_null must be in [0, 1), got %g: %w",
			cfg.ProbAlignNull, internalerr.ErrInvalidConfig)
	}
	t := &Trainer{
		cfg:                  cfg,
		vocab:                v,
		tt:                   ttable.New(),
		viterbi:              make(map[vocab.WordID]map[vocab.WordID]struct{}),
		meanSrclenMultiplier: 1,
	}
	t.model = Model{
		TT:              t.tt,
		UseNull:         cfg.UseNull,
		FavorDiagonal:   cfg.FavorDiagonal,
		ProbAlignNull:   cfg.ProbAlignNull,
		DiagonalTension: cfg.DiagonalTension,
	}
	return t, nil
}

// TT returns the learned translation table.
func (t *Trainer) TT() *ttable.TTable { return t.tt }

// Vocab returns the shared vocabulary.
func (t *Trainer) Vocab() *vocab.Vocab { return t.vocab }

// MeanSrclenMultiplier returns the mean target/source length ratio
// fixed after the first pass.
func (t *Trainer) MeanSrclenMultiplier() float64 { return t.meanSrclenMultiplier }

// Stats returns per-iteration likelihood reports in pass order.
func (t *Trainer) Stats() []IterationStats { return t.history }

// iterStats aggregates one pass over the corpus.
type iterStats struct {
	likelihood  float64
	denom       float64
	lines       int
	totLenRatio float64
}

// Train runs the configured number of EM passes over the corpus at
// input. On the final pass, Viterbi alignments are written to
// alignments (one line per sentence, flushed per sentence) unless it
// is nil; the Viterbi selection set is populated either way.
func (t *Trainer) Train(input string, alignments io.Writer) error {
	for iter := 1; iter <= t.cfg.Iterations; iter++ {
		first := iter == 1
		final := iter == t.cfg.Iterations

		r, err := corpus.Open(input, t.vocab)
		if err != nil {
			return err
		}

		var st iterStats
		if final {
			st, err = t.finalPass(r, first, alignments)
		} else if w := t.workerCount(); w > 1 {
			st, err = t.parallelPass(r, first, w)
		} else {
			st, err = t.sequentialPass(r, first)
		}
		if cerr := r.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return err
		}

		if st.denom == 0 {
			return fmt.Errorf("empty corpus %s: %w", input, internalerr.ErrInvalidInput)
		}

		logBase2 := st.likelihood / math.Ln2
		crossEntropy := -logBase2 / st.denom
		perplexity := math.Pow(2, crossEntropy)
		log.Printf("iteration %d: sentences %d log likelihood %f cross entropy %f perplexity %f",
			iter, st.lines, st.likelihood, crossEntropy, perplexity)
		t.history = append(t.history, IterationStats{
			Iteration:     iter,
			LogLikelihood: st.likelihood,
			CrossEntropy:  crossEntropy,
			Perplexity:    perplexity,
		})

		if first {
			t.totLenRatio = st.totLenRatio
			t.meanSrclenMultiplier = st.totLenRatio / float64(st.lines)
		}

		if !final {
			if t.cfg.VariationalBayes {
				t.tt.NormalizeVB(t.cfg.Alpha)
			} else {
				t.tt.Normalize()
			}
		}
	}
	return nil
}

func (t *Trainer) workerCount() int {
	if t.cfg.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return t.cfg.Workers
}

// orient applies reverse mode to a parsed pair.
func (t *Trainer) orient(p corpus.Pair) (src, trg []vocab.WordID) {
	if t.cfg.Reverse {
		return p.Trg, p.Src
	}
	return p.Src, p.Trg
}

// Model returns the trained model view shared with the held-out
// scorer.
func (t *Trainer) Model() *Model {
	return &t.model
}

func (t *Trainer) positionProbs(src []vocab.WordID, f vocab.WordID, j, trgLen int, probs, unnormed []float64) float64 {
	return t.model.PositionProbs(src, f, j, trgLen, probs, unnormed)
}

// accumulatePair runs the E-step for one oriented pair, feeding
// expected counts to add. It returns the pair's log likelihood
// contribution, or the failing target position when the posterior
// mass vanished.
func (t *Trainer) accumulatePair(src, trg []vocab.WordID, probs, unnormed []float64,
	add func(e, f vocab.WordID, delta float64)) (float64, int, bool) {
	srcLen := len(src)
	var likelihood float64
	for j, f := range trg {
		sum := t.positionProbs(src, f, j, len(trg), probs, unnormed)
		if sum == 0 {
			return likelihood, j, false
		}
		likelihood += math.Log(sum)
		if t.cfg.UseNull {
			add(vocab.Null, f, probs[0]/sum)
		}
		for i := 1; i <= srcLen; i++ {
			add(src[i-1], f, probs[i]/sum)
		}
	}
	return likelihood, 0, true
}

// grow ensures the trainer scratch buffers cover a source length.
func grow(buf []float64, n int) []float64 {
	if n <= len(buf) {
		return buf
	}
	return make([]float64, n)
}

// sequentialPass is one non-final E-step over the whole corpus.
func (t *Trainer) sequentialPass(r *corpus.Reader, first bool) (iterStats, error) {
	var st iterStats
	var probs []float64
	for r.Scan() {
		p := r.Pair()
		src, trg := t.orient(p)
		st.lines++
		st.denom += float64(len(trg))
		if first {
			st.totLenRatio += float64(len(trg)) / float64(len(src))
		}

		t.unnormedA = grow(t.unnormedA, len(src))
		probs = grow(probs, len(src)+1)

		ll, badJ, ok := t.accumulatePair(src, trg, probs, t.unnormedA, t.tt.Increment)
		if !ok {
			return st, zeroMassErr(p.Line, badJ)
		}
		st.likelihood += ll
	}
	return st, r.Err()
}

// workerState is one shard's accumulator during a parallel pass.
type workerState struct {
	counts      *ttable.Counts
	likelihood  float64
	denom       float64
	lines       int
	totLenRatio float64
	err         error
}

// parallelPass shards sentences round-robin across workers, each with
// a private count buffer, and merges the buffers sequentially at the
// end of the epoch. The shared table is quiescent throughout the pass.
func (t *Trainer) parallelPass(r *corpus.Reader, first bool, workers int) (iterStats, error) {
	chans := make([]chan corpus.Pair, workers)
	locals := make([]*workerState, workers)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		ch := make(chan corpus.Pair, 128)
		ws := &workerState{counts: ttable.NewCounts()}
		chans[w] = ch
		locals[w] = ws
		wg.Add(1)
		go func() {
			defer wg.Done()
			var probs, unnormed []float64
			for p := range ch {
				if ws.err != nil {
					continue
				}
				src, trg := t.orient(p)
				ws.lines++
				ws.denom += float64(len(trg))
				if first {
					ws.totLenRatio += float64(len(trg)) / float64(len(src))
				}
				probs = grow(probs, len(src)+1)
				unnormed = grow(unnormed, len(src))
				ll, badJ, ok := t.accumulatePair(src, trg, probs, unnormed, ws.counts.Add)
				if !ok {
					ws.err = zeroMassErr(p.Line, badJ)
					continue
				}
				ws.likelihood += ll
			}
		}()
	}

	n := 0
	for r.Scan() {
		chans[n%workers] <- r.Pair()
		n++
	}
	for _, ch := range chans {
		close(ch)
	}
	wg.Wait()

	if err := r.Err(); err != nil {
		return iterStats{}, err
	}

	var st iterStats
	for _, ws := range locals {
		if ws.err != nil {
			return st, ws.err
		}
		st.likelihood += ws.likelihood
		st.denom += ws.denom
		st.lines += ws.lines
		st.totLenRatio += ws.totLenRatio
		t.tt.Absorb(ws.counts)
	}
	return st, nil
}

// finalPass sweeps the corpus once more without accumulating: for
// each target position it takes the argmax alignment, records the
// winning (source word, target word) pair in the Viterbi set, and
// writes the alignment line. Ties keep the earliest candidate, with
// NULL seeded first when enabled; NULL alignments produce no token.
func (t *Trainer) finalPass(r *corpus.Reader, first bool, out io.Writer) (iterStats, error) {
	var st iterStats
	var probs []float64
	var bw *bufio.Writer
	if out != nil {
		bw = bufio.NewWriter(out)
	}

	for r.Scan() {
		p := r.Pair()
		src, trg := t.orient(p)
		st.lines++
		st.denom += float64(len(trg))
		if first {
			st.totLenRatio += float64(len(trg)) / float64(len(src))
		}

		t.unnormedA = grow(t.unnormedA, len(src))
		probs = grow(probs, len(src)+1)

		firstToken := true
		for j, f := range trg {
			sum := t.positionProbs(src, f, j, len(trg), probs, t.unnormedA)
			if sum == 0 {
				return st, zeroMassErr(p.Line, j)
			}
			st.likelihood += math.Log(sum)

			maxIndex := 0
			maxP := probs[0]
			for i := 1; i <= len(src); i++ {
				if probs[i] > maxP {
					maxIndex = i
					maxP = probs[i]
				}
			}
			if maxIndex == 0 {
				continue
			}
			t.recordViterbi(src[maxIndex-1], f)
			if bw != nil {
				if !firstToken {
					bw.WriteByte(' ')
				}
				fmt.Fprintf(bw, "%d-%d", maxIndex-1, j)
				firstToken = false
			}
		}
		if bw != nil {
			bw.WriteByte('\n')
			if err := bw.Flush(); err != nil {
				return st, fmt.Errorf("write alignments: %w", err)
			}
		}
	}
	return st, r.Err()
}

func (t *Trainer) recordViterbi(e, f vocab.WordID) {
	set := t.viterbi[e]
	if set == nil {
		set = make(map[vocab.WordID]struct{}, 4)
		t.viterbi[e] = set
	}
	set[f] = struct{}{}
}

// WasViterbi reports whether some final-pass position selected f as
// the argmax translation of e.
func (t *Trainer) WasViterbi(e, f vocab.WordID) bool {
	_, ok := t.viterbi[e][f]
	return ok
}

func zeroMassErr(line, j int) error {
	return fmt.Errorf("line %d: zero posterior mass at target position %d: %w",
		line, j, internalerr.ErrInvalidInput)
}
