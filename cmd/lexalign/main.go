package main

import (
	"context"
	"flag"
	"io"
	"log"
	"os"
	"time"

	"github.com/cognicore/lexalign/pkg/lexalign/config"
	"github.com/cognicore/lexalign/pkg/lexalign/em"
	"github.com/cognicore/lexalign/pkg/lexalign/params"
	paramsqlite "github.com/cognicore/lexalign/pkg/lexalign/params/sqlite"
	"github.com/cognicore/lexalign/pkg/lexalign/score"
	"github.com/cognicore/lexalign/pkg/lexalign/vocab"
)

func main() {
	defaults := config.Default()
	var (
		input            = flag.String("input", "", "Parallel corpus, one pair per line, sides separated by \" ||| \" (required)")
		reverse          = flag.Bool("reverse", false, "Swap source and target before training")
		iterations       = flag.Int("iterations", defaults.Iterations, "Number of EM iterations")
		favorDiagonal    = flag.Bool("favor-diagonal", false, "Bias the alignment prior toward the sentence diagonal")
		probAlignNull    = flag.Float64("prob-align-null", defaults.ProbAlignNull, "Prior probability of aligning to NULL")
		diagonalTension  = flag.Float64("diagonal-tension", defaults.DiagonalTension, "Sharpness of the diagonal prior")
		variationalBayes = flag.Bool("variational-bayes", false, "Normalize under a symmetric Dirichlet prior")
		alpha            = flag.Float64("alpha", defaults.Alpha, "Dirichlet concentration for variational Bayes")
		noNullWord       = flag.Bool("no-null-word", false, "Disable the synthetic NULL source word")
		outputParameters = flag.Bool("output-parameters", false, "Dump the pruned lexical table instead of alignments")
		beamThreshold    = flag.Float64("beam-threshold", defaults.BeamThreshold, "log10 pruning threshold relative to the per-source maximum")
		hideAlignments   = flag.Bool("hide-training-alignments", false, "Suppress alignment output on the final pass")
		testset          = flag.String("testset", "", "Optional held-out file to score after training")
		noAddViterbi     = flag.Bool("no-add-viterbi", false, "Skip the Viterbi rescue during the parameter dump")
		configPath       = flag.String("config", "", "Optional config file (key=value, or YAML for .yaml/.yml)")
		paramsDB         = flag.String("params-db", "", "Optional SQLite database to persist the pruned table to")
		workers          = flag.Int("workers", defaults.Workers, "E-step workers on non-final passes (0 = all CPUs)")
	)
	flag.Parse()

	opts := defaults
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			log.Fatalf("load config: %v", err)
		}
		opts = loaded
	}
	// Flags given explicitly on the command line override the config file.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "input":
			opts.Input = *input
		case "reverse":
			opts.Reverse = *reverse
		case "iterations":
			opts.Iterations = *iterations
		case "favor-diagonal":
			opts.FavorDiagonal = *favorDiagonal
		case "prob-align-null":
			opts.ProbAlignNull = *probAlignNull
		case "diagonal-tension":
			opts.DiagonalTension = *diagonalTension
		case "variational-bayes":
			opts.VariationalBayes = *variationalBayes
		case "alpha":
			opts.Alpha = *alpha
		case "no-null-word":
			opts.NoNullWord = *noNullWord
		case "output-parameters":
			opts.OutputParameters = *outputParameters
		case "beam-threshold":
			opts.BeamThreshold = *beamThreshold
		case "hide-training-alignments":
			opts.HideTrainingAlignments = *hideAlignments
		case "testset":
			opts.Testset = *testset
		case "no-add-viterbi":
			opts.NoAddViterbi = *noAddViterbi
		case "params-db":
			opts.ParamsDB = *paramsDB
		case "workers":
			opts.Workers = *workers
		}
	})

	if opts.Input == "" {
		flag.Usage()
		log.Fatal("-input required")
	}

	cfg := em.Config{
		Iterations:       opts.Iterations,
		Reverse:          opts.Reverse,
		FavorDiagonal:    opts.FavorDiagonal,
		ProbAlignNull:    opts.ProbAlignNull,
		DiagonalTension:  opts.DiagonalTension,
		VariationalBayes: opts.VariationalBayes,
		Alpha:            opts.Alpha,
		UseNull:          !opts.NoNullWord,
		Workers:          opts.Workers,
	}

	v := vocab.New()
	trainer, err := em.NewTrainer(cfg, v)
	if err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var alignOut io.Writer
	if !opts.HideTrainingAlignments && !opts.OutputParameters {
		alignOut = os.Stdout
	}
	if err := trainer.Train(opts.Input, alignOut); err != nil {
		log.Fatalf("training failed: %v", err)
	}

	if opts.OutputParameters {
		if err := trainer.DumpParameters(os.Stdout, opts.BeamThreshold, !opts.NoAddViterbi); err != nil {
			log.Fatalf("dump parameters: %v", err)
		}
	}

	if opts.ParamsDB != "" {
		persistParams(trainer, opts)
	}

	if opts.Testset != "" {
		scorer := &score.Scorer{
			Model:                trainer.Model(),
			Vocab:                v,
			Reverse:              opts.Reverse,
			MeanSrclenMultiplier: trainer.MeanSrclenMultiplier(),
			EmitAlignments:       true,
		}
		total, err := scorer.ScoreFile(opts.Testset, os.Stdout)
		if err != nil {
			log.Fatalf("score testset: %v", err)
		}
		log.Printf("total log prob %f", total)
	}
}

func persistParams(trainer *em.Trainer, opts config.Options) {
	ctx := context.Background()
	st, err := paramsqlite.Open(ctx, opts.ParamsDB)
	if err != nil {
		log.Fatalf("open params db: %v", err)
	}
	defer st.Close()

	now := time.Now()
	run := params.Run{
		ID:         params.NewIDSource().NewRunID(now),
		Input:      opts.Input,
		Iterations: opts.Iterations,
		CreatedAt:  now,
	}
	if err := st.CreateRun(ctx, run); err != nil {
		log.Fatalf("create run: %v", err)
	}

	var entries []params.Entry
	trainer.EachPrunedParam(opts.BeamThreshold, !opts.NoAddViterbi, func(src, trg string, logProb float64) error {
		entries = append(entries, params.Entry{Src: src, Trg: trg, LogProb: logProb})
		return nil
	})
	if err := st.PutEntries(ctx, run.ID, entries); err != nil {
		log.Fatalf("persist parameters: %v", err)
	}
	log.Printf("persisted %d entries as run %s", len(entries), run.ID)
}
