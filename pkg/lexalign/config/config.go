// Package config loads trainer options from a file. Two formats are
// accepted: "key=value" lines, and YAML when the path ends in .yaml
// or .yml. Keys are the long option names of the CLI with underscores
// in place of hyphens (favor_diagonal for -favor-diagonal).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/lexalign/pkg/lexalign/internalerr"
)

// Options mirrors the full CLI surface of the trainer.
type Options struct {
	Input                  string  `yaml:"input"`
	Reverse                bool    `yaml:"reverse"`
	Iterations             int     `yaml:"iterations"`
	FavorDiagonal          bool    `yaml:"favor_diagonal"`
	ProbAlignNull          float64 `yaml:"prob_align_null"`
	DiagonalTension        float64 `yaml:"diagonal_tension"`
	VariationalBayes       bool    `yaml:"variational_bayes"`
	Alpha                  float64 `yaml:"alpha"`
	NoNullWord             bool    `yaml:"no_null_word"`
	OutputParameters       bool    `yaml:"output_parameters"`
	BeamThreshold          float64 `yaml:"beam_threshold"`
	HideTrainingAlignments bool    `yaml:"hide_training_alignments"`
	Testset                string  `yaml:"testset"`
	NoAddViterbi           bool    `yaml:"no_add_viterbi"`
	ParamsDB               string  `yaml:"params_db"`
	Workers                int     `yaml:"workers"`
}

// Default returns the stock option values.
func Default() Options {
	return Options{
		Iterations:      5,
		ProbAlignNull:   0.08,
		DiagonalTension: 4.0,
		Alpha:           0.01,
		BeamThreshold:   -4,
		Workers:         1,
	}
}

// Load reads options from path on top of the defaults.
func Load(path string) (Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read config %s: %w", path, err)
	}

	if strings.HasSuffix(path, ".yaml") || strings.HasSuffix(path, ".yml") {
		if err := yaml.Unmarshal(data, &opts); err != nil {
			return opts, fmt.Errorf("parse config %s: %w", path, err)
		}
		return opts, nil
	}

	if err := parseKeyValue(string(data), &opts); err != nil {
		return opts, fmt.Errorf("parse config %s: %w", path, err)
	}
	return opts, nil
}

func parseKeyValue(data string, opts *Options) error {
	for n, line := range strings.Split(data, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return fmt.Errorf("line %d: expected key=value, got %q: %w",
				n+1, line, internalerr.ErrInvalidConfig)
		}
		if err := opts.set(strings.TrimSpace(key), strings.TrimSpace(value)); err != nil {
			return fmt.Errorf("line %d: %w", n+1, err)
		}
	}
	return nil
}

func (o *Options) set(key, value string) error {
	var err error
	switch key {
	case "input":
		o.Input = value
	case "reverse":
		o.Reverse, err = parseBool(value)
	case "iterations":
		o.Iterations, err = strconv.Atoi(value)
	case "favor_diagonal":
		o.FavorDiagonal, err = parseBool(value)
	case "prob_align_null":
		o.ProbAlignNull, err = strconv.ParseFloat(value, 64)
	case "diagonal_tension":
		o.DiagonalTension, err = strconv.ParseFloat(value, 64)
	case "variational_bayes":
		o.VariationalBayes, err = parseBool(value)
	case "alpha":
		o.Alpha, err = strconv.ParseFloat(value, 64)
	case "no_null_word":
		o.NoNullWord, err = parseBool(value)
	case "output_parameters":
		o.OutputParameters, err = parseBool(value)
	case "beam_threshold":
		o.BeamThreshold, err = strconv.ParseFloat(value, 64)
	case "hide_training_alignments":
		o.HideTrainingAlignments, err = parseBool(value)
	case "testset":
		o.Testset = value
	case "no_add_viterbi":
		o.NoAddViterbi, err = parseBool(value)
	case "params_db":
		o.ParamsDB = value
	case "workers":
		o.Workers, err = strconv.Atoi(value)
	default:
		return fmt.Errorf("unknown option %q: %w", key, internalerr.ErrInvalidConfig)
	}
	if err != nil {
		return fmt.Errorf("option %q: %v: %w", key, err, internalerr.ErrInvalidConfig)
	}
	return nil
}

func parseBool(value string) (bool, error) {
	return strconv.ParseBool(value)
}
