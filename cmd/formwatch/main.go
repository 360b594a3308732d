package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/formwatch/formwatch/config"
	"github.com/formwatch/formwatch/internal/classify"
	"github.com/formwatch/formwatch/internal/fingerprint"
	"github.com/formwatch/formwatch/internal/identity"
	"github.com/formwatch/formwatch/internal/oracle"
	"github.com/formwatch/formwatch/internal/pipeline"
	"github.com/formwatch/formwatch/internal/relocate"
	"github.com/formwatch/formwatch/internal/telemetry"
)

func main() {
	var cfgPath string

	root := &cobra.Command{
		Use:           "formwatch",
		Short:         "Detect and classify changes in published document collections",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (yaml)")

	root.AddCommand(compareCommand(&cfgPath), matchCommand(&cfgPath), relocateCommand(&cfgPath))

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func setup(cfgPath string) (*config.Config, *slog.Logger, *telemetry.Metrics, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, err
	}

	level := slog.LevelInfo
	if cfg.General.Debug {
		level = slog.LevelDebug
	} else if err := level.UnmarshalText([]byte(cfg.General.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var metrics *telemetry.Metrics
	if cfg.Telemetry.Enabled {
		metrics = telemetry.New()
		go func() {
			if err := metrics.ListenAndServe(cfg.Telemetry.MetricsPort); err != nil {
				logger.Error("metrics listener stopped", "error", err)
			}
		}()
	}
	return cfg, logger, metrics, nil
}

func compareCommand(cfgPath *string) *cobra.Command {
	var priorRaw, priorText, nextRaw, nextText string
	var priorNumber, priorTitle, nextTitle string
	var pageSep string

	cmd := &cobra.Command{
		Use:   "compare",
		Short: "Fingerprint a snapshot and classify the change against a prior version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, metrics, err := setup(*cfgPath)
			if err != nil {
				return err
			}

			classifier := classify.New(classify.Config{
				PageSimilarityThreshold: cfg.Classifier.PageSimilarityThreshold,
				DocSimilarityThreshold:  cfg.Classifier.DocSimilarityThreshold,
				DiffPreviewLines:        cfg.Classifier.DiffPreviewLines,
			}, logger)
			matcher, err := identity.New(matcherConfig(cfg), logger)
			if err != nil {
				return err
			}

			snap, err := loadSnapshot(nextRaw, nextText, pageSep)
			if err != nil {
				return err
			}

			var prior *pipeline.PriorVersion
			if priorRaw != "" || priorText != "" {
				priorSnap, err := loadSnapshot(priorRaw, priorText, pageSep)
				if err != nil {
					return err
				}
				prior = &pipeline.PriorVersion{
					Fingerprint: fingerprint.Compute(priorSnap.Raw, priorSnap.Text, priorSnap.PageTexts),
					Text:        priorSnap.Text,
					PageTexts:   priorSnap.PageTexts,
					FormNumber:  priorNumber,
					Title:       priorTitle,
				}
			}

			p := pipeline.New(classifier, matcher, metrics, logger)
			out := p.Evaluate(cmd.Context(), snap, prior, nextTitle)
			return printJSON(out)
		},
	}

	cmd.Flags().StringVar(&priorRaw, "prior-raw", "", "path to the prior raw document")
	cmd.Flags().StringVar(&priorText, "prior-text", "", "path to the prior extracted text")
	cmd.Flags().StringVar(&nextRaw, "raw", "", "path to the new raw document")
	cmd.Flags().StringVar(&nextText, "text", "", "path to the new extracted text")
	cmd.Flags().StringVar(&priorNumber, "prior-form-number", "", "recorded form number of the prior version")
	cmd.Flags().StringVar(&priorTitle, "prior-title", "", "recorded title of the prior version")
	cmd.Flags().StringVar(&nextTitle, "title", "", "title of the new version")
	cmd.Flags().StringVar(&pageSep, "page-separator", "\f", "separator splitting text files into pages")
	return cmd
}

func matchCommand(cfgPath *string) *cobra.Command {
	var oldText, newText string
	var oldNumber, newNumber, oldTitle, newTitle string
	var useOracle bool

	cmd := &cobra.Command{
		Use:   "match",
		Short: "Decide whether two text versions are the same logical form",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, metrics, err := setup(*cfgPath)
			if err != nil {
				return err
			}
			matcher, err := identity.New(matcherConfig(cfg), logger)
			if err != nil {
				return err
			}
			if useOracle {
				matcher = matcher.WithOracle(oracle.NewBleve(logger))
			}

			oldData, err := os.ReadFile(oldText)
			if err != nil {
				return fmt.Errorf("read old text: %w", err)
			}
			newData, err := os.ReadFile(newText)
			if err != nil {
				return fmt.Errorf("read new text: %w", err)
			}

			match := matcher.Match(cmd.Context(), identity.Input{
				OldText:       string(oldData),
				NewText:       string(newData),
				OldFormNumber: oldNumber,
				NewFormNumber: newNumber,
				OldTitle:      oldTitle,
				NewTitle:      newTitle,
			})
			metrics.ObserveIdentityMatch(string(match.Kind))
			return printJSON(match)
		},
	}

	cmd.Flags().StringVar(&oldText, "old-text", "", "path to the prior extracted text")
	cmd.Flags().StringVar(&newText, "new-text", "", "path to the new extracted text")
	cmd.Flags().StringVar(&oldNumber, "old-form-number", "", "known prior form number")
	cmd.Flags().StringVar(&newNumber, "new-form-number", "", "known new form number")
	cmd.Flags().StringVar(&oldTitle, "old-title", "", "known prior title")
	cmd.Flags().StringVar(&newTitle, "new-title", "", "known new title")
	cmd.Flags().BoolVar(&useOracle, "oracle", false, "consult the index-backed similarity oracle for uncertain matches")
	_ = cmd.MarkFlagRequired("old-text")
	_ = cmd.MarkFlagRequired("new-text")
	return cmd
}

func relocateCommand(cfgPath *string) *cobra.Command {
	var formNumber, title, parentPage string

	cmd := &cobra.Command{
		Use:   "relocate <failed-url>",
		Short: "Crawl near a dead document link looking for where it moved",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, metrics, err := setup(*cfgPath)
			if err != nil {
				return err
			}

			crawler := relocate.New(relocate.Config{
				MaxPages:                cfg.Crawler.MaxPages,
				MaxDepth:                cfg.Crawler.MaxDepth,
				RequestTimeout:          cfg.Crawler.RequestTimeout,
				PolitenessDelay:         cfg.Crawler.PolitenessDelay,
				UserAgent:               cfg.Crawler.UserAgent,
				FilenameSimilarityFloor: cfg.Crawler.FilenameSimilarityFloor,
				Workers:                 cfg.Crawler.Workers,
			}, logger, metrics)

			result, err := crawler.FindRelocated(cmd.Context(), args[0], formNumber, title, parentPage)
			if err != nil {
				return err
			}
			return printJSON(result)
		},
	}

	cmd.Flags().StringVar(&formNumber, "form-number", "", "form number of the missing document")
	cmd.Flags().StringVar(&title, "title", "", "title of the missing document")
	cmd.Flags().StringVar(&parentPage, "parent-page", "", "page the dead link was found on")
	return cmd
}

func matcherConfig(cfg *config.Config) identity.Config {
	return identity.Config{
		TitleSimilarityThreshold: cfg.Matcher.TitleSimilarityThreshold,
		HighSimilarityThreshold:  cfg.Matcher.HighSimilarityThreshold,
		LowSimilarityThreshold:   cfg.Matcher.LowSimilarityThreshold,
		FormNumberPatterns:       cfg.Matcher.FormNumberPatterns,
		OracleTimeout:            cfg.Matcher.OracleTimeout,
		Confidence: identity.ConfidenceWeights{
			TitleAndNumber: cfg.Matcher.Confidence.TitleAndNumber,
			TitleOnly:      cfg.Matcher.Confidence.TitleOnly,
			NumberMatch:    cfg.Matcher.Confidence.NumberMatch,
			Renamed:        cfg.Matcher.Confidence.Renamed,
			NewForm:        cfg.Matcher.Confidence.NewForm,
		},
	}
}

// loadSnapshot reads a raw document and/or its extracted text. Either side
// may be absent; page texts come from splitting the text file on the
// separator when one is configured.
func loadSnapshot(rawPath, textPath, pageSep string) (pipeline.Snapshot, error) {
	var snap pipeline.Snapshot
	if rawPath != "" {
		raw, err := os.ReadFile(rawPath)
		if err != nil {
			return snap, fmt.Errorf("read raw document: %w", err)
		}
		snap.Raw = raw
	}
	if textPath != "" {
		text, err := os.ReadFile(textPath)
		if err != nil {
			return snap, fmt.Errorf("read text: %w", err)
		}
		snap.Text = string(text)
		if pageSep != "" && strings.Contains(snap.Text, pageSep) {
			snap.PageTexts = strings.Split(snap.Text, pageSep)
		}
	}
	if snap.Raw == nil && snap.Text == "" {
		return snap, fmt.Errorf("nothing to evaluate: provide --raw and/or --text")
	}
	return snap, nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
