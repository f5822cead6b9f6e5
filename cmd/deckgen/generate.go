package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"deckforge/app/internal/app/bootstrap"
	"deckforge/app/internal/config"
	"deckforge/app/internal/deck"
	applog "deckforge/app/internal/log"
	"deckforge/app/internal/render"
)

type generateOptions struct {
	Topic           string
	SlideCount      int
	Subtitle        string
	Filename        string
	OutDir          string
	FooterText      string
	HeaderImagePath string
	DocumentPath    string
	PromptsPath     string
	TwoPass         bool
	Concurrency     int
}

func newGenerateCmd() *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a deck and write the markdown and HTML files",
		Example: `  deckgen generate --topic "Photosynthesis" --slides 5
  deckgen generate -t "Quarterly review" -n 8 --document report.pdf --header-image logo.png --footer "ACME Corp"`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_ = godotenv.Load()

			cfg, err := config.Load()
			if err != nil {
				return eris.Wrap(err, "loading configuration")
			}

			level, _ := cmd.Flags().GetString("log-level")
			if level == "" {
				level = cfg.LogLevel
			}
			logger, err := applog.NewLogger(level)
			if err != nil {
				return err
			}
			logger.SetOutput(cmd.ErrOrStderr())

			applyOverrides(cfg, opts)

			completers, err := bootstrap.NewCompleters(cfg, logger)
			if err != nil {
				return err
			}

			return runGenerate(cmd.Context(), cfg, logger, completers, opts, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.Topic, "topic", "t", "", "Presentation topic (required)")
	flags.IntVarP(&opts.SlideCount, "slides", "n", 5, "Number of content slides")
	flags.StringVar(&opts.Subtitle, "subtitle", "", "Subtitle for the title slide")
	flags.StringVarP(&opts.Filename, "filename", "f", "presentation", "Output file stem")
	flags.StringVarP(&opts.OutDir, "out", "o", ".", "Directory the deck files are written to")
	flags.StringVar(&opts.FooterText, "footer", "", "Text shown in every slide footer")
	flags.StringVar(&opts.HeaderImagePath, "header-image", "", "Image shown in every slide header")
	flags.StringVar(&opts.DocumentPath, "document", "", "Reference document (PDF, XLSX, HTML or text)")
	flags.StringVar(&opts.PromptsPath, "prompts", "", "TOML file overriding the built-in prompts")
	flags.BoolVar(&opts.TwoPass, "two-pass", false, "Draft a detailed outline before choosing slide titles")
	flags.IntVar(&opts.Concurrency, "concurrency", 0, "Slides generated in parallel (overrides LLM_CONCURRENCY)")
	_ = cmd.MarkFlagRequired("topic")

	return cmd
}

func applyOverrides(cfg *config.Config, opts generateOptions) {
	if opts.PromptsPath != "" {
		cfg.Generation.PromptsPath = opts.PromptsPath
	}
	if opts.TwoPass {
		cfg.Generation.TwoPassOutline = true
	}
	if opts.Concurrency > 0 {
		cfg.Generation.Concurrency = opts.Concurrency
	}
}

func runGenerate(ctx context.Context, cfg *config.Config, logger *logrus.Logger, completers bootstrap.Completers, opts generateOptions, out io.Writer) error {
	pipeline, err := bootstrap.BuildPipeline(cfg, logger, completers)
	if err != nil {
		return err
	}

	req := deck.Request{
		Topic:      opts.Topic,
		SlideCount: opts.SlideCount,
		Subtitle:   opts.Subtitle,
		Filename:   render.FilenameStem(opts.Filename),
		FooterText: opts.FooterText,
	}

	if req.HeaderImage, err = readOptionalFile(opts.HeaderImagePath); err != nil {
		return eris.Wrap(err, "reading header image")
	}
	if req.Document, err = readOptionalFile(opts.DocumentPath); err != nil {
		return eris.Wrap(err, "reading reference document")
	}

	generated, err := pipeline.Generate(ctx, req)
	if err != nil {
		return eris.Wrapf(err, "generating deck for %q", strings.TrimSpace(opts.Topic))
	}

	if err := os.MkdirAll(opts.OutDir, 0o755); err != nil {
		return eris.Wrapf(err, "creating output directory %s", opts.OutDir)
	}

	artifacts := []render.Artifact{
		render.MarkdownArtifact(generated.Filename, generated.Markdown),
		render.HTMLArtifact(generated.Filename, generated.HTML),
	}
	for _, artifact := range artifacts {
		path := filepath.Join(opts.OutDir, artifact.Filename)
		if err := os.WriteFile(path, artifact.Data, 0o644); err != nil {
			return eris.Wrapf(err, "writing %s", path)
		}
		fmt.Fprintf(out, "wrote %s\n", path)
	}

	for _, warning := range generated.Warnings {
		fmt.Fprintf(out, "warning: %s\n", warning)
	}

	return nil
}

func readOptionalFile(path string) ([]byte, error) {
	if strings.TrimSpace(path) == "" {
		return nil, nil
	}
	return os.ReadFile(path)
}
