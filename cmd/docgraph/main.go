package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dgallion1/docgraph/internal/convert"
	"github.com/dgallion1/docgraph/internal/doctree"
	"github.com/dgallion1/docgraph/internal/images"
	"github.com/dgallion1/docgraph/internal/parser"
	"github.com/dgallion1/docgraph/internal/rebuild"
	"github.com/dgallion1/docgraph/internal/style"
	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"
)

var errNoInput = errors.New("input file is required")

func newLogger(cmd *cli.Command) *slog.Logger {
	level := slog.LevelWarn
	if cmd.Bool("verbose") {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// converter builds a Converter from the shared flags and reads the input.
func converter(cmd *cli.Command) (*convert.Converter, []byte, string, error) {
	input := cmd.Args().First()
	if input == "" {
		return nil, nil, "", errNoInput
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return nil, nil, "", fmt.Errorf("read input: %w", err)
	}

	vocab := style.Default()
	if path := cmd.String("vocabulary"); path != "" {
		if vocab, err = style.LoadVocabulary(path); err != nil {
			return nil, nil, "", err
		}
	}
	conv := convert.New(style.New(vocab), parser.Options{
		Logger:            newLogger(cmd),
		FallbackPdftotext: !cmd.Bool("no-pdftotext"),
	}, nil)
	return conv, data, filepath.Base(input), nil
}

// output opens the --out file, or stdout when unset.
func output(cmd *cli.Command) (io.WriteCloser, error) {
	path := cmd.String("out")
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output: %w", err)
	}
	return f, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func runConvert(_ context.Context, cmd *cli.Command) error {
	conv, data, name, err := converter(cmd)
	if err != nil {
		return err
	}
	res, err := conv.Convert(data, name, cmd.String("title"))
	if err != nil {
		return err
	}

	out, err := output(cmd)
	if err != nil {
		return err
	}
	defer out.Close()

	switch format := strings.ToLower(cmd.String("format")); format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*doctree.Result
			Counts map[string]int `json:"counts"`
		}{res, res.Counts()})
	case "csv":
		return writeTriplesCSV(out, res.Triples)
	default:
		return fmt.Errorf("unknown format %q (want json or csv)", format)
	}
}

func writeTriplesCSV(w io.Writer, triples []doctree.Triple) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"subject", "predicate", "object"}); err != nil {
		return err
	}
	for _, t := range triples {
		if err := cw.Write([]string{t.Subject, t.Predicate, t.Object}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func runRebuild(_ context.Context, cmd *cli.Command) error {
	conv, data, name, err := converter(cmd)
	if err != nil {
		return err
	}
	res, err := conv.Convert(data, name, cmd.String("title"))
	if err != nil {
		return err
	}

	path := cmd.String("out")
	if path == "" {
		path = strings.TrimSuffix(name, filepath.Ext(name)) + "_rebuilt.docx"
	}
	rep, err := rebuild.New(newLogger(cmd)).WriteFile(res, path)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "wrote %s: %d headings, %d paragraphs, %d tables, %d images (%d skipped)\n",
		path, rep.Headings, rep.Paragraphs, rep.Tables, rep.Images, rep.SkippedImages)
	return nil
}

func runImages(_ context.Context, cmd *cli.Command) error {
	conv, data, name, err := converter(cmd)
	if err != nil {
		return err
	}
	s, err := conv.Open(data, name, "")
	if err != nil {
		return err
	}
	imgs, err := images.Extract(s, cmd.String("dir"), newLogger(cmd))
	if err != nil {
		return err
	}
	for _, img := range imgs {
		fmt.Printf("%s\t%s\t%dx%d\t%s\n", img.Path, img.Format, img.Width, img.Height, img.Ref)
	}
	return nil
}

func runSlides(_ context.Context, cmd *cli.Command) error {
	input := cmd.Args().First()
	if input == "" {
		return errNoInput
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	deck, err := parser.OpenPPTX(data, filepath.Base(input), newLogger(cmd))
	if err != nil {
		return err
	}

	out, err := output(cmd)
	if err != nil {
		return err
	}
	defer out.Close()

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"title":  deck.Title(),
		"slides": deck.Slides(),
	})
}

func newApp() *cli.Command {
	vocabulary := &cli.StringFlag{
		Name:    "vocabulary",
		Usage:   "YAML style vocabulary file",
		Sources: cli.EnvVars("STYLE_VOCABULARY_FILE"),
	}
	title := &cli.StringFlag{Name: "title", Usage: "override the document title"}
	out := &cli.StringFlag{Name: "out", Aliases: []string{"o"}, Usage: "output file"}
	noPdftotext := &cli.BoolFlag{Name: "no-pdftotext", Usage: "do not fall back to pdftotext for PDFs"}

	return &cli.Command{
		Name:  "docgraph",
		Usage: "Reconstruct document structure as triples and a chapter catalog",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "debug logging"},
		},
		Commands: []*cli.Command{
			{
				Name:      "convert",
				Usage:     "Print triples, catalog and ambiguities for a document",
				ArgsUsage: "<file>",
				Action:    runConvert,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "json", Usage: "json or csv (triples only)"},
					out, title, vocabulary, noPdftotext,
				},
			},
			{
				Name:      "rebuild",
				Usage:     "Rebuild a document as .docx with numbered headings",
				ArgsUsage: "<file>",
				Action:    runRebuild,
				Flags:     []cli.Flag{out, title, vocabulary, noPdftotext},
			},
			{
				Name:      "images",
				Usage:     "Extract embedded images",
				ArgsUsage: "<file>",
				Action:    runImages,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "dir", Aliases: []string{"d"}, Value: "images", Usage: "output directory"},
					vocabulary, noPdftotext,
				},
			},
			{
				Name:      "slides",
				Usage:     "Dump the shapes of a .pptx deck as JSON",
				ArgsUsage: "<file.pptx>",
				Action:    runSlides,
				Flags:     []cli.Flag{out},
			},
		},
	}
}

func main() {
	if err := newApp().Run(context.Background(), os.Args); err != nil {
		slog.Error("docgraph failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
