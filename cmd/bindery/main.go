// Command bindery builds an EPUB from a YAML book description.
//
// Usage:
//
//	bindery [-o out.epub] [-dir outdir] [-watch] [-ocr] [-log dev|prod] [-v] book.yaml
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/tsawler/bindery"
	"github.com/tsawler/bindery/ocr"
)

type request struct {
	bookPath string
	zipPath  string
	dirPath  string
	watch    bool
	ocr      bool
	logMode  string
	verbose  bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, errOut io.Writer) (*request, error) {
	flags := flag.NewFlagSet("bindery", flag.ContinueOnError)
	flags.SetOutput(errOut)
	flags.Usage = func() {
		fmt.Fprint(flags.Output(), `
Usage:
   bindery [-o out.epub] [-dir outdir] [-watch] [-ocr] [-log dev|prod] [-v] book.yaml

`)
		flags.PrintDefaults()
	}

	req := &request{}
	flags.StringVar(&req.zipPath, "o", "", "EPUB file to write (default: book file name with .epub)")
	flags.StringVar(&req.dirPath, "dir", "", "Write an unpacked directory instead of an archive")
	flags.BoolVar(&req.watch, "watch", false, "Rebuild whenever a file next to the book file changes")
	flags.BoolVar(&req.ocr, "ocr", false, "Use OCR to derive the cover alt text (needs -tags ocr)")
	flags.StringVar(&req.logMode, "log", "dev", "Log format: dev or prod")
	flags.BoolVar(&req.verbose, "v", false, "Log debug events")

	if err := flags.Parse(args); err != nil {
		return nil, err
	}
	if flags.NArg() != 1 {
		flags.Usage()
		return nil, errors.New("exactly one book file is required")
	}
	if req.zipPath != "" && req.dirPath != "" {
		return nil, errors.New("-o and -dir are mutually exclusive")
	}

	req.bookPath = flags.Arg(0)
	if req.zipPath == "" && req.dirPath == "" {
		req.zipPath = strings.TrimSuffix(req.bookPath, filepath.Ext(req.bookPath)) + ".epub"
	}
	return req, nil
}

func newLogger(mode string, verbose bool) (*zap.Logger, error) {
	var cfg zap.Config
	switch strings.ToLower(mode) {
	case "prod", "production":
		cfg = zap.NewProductionConfig()
	default:
		cfg = zap.NewDevelopmentConfig()
	}
	level := zap.InfoLevel
	if verbose {
		level = zap.DebugLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(level)
	return cfg.Build()
}

func run(args []string, out, errOut io.Writer) int {
	req, err := parseFlags(args, errOut)
	if errors.Is(err, flag.ErrHelp) {
		return 0
	}
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 2
	}

	log, err := newLogger(req.logMode, req.verbose)
	if err != nil {
		fmt.Fprintln(errOut, err)
		return 1
	}
	defer func() { _ = log.Sync() }()

	opts := []bindery.Option{bindery.WithLogger(log)}
	if req.ocr {
		client, err := ocr.New()
		if err != nil {
			log.Warn("OCR unavailable, cover alt text falls back to the title", zap.Error(err))
		} else {
			defer client.Close()
			opts = append(opts, bindery.WithRecognizer(client))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	build := func() error { return buildOnce(req, out, log, opts) }
	if err := build(); err != nil {
		log.Error("build failed", zap.String("book", req.bookPath), zap.Error(err))
		if !req.watch {
			return 1
		}
	}
	if !req.watch {
		return 0
	}

	if err := watch(ctx, filepath.Dir(req.bookPath), req.outputs(), log, build); err != nil {
		log.Error("watch failed", zap.Error(err))
		return 1
	}
	return 0
}

// outputs lists the paths the build writes, so the watcher can ignore them.
func (r *request) outputs() []string {
	var paths []string
	for _, p := range []string{r.zipPath, r.dirPath} {
		if p == "" {
			continue
		}
		if abs, err := filepath.Abs(p); err == nil {
			paths = append(paths, abs)
		}
	}
	return paths
}

func buildOnce(req *request, out io.Writer, log *zap.Logger, opts []bindery.Option) error {
	book, err := LoadBook(req.bookPath)
	if err != nil {
		return err
	}
	b, err := book.Build(filepath.Dir(req.bookPath), opts...)
	if err != nil {
		return err
	}

	if req.dirPath != "" {
		err = b.WriteDir(req.dirPath)
	} else {
		err = b.WriteZip(req.zipPath)
	}
	if err != nil {
		return err
	}

	for _, w := range b.Warnings() {
		log.Warn(w.Message)
	}
	log.Info("book written",
		zap.String("book", req.bookPath),
		zap.String("output", req.zipPath+req.dirPath),
		zap.Int("sections", b.SectionCount()))

	if isTerminal(out) {
		fmt.Fprintln(out, b.Outline())
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
