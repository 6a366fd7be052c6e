package bindery

import (
	"time"

	"go.uber.org/zap"

	"github.com/tsawler/bindery/resource"
)

// Recognizer extracts text from an image file. *ocr.Client satisfies it.
type Recognizer interface {
	RecognizeFile(path string) (string, error)
}

// Options holds the configuration of a Builder.
type Options struct {
	// Logger receives debug events for every mutation and render.
	Logger *zap.Logger

	// Stater answers existence checks for resource sources.
	Stater resource.Stater

	// Now stamps the modification date of the package.
	Now func() time.Time

	// Recognizer, when set, reads cover images to produce their alt text.
	Recognizer Recognizer

	// Language is the initial book language (BCP 47).
	Language string

	// Identifier is the initial unique identifier. Empty means a random
	// urn:uuid identifier.
	Identifier string

	// Generator is written as the package's generator metadata.
	Generator string
}

// DefaultOptions returns the options used when none are given.
func DefaultOptions() Options {
	return Options{
		Logger:    zap.NewNop(),
		Stater:    resource.OSStater{},
		Now:       time.Now,
		Language:  "en",
		Generator: "bindery",
	}
}

// clone returns a copy of o with nil fields restored to their defaults.
func (o Options) clone() Options {
	d := DefaultOptions()
	out := o
	if out.Logger == nil {
		out.Logger = d.Logger
	}
	if out.Stater == nil {
		out.Stater = d.Stater
	}
	if out.Now == nil {
		out.Now = d.Now
	}
	return out
}

// Option configures a Builder.
type Option func(*Options)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Options) { o.Logger = l }
}

// WithStater replaces the filesystem existence check.
func WithStater(s resource.Stater) Option {
	return func(o *Options) { o.Stater = s }
}

// WithClock sets the function that supplies the modification time.
func WithClock(now func() time.Time) Option {
	return func(o *Options) { o.Now = now }
}

// WithRecognizer enables OCR alt text for cover images.
func WithRecognizer(r Recognizer) Option {
	return func(o *Options) { o.Recognizer = r }
}

// WithLanguage sets the initial book language.
func WithLanguage(lang string) Option {
	return func(o *Options) { o.Language = lang }
}

// WithIdentifier sets the initial unique identifier.
func WithIdentifier(id string) Option {
	return func(o *Options) { o.Identifier = id }
}

// WithGenerator sets the generator name written to the package.
func WithGenerator(name string) Option {
	return func(o *Options) { o.Generator = name }
}
