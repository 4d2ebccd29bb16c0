// Package registry loads the fixed set of pre-trained classifiers from the
// resource directory. Loading tolerates missing or corrupt artifacts and
// reports them as diagnostics instead of failing.
package registry

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"heartguard/ml"
	"heartguard/patient"
)

// Entry is one row of the fixed model table.
type Entry struct {
	Name string
	Stem string
}

// Entries is the model table in display and voting order.
var Entries = []Entry{
	{Name: "Decision Tree", Stem: "DecisionTree"},
	{Name: "Logistic Regression", Stem: "LogisticRegression"},
	{Name: "Random Forest", Stem: "GridRandomForest"},
	{Name: "Support Vector Machine", Stem: "SVM"},
}

const DefaultExt = ".json"

// Diagnostic explains why a model could not be loaded.
type Diagnostic struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// Model is a successfully loaded classifier.
type Model struct {
	Name       string
	Classifier ml.Classifier
}

// Set is the immutable result of a load.
type Set struct {
	models      []Model
	diagnostics []Diagnostic
}

func NewSet(models []Model, diagnostics []Diagnostic) *Set {
	return &Set{
		models:      append([]Model(nil), models...),
		diagnostics: append([]Diagnostic(nil), diagnostics...),
	}
}

// Models returns the loaded classifiers in Entries order.
func (s *Set) Models() []Model {
	return append([]Model(nil), s.models...)
}

func (s *Set) Diagnostics() []Diagnostic {
	return append([]Diagnostic(nil), s.diagnostics...)
}

func (s *Set) Len() int { return len(s.models) }

func (s *Set) Empty() bool { return len(s.models) == 0 }

// Close releases classifiers that hold runtime resources, such as ONNX
// sessions. The set must not be used afterwards.
func (s *Set) Close() error {
	var errs []error
	for _, m := range s.models {
		if c, ok := m.Classifier.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", m.Name, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (s *Set) Names() []string {
	names := make([]string, len(s.models))
	for i, m := range s.models {
		names[i] = m.Name
	}
	return names
}

// Loader resolves and decodes the artifacts listed in Entries.
type Loader struct {
	Dir string
	// Files overrides the artifact file name per model name. Entries without an
	// override use Stem + DefaultExt.
	Files  map[string]string
	Logger *zap.Logger

	open func(path string, features []string) (ml.Classifier, error)
}

func NewLoader(dir string, files map[string]string, logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{Dir: dir, Files: files, Logger: logger, open: ml.LoadModel}
}

// Path returns the artifact location of e.
func (l *Loader) Path(e Entry) string {
	name := e.Stem + DefaultExt
	if f, ok := l.Files[e.Name]; ok && f != "" {
		name = f
	}
	return filepath.Join(l.Dir, name)
}

// Load tries every entry and never fails as a whole. The returned set may be
// empty.
func (l *Loader) Load() *Set {
	open := l.open
	if open == nil {
		open = ml.LoadModel
	}
	logger := l.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	set := &Set{}
	for _, e := range Entries {
		path := l.Path(e)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			msg := fmt.Sprintf("File not found at: %s", path)
			set.diagnostics = append(set.diagnostics, Diagnostic{Name: e.Name, Message: msg})
			logger.Warn("model artifact missing", zap.String("model", e.Name), zap.String("path", path))
			continue
		}

		c, err := open(path, patient.Columns)
		if err != nil {
			set.diagnostics = append(set.diagnostics, Diagnostic{Name: e.Name, Message: describe(err)})
			logger.Warn("model artifact unusable",
				zap.String("model", e.Name),
				zap.String("path", path),
				zap.String("kind", ml.ErrorKind(err)),
				zap.Error(err))
			continue
		}
		set.models = append(set.models, Model{Name: e.Name, Classifier: c})
		logger.Info("model loaded", zap.String("model", e.Name), zap.String("path", path))
	}
	return set
}

func describe(err error) string {
	var de *ml.DecodeError
	if errors.As(err, &de) {
		return de.Error()
	}
	return fmt.Sprintf("%s: %v", ml.ErrorKind(err), err)
}

// Load reads the artifacts in dir with the default file names.
func Load(dir string) *Set {
	return NewLoader(dir, nil, nil).Load()
}

// Cache runs a Loader at most once, however many goroutines ask for it.
type Cache struct {
	loader *Loader
	once   sync.Once
	set    *Set
}

func NewCache(loader *Loader) *Cache {
	return &Cache{loader: loader}
}

func (c *Cache) Get() *Set {
	c.once.Do(func() {
		c.set = c.loader.Load()
	})
	return c.set
}

// ResourceDir is the directory holding the running executable with symlinks
// resolved. It does not depend on the working directory of the process.
func ResourceDir() string {
	exe, err := os.Executable()
	if err != nil {
		return "."
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe)
}
