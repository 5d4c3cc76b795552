package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

const (
	// ArtifactFormat is bumped whenever the serialized layout changes.
	ArtifactFormat = 1
	artifactKind   = "obesity-risk-pipeline"
)

type artifact struct {
	Kind         string        `json:"kind"`
	Format       int           `json:"format"`
	Schema       []SchemaField `json:"schema"`
	Classes      []Label       `json:"classes"`
	Info         TrainingInfo  `json:"info"`
	Preprocessor *Preprocessor `json:"preprocessor"`
	Forest       *RandomForest `json:"forest"`
}

// Encode writes the pipeline as a self-describing JSON document.
func (p *TrainedPipeline) Encode(w io.Writer) error {
	doc := artifact{
		Kind:         artifactKind,
		Format:       ArtifactFormat,
		Schema:       CurrentSchema(),
		Classes:      Labels(),
		Info:         p.info,
		Preprocessor: p.preprocessor,
		Forest:       p.forest,
	}
	return json.NewEncoder(w).Encode(doc)
}

// Save writes the artifact next to path and renames it into place, so a
// reader never observes a half-written file.
func (p *TrainedPipeline) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create model dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".artifact-*")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := p.Encode(tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp artifact: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("chmod artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// LoadPipeline reads and checks an artifact written by Save. Every failure is
// an *ArtifactLoadError.
func LoadPipeline(path string) (*TrainedPipeline, error) {
	f, err := os.Open(path)
	if err != nil {
		reason := "cannot open file"
		if errors.Is(err, fs.ErrNotExist) {
			reason = "file not found"
		}
		return nil, &ArtifactLoadError{Path: path, Reason: reason, Err: err}
	}
	defer f.Close()
	return DecodePipeline(f, path)
}

// DecodePipeline is LoadPipeline for an already opened stream; name is used in errors.
func DecodePipeline(r io.Reader, name string) (*TrainedPipeline, error) {
	var doc artifact
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ArtifactLoadError{Path: name, Reason: "corrupt document", Err: err}
	}
	if doc.Kind != artifactKind {
		return nil, &ArtifactLoadError{Path: name, Reason: fmt.Sprintf("unexpected artifact kind %q", doc.Kind)}
	}
	if doc.Format != ArtifactFormat {
		return nil, &ArtifactLoadError{Path: name, Reason: fmt.Sprintf("unsupported format %d, expected %d", doc.Format, ArtifactFormat)}
	}
	if !sameSchema(doc.Schema, CurrentSchema()) {
		return nil, &ArtifactLoadError{Path: name, Reason: "field schema does not match the current record layout"}
	}
	if !sameLabels(doc.Classes, labels) {
		return nil, &ArtifactLoadError{Path: name, Reason: "class list does not match the label set"}
	}
	if doc.Preprocessor == nil || doc.Forest == nil {
		return nil, &ArtifactLoadError{Path: name, Reason: "missing pipeline stage"}
	}
	if err := doc.Preprocessor.validate(); err != nil {
		return nil, &ArtifactLoadError{Path: name, Reason: "invalid preprocessor", Err: err}
	}
	if err := doc.Forest.validate(); err != nil {
		return nil, &ArtifactLoadError{Path: name, Reason: "invalid forest", Err: err}
	}
	if doc.Forest.NumClasses != len(labels) {
		return nil, &ArtifactLoadError{Path: name, Reason: fmt.Sprintf("forest has %d classes, expected %d", doc.Forest.NumClasses, len(labels))}
	}
	if doc.Forest.NumFeatures != doc.Preprocessor.Width() {
		return nil, &ArtifactLoadError{Path: name, Reason: fmt.Sprintf("forest expects %d features, preprocessor produces %d", doc.Forest.NumFeatures, doc.Preprocessor.Width())}
	}

	return &TrainedPipeline{
		preprocessor: doc.Preprocessor,
		forest:       doc.Forest,
		info:         doc.Info,
	}, nil
}

func sameLabels(a, b []Label) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
