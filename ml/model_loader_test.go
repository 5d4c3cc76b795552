package ml

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	result := trainSynthetic(t, 350)
	path := filepath.Join(t.TempDir(), "models", "pipeline.json")
	require.NoError(t, result.Pipeline.Save(path))

	loaded, err := LoadPipeline(path)
	require.NoError(t, err)

	records, _ := syntheticDataset(70, 5)
	for _, rec := range records {
		want, err := result.Pipeline.Predict(rec)
		require.NoError(t, err)
		got, err := loaded.Predict(rec)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		wantProba, _ := result.Pipeline.PredictProba(rec)
		gotProba, _ := loaded.PredictProba(rec)
		assert.Equal(t, wantProba, gotProba)
	}
	assert.True(t, result.Pipeline.Info().TrainedAt.Equal(loaded.Info().TrainedAt))
	assert.Equal(t, result.Pipeline.FeatureNames(), loaded.FeatureNames())

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestLoadPipelineMissingFile(t *testing.T) {
	_, err := LoadPipeline(filepath.Join(t.TempDir(), "absent.json"))
	var loadErr *ArtifactLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "file not found", loadErr.Reason)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadPipelineCorrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pipeline.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := LoadPipeline(path)
	var loadErr *ArtifactLoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, "corrupt document", loadErr.Reason)
}

func TestLoadPipelineSchemaMismatch(t *testing.T) {
	result := trainSynthetic(t, 140)

	tamper := func(edit func(doc map[string]any)) error {
		var buf bytes.Buffer
		require.NoError(t, result.Pipeline.Encode(&buf))
		var doc map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
		edit(doc)
		payload, err := json.Marshal(doc)
		require.NoError(t, err)
		_, err = DecodePipeline(bytes.NewReader(payload), "tampered")
		return err
	}

	cases := map[string]func(doc map[string]any){
		"dropped field": func(doc map[string]any) {
			schema := doc["schema"].([]any)
			doc["schema"] = schema[:len(schema)-1]
		},
		"renamed field": func(doc map[string]any) {
			schema := doc["schema"].([]any)
			schema[0].(map[string]any)["name"] = "Sex"
		},
		"format": func(doc map[string]any) {
			doc["format"] = 99
		},
		"classes": func(doc map[string]any) {
			doc["classes"] = []string{"Normal_Weight"}
		},
		"missing forest": func(doc map[string]any) {
			delete(doc, "forest")
		},
		"width": func(doc map[string]any) {
			doc["forest"].(map[string]any)["num_features"] = 3
		},
	}
	for name, edit := range cases {
		err := tamper(edit)
		var loadErr *ArtifactLoadError
		assert.ErrorAs(t, err, &loadErr, name)
	}
}
