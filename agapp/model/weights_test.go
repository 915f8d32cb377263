package model

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoad(t *testing.T) {
	arch, err := LookupArchitecture("efficientnetb0")
	require.NoError(t, err)

	backbone := fakeBackbone{channels: arch.FeatureWidth}
	m, err := Assemble(arch, backbone, 11)
	require.NoError(t, err)
	m.Description = "round trip"
	m.TrainingResult = TrainingResult{Epochs: 1, TrainLoss: []float64{0.5}}

	dir := filepath.Join(t.TempDir(), "saved")
	require.NoError(t, m.Save(dir))

	_, err = os.Stat(filepath.Join(dir, "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "weights.bin"), WeightsPath(dir))
	assert.Equal(t, filepath.Join(dir, "other.bin"), WeightsPath(filepath.Join(dir, "other.bin")))

	loaded, err := Load(dir, backbone)
	require.NoError(t, err)
	assert.Equal(t, "round trip", loaded.Description)
	assert.Equal(t, 1, loaded.TrainingResult.Epochs)

	want, err := m.Predict(testImage())
	require.NoError(t, err)
	got, err := loaded.Predict(testImage())
	require.NoError(t, err)
	assert.Equal(t, want.Outputs, got.Outputs)
}

func TestLoadWeightsExact(t *testing.T) {
	src, err := Assemble(tinyArch(3), nil, 1)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "weights.bin")
	require.NoError(t, src.SaveWeights(path))

	t.Run("Match", func(t *testing.T) {
		dst, err := Assemble(tinyArch(3), nil, 2)
		require.NoError(t, err)

		res, err := LoadWeights(dst, path, Exact)
		require.NoError(t, err)
		assert.Len(t, res.Loaded, 6)
		assert.Empty(t, res.Skipped)

		for i, p := range dst.Params() {
			assert.Equal(t, src.Params()[i].Value, p.Value, p.Name)
		}
	})

	t.Run("ArchitectureMismatch", func(t *testing.T) {
		dst, err := Assemble(tinyArch(0), nil, 2)
		require.NoError(t, err)
		before := append([]float64(nil), dst.Params()[0].Value...)

		_, err = LoadWeights(dst, path, Exact)
		require.Error(t, err)

		var werr *WeightLoadError
		require.True(t, errors.As(err, &werr))
		assert.Contains(t, werr.Unexpected, "dense/kernel")
		assert.NotEmpty(t, werr.Mismatched)
		assert.Equal(t, before, dst.Params()[0].Value)
	})

	t.Run("MissingFile", func(t *testing.T) {
		dst, _ := Assemble(tinyArch(3), nil, 2)
		_, err := LoadWeights(dst, filepath.Join(t.TempDir(), "none.bin"), Exact)

		var werr *WeightLoadError
		require.True(t, errors.As(err, &werr))
		assert.Error(t, werr.Err)
	})

	t.Run("Corrupt", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "bad.bin")
		require.NoError(t, os.WriteFile(bad, []byte("not zstd"), 0644))
		dst, _ := Assemble(tinyArch(3), nil, 2)
		_, err := LoadWeights(dst, bad, ByName)
		assert.Error(t, err)
	})
}

func TestLoadWeightsByName(t *testing.T) {
	dst, err := Assemble(tinyArch(0), nil, 2)
	require.NoError(t, err)

	ageKernel := []float64{1, 2, 3, 4}
	path := filepath.Join(t.TempDir(), "partial.bin")
	require.NoError(t, WriteTensors(path, "tiny", []Tensor{
		{Name: "age/kernel", Shape: []int{4, 1}, Data: ageKernel},
		{Name: "renamed/kernel", Shape: []int{4, 1}, Data: []float64{9, 9, 9, 9}},
	}))

	genderBefore := append([]float64(nil), dst.Params()[2].Value...)

	t.Run("ExactRejects", func(t *testing.T) {
		_, err := LoadWeights(dst, path, Exact)
		var werr *WeightLoadError
		require.True(t, errors.As(err, &werr))
		assert.Equal(t, []string{"renamed/kernel"}, werr.Unexpected)
		assert.Contains(t, werr.Missing, "gender/kernel")
		assert.NotEqual(t, ageKernel, dst.Params()[0].Value)
		assert.Contains(t, err.Error(), "exact")
	})

	t.Run("ByNameLoadsMatching", func(t *testing.T) {
		res, err := LoadWeights(dst, path, ByName)
		require.NoError(t, err)
		assert.Equal(t, []string{"age/kernel"}, res.Loaded)
		assert.Equal(t, []string{"renamed/kernel"}, res.Ignored)
		assert.Equal(t, []string{"age/bias", "gender/bias", "gender/kernel"}, res.Skipped)

		assert.Equal(t, ageKernel, dst.Params()[0].Value)
		assert.Equal(t, genderBefore, dst.Params()[2].Value)
	})

	t.Run("ByNameShapeMismatch", func(t *testing.T) {
		bad := filepath.Join(t.TempDir(), "shape.bin")
		require.NoError(t, WriteTensors(bad, "tiny", []Tensor{
			{Name: "age/kernel", Shape: []int{2, 1}, Data: []float64{1, 2}},
		}))
		_, err := LoadWeights(dst, bad, ByName)
		var werr *WeightLoadError
		require.True(t, errors.As(err, &werr))
		assert.Len(t, werr.Mismatched, 1)
	})
}

func TestReadTensorsValidatesShape(t *testing.T) {
	path := filepath.Join(t.TempDir(), "w.bin")
	require.NoError(t, WriteTensors(path, "tiny", []Tensor{{Name: "a", Shape: []int{2, 2}, Data: []float64{1}}}))
	_, _, err := ReadTensors(path)
	assert.Error(t, err)
}
