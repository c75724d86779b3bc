package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserve/modelserver/internal/apperr"
	"github.com/aiserve/modelserver/internal/predictor"
)

func TestParseSplitsOnFirstDash(t *testing.T) {
	n, err := Parse("catboost-titanic-survivors.tar.gz")
	require.NoError(t, err)
	assert.Equal(t, predictor.CatBoost, n.Framework)
	assert.Equal(t, "titanic-survivors", n.Model)
}

func TestParsePytorchAndTorchBothRouteToTorch(t *testing.T) {
	for _, raw := range []string{"pytorch-penguin.tar.gz", "torch-penguin.tar.gz"} {
		n, err := Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, predictor.Torch, n.Framework)
		assert.Equal(t, "penguin", n.Model)
	}
}

func TestParseRejectsUnknownFramework(t *testing.T) {
	_, err := Parse("sklearn-iris.tar.gz")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBadInput)
}

func TestParseRejectsMissingSuffix(t *testing.T) {
	_, err := Parse("tensorflow-penguin.tar")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBadInput)
}

func TestParseRejectsMissingModelName(t *testing.T) {
	_, err := Parse("tensorflow-.tar.gz")
	require.Error(t, err)
}
