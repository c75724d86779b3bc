package tensor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aiserve/modelserver/internal/apperr"
)

func TestParseInfersColumnKinds(t *testing.T) {
	in, err := Parse([]byte(`{"age":[22.0,23.8],"adult_male":["True","False"],"rank":[1,2]}`))
	require.NoError(t, err)
	assert.Equal(t, 2, in.BatchSize)
	assert.Equal(t, KindFloat, in.Columns["age"].Kind)
	assert.Equal(t, KindString, in.Columns["adult_male"].Kind)
	assert.Equal(t, KindInt, in.Columns["rank"].Kind)
}

func TestParseRejectsMixedTypeArray(t *testing.T) {
	_, err := Parse([]byte(`{"age":[22.0,"x"]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBadInput)
}

func TestParseRejectsRaggedBatch(t *testing.T) {
	_, err := Parse([]byte(`{"age":[22.0,23.8],"fare":[1.0,2.0,3.0]}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrBadInput)
}

func TestSchemaRoundTripsNamesAndLengths(t *testing.T) {
	in, err := Parse([]byte(`{"a":[1,2,3],"b":["x","y","z"]}`))
	require.NoError(t, err)
	schema := in.Schema()
	assert.Equal(t, map[string]int{"a": 3, "b": 3}, schema)
}

func TestNumericAndStringNamesAreSortedAndDisjoint(t *testing.T) {
	in, err := Parse([]byte(`{"zeta":[1.0],"alpha":[2],"mid":["s"]}`))
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, in.NumericNames())
	assert.Equal(t, []string{"mid"}, in.StringNames())
}

func TestColumnFloatAtCoercesStrings(t *testing.T) {
	in, err := Parse([]byte(`{"s":["3.5","-2"]}`))
	require.NoError(t, err)
	col := in.Columns["s"]
	f, err := col.FloatAt(0)
	require.NoError(t, err)
	assert.Equal(t, 3.5, f)
}
