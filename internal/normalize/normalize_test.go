package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAddsMissingSemicolon(t *testing.T) {
	res, err := Normalize("memcpy(a,b,size)", false, false)
	require.NoError(t, err)
	assert.Contains(t, res.Pattern, ";")
}

func TestNormalizeWrapsBareStatement(t *testing.T) {
	res, err := Normalize("memcpy(_);", false, false)
	require.NoError(t, err)
	assert.True(t, res.Pattern[0] == '{')
}

func TestNormalizeAcceptsFunctionDefinition(t *testing.T) {
	res, err := Normalize("int $fn() { _; }", false, false)
	require.NoError(t, err)
	assert.Equal(t, "int $fn() { _; }", res.Pattern)
}

func TestNormalizeRejectsUnsupportedRoot(t *testing.T) {
	_, err := Normalize("// just a comment", false, false)
	require.Error(t, err)
}

func TestNormalizeRejectsMultipleRoots(t *testing.T) {
	_, err := Normalize("void f() {} void g() {}", false, false)
	require.Error(t, err)
}
