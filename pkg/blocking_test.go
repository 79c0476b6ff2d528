package filededup

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandBlocking_FlattensFactoriesInPlace(t *testing.T) {
	fn := BlockingFn{ID: "manual", Digest: func(o any) (Key, error) { return "k", nil }}
	factory := FileDigestFactory{IDs: []string{"filesize", "sha"}}

	fns, err := ExpandBlocking([]any{fn, factory})
	require.NoError(t, err)
	require.Len(t, fns, 3)
	assert.Equal(t, "manual", fns[0].ID)
	assert.Equal(t, "filesize", fns[1].ID)
	assert.Equal(t, "sha", fns[2].ID)
}

func TestExpandBlocking_EmptyListIsValid(t *testing.T) {
	fns, err := ExpandBlocking(nil)
	require.NoError(t, err)
	assert.Empty(t, fns)
}

type nilDigestFactory struct{}

func (nilDigestFactory) AllFunctions() ([]BlockingFn, error) {
	return []BlockingFn{{ID: "broken"}}, nil
}

func TestExpandBlocking_RejectsFactoryWithNilDigest(t *testing.T) {
	_, err := ExpandBlocking([]any{nilDigestFactory{}})
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
