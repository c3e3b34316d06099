package utils_test

import (
	"testing"

	"github.com/jrsteele09/go-auth-session/internal/utils"
	"github.com/stretchr/testify/require"
)

func TestNormalizeScopes(t *testing.T) {
	require.Equal(t, []string{}, utils.NormalizeScopes(nil))
	require.Equal(t, []string{"chat", "read"}, utils.NormalizeScopes([]string{" read", "chat", "", "read"}))
}

func TestContainsAll(t *testing.T) {
	have := []string{"chat", "read"}
	require.True(t, utils.ContainsAll(have, nil))
	require.True(t, utils.ContainsAll(have, []string{"chat"}))
	require.True(t, utils.ContainsAll(have, []string{"read", "chat"}))
	require.False(t, utils.ContainsAll(have, []string{"chat", "write"}))
}

func TestPointers(t *testing.T) {
	require.Equal(t, 0, utils.Value[int](nil))
	v := 3
	p := &v
	require.Equal(t, 3, utils.Value(p))

	c := utils.Clone(p)
	require.Equal(t, p, c)
	*c = 4
	require.Equal(t, 3, *p)
	require.Nil(t, utils.Clone[int](nil))
}
