package blob

import (
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_PutOpenDelete(t *testing.T) {
	s := NewLocal(t.TempDir())
	s.now = func() time.Time { return time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC) }

	obj, err := s.Put("/uploads", "../My Cat.png", strings.NewReader("meow"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(obj.Key, "uploads/2024/03/"), obj.Key)
	assert.True(t, strings.HasSuffix(obj.Key, "-My_Cat.png"), obj.Key)
	assert.Equal(t, int64(4), obj.Size)
	assert.Equal(t, "404cdd7bc109c432f8cc2443b45bcfe95980f5107215c645236e577929ac3e52", obj.SHA256)

	rc, err := s.Open(obj.Key)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Equal(t, "meow", string(body))

	require.NoError(t, s.Delete(obj.Key))
	_, err = s.Open(obj.Key)
	assert.Error(t, err)
}

func TestLocal_PathRejectsTraversal(t *testing.T) {
	s := NewLocal(t.TempDir())
	_, err := s.Path("../etc/passwd")
	assert.ErrorIs(t, err, ErrBadKey)
	_, err = s.Path("")
	assert.ErrorIs(t, err, ErrBadKey)
}

func TestSafeName(t *testing.T) {
	assert.Equal(t, "file", safeName("..."))
	assert.Equal(t, "a_b.txt", safeName("a b.txt"))
	assert.Equal(t, "x.txt", safeName("dir/x.txt"))
}
