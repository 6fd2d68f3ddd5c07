package paths

import (
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/nosuite/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	email = "a@x.com"
	app   = "notes.ngwy.fr"
)

func newResolver(t *testing.T) (*Resolver, string) {
	t.Helper()
	dir := t.TempDir()
	r, err := NewResolver(dir)
	require.NoError(t, err)
	return r, filepath.Join(r.UsersRoot(), email, app)
}

func TestResolve_Confined(t *testing.T) {
	r, root := newResolver(t)

	tests := []struct {
		in          string
		wantFull    string
		wantLogical string
	}{
		{in: "", wantFull: root, wantLogical: "/"},
		{in: "/", wantFull: root, wantLogical: "/"},
		{in: "/notes/1.txt", wantFull: filepath.Join(root, "notes", "1.txt"), wantLogical: "/notes/1.txt"},
		{in: "notes//./1.txt", wantFull: filepath.Join(root, "notes", "1.txt"), wantLogical: "/notes/1.txt"},
		{in: "/my%20notes/%C3%A9t%C3%A9.txt", wantFull: filepath.Join(root, "my notes", "été.txt"), wantLogical: "/my notes/été.txt"},
		{in: "/dir/", wantFull: filepath.Join(root, "dir"), wantLogical: "/dir"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := r.Resolve(email, app, tt.in)
			require.NoError(t, err)
			assert.Equal(t, root, got.Root)
			assert.Equal(t, tt.wantFull, got.Full)
			assert.Equal(t, tt.wantLogical, got.Logical)
		})
	}
}

func TestResolve_RejectsTraversal(t *testing.T) {
	r, _ := newResolver(t)

	for _, in := range []string{
		"../b@x.com/notes.ngwy.fr/secret",
		"/../../etc/passwd",
		"/notes/../1.txt",
		"..",
		"%2e%2e/other",
		"%2E%2E%2Fother",
		"/notes/..%2f..%2f",
		`..\other`,
		"/bad%zzescape",
		"/nul%00byte",
	} {
		t.Run(in, func(t *testing.T) {
			_, err := r.Resolve(email, app, in)
			assert.ErrorIs(t, err, common.ErrForbidden)
		})
	}
}

func TestResolveDecoded_NoSecondUnescape(t *testing.T) {
	r, root := newResolver(t)

	first, err := r.Resolve(email, app, "/100%25.txt")
	require.NoError(t, err)
	assert.Equal(t, "/100%.txt", first.Logical)

	again, err := r.ResolveDecoded(email, app, first.Logical)
	require.NoError(t, err)
	assert.Equal(t, first, again)

	lit, err := r.ResolveDecoded(email, app, "/%41")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "%41"), lit.Full)

	_, err = r.ResolveDecoded(email, app, "/a/../../b@x.com")
	assert.ErrorIs(t, err, common.ErrForbidden)
	_, err = r.ResolveDecoded("", app, "/x")
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestResolve_RejectsBadSegments(t *testing.T) {
	r, _ := newResolver(t)

	_, err := r.Resolve("../root", app, "/x")
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = r.Resolve(email, "..", "/x")
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = r.Resolve(email, "a/b", "/x")
	assert.ErrorIs(t, err, common.ErrForbidden)

	_, err = r.Resolve("", app, "/x")
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestResolved_Child(t *testing.T) {
	r, root := newResolver(t)

	dir, err := r.Resolve(email, app, "/notes")
	require.NoError(t, err)

	c, err := dir.Child("1.txt")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "notes", "1.txt"), c.Full)
	assert.Equal(t, "/notes/1.txt", c.Logical)

	top, _ := r.Resolve(email, app, "/")
	c, err = top.Child("a")
	require.NoError(t, err)
	assert.Equal(t, "/a", c.Logical)

	_, err = dir.Child("..")
	assert.ErrorIs(t, err, common.ErrForbidden)
}

func TestUserDir(t *testing.T) {
	r, _ := newResolver(t)

	dir, err := r.UserDir(email)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(r.UsersRoot(), email), dir)

	_, err = r.UserDir("a/../../b")
	assert.ErrorIs(t, err, common.ErrForbidden)
}
