package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/icrar/vospace/cluster"
	"github.com/icrar/vospace/cmn"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "vospace.db")
	st, err := Open(dbPath, 2*time.Second, AllowAll{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

var owner = Identity{Name: "alice"}

func TestCreate_DuplicateAndMissingParent(t *testing.T) {
	st := newTestStore(t)

	n1 := cluster.NewNode("test1", cluster.TypeContainerNode)
	created, err := st.Create(n1, owner)
	require.NoError(t, err)
	assert.Equal(t, cluster.Path("test1"), created.Path)

	_, err = st.Create(cluster.NewNode("test1", cluster.TypeContainerNode), owner)
	var ve *cmn.VOSpaceErr
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrDuplicateNode, ve.Kind)

	_, err = st.Create(cluster.NewNode("c/d/e", cluster.TypeDataNode), owner)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrContainerDoesNotExist, ve.Kind)
}

func TestCreate_RejectsCreationThroughLinkNode(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Create(cluster.NewNode("a", cluster.TypeContainerNode), owner)
	require.NoError(t, err)

	link := cluster.NewNode("a/link", cluster.TypeLinkNode)
	link.Target = "http://x"
	_, err = st.Create(link, owner)
	require.NoError(t, err)

	_, err = st.Create(cluster.NewNode("a/link/child", cluster.TypeDataNode), owner)
	var ve *cmn.VOSpaceErr
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrLinkFound, ve.Kind)
}

func TestCreate_StripsDeletePropertiesOnCreate(t *testing.T) {
	st := newTestStore(t)

	n := cluster.NewNode("x", cluster.TypeDataNode)
	n.Properties = []cluster.Property{cluster.NewDeleteProperty("ivo://ivoa.net/vospace/core#title")}

	created, err := st.Create(n, owner)
	require.NoError(t, err)
	assert.Empty(t, created.Properties)
}

func TestDirectory_DetailLevelsAndChildOrdering(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Create(cluster.NewNode("c", cluster.TypeContainerNode), owner)
	require.NoError(t, err)
	for _, p := range []string{"c/b", "c/a", "c/c"} {
		_, err := st.Create(cluster.NewNode(cluster.Path(p), cluster.TypeDataNode), owner)
		require.NoError(t, err)
	}
	n, err := st.Create(&cluster.Node{
		Path: "c/d",
		Type: cluster.TypeDataNode,
		Properties: []cluster.Property{
			{URI: "ivo://ivoa.net/vospace/core#description", Value: "Hello"},
		},
	}, owner)
	require.NoError(t, err)
	assert.Len(t, n.Properties, 1)

	dir, err := st.Directory("c", owner, cmn.DetailMax, 0, nil)
	require.NoError(t, err)
	require.Len(t, dir.Children, 4)
	for i := 1; i < len(dir.Children); i++ {
		assert.Less(t, dir.Children[i-1].Path, dir.Children[i].Path)
	}

	min, err := st.Directory("c/d", owner, cmn.DetailMin, 0, nil)
	require.NoError(t, err)
	assert.Empty(t, min.Properties)

	limited, err := st.Directory("c", owner, cmn.DetailMax, 2, nil)
	require.NoError(t, err)
	assert.Len(t, limited.Children, 2)
}

func TestUpdate_DeletePropertyAndReadOnlyProtection(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Create(&cluster.Node{
		Path: "n",
		Type: cluster.TypeDataNode,
		Properties: []cluster.Property{
			{URI: "ivo://ivoa.net/vospace/core#description", Value: "Hello"},
			{URI: "ivo://ivoa.net/vospace/core#title", Value: "fixed", ReadOnly: true},
		},
	}, owner)
	require.NoError(t, err)

	updated, err := st.Update(&cluster.Node{
		Path: "n",
		Properties: []cluster.Property{
			cluster.NewDeleteProperty("ivo://ivoa.net/vospace/core#description"),
		},
	}, owner)
	require.NoError(t, err)
	for _, p := range updated.Properties {
		assert.NotEqual(t, "ivo://ivoa.net/vospace/core#description", p.URI)
	}

	_, err = st.Update(&cluster.Node{
		Path: "n",
		Properties: []cluster.Property{
			{URI: "ivo://ivoa.net/vospace/core#title", Value: "changed"},
		},
	}, owner)
	var ve *cmn.VOSpaceErr
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrPermissionDenied, ve.Kind)
}

func TestMove_RejectsBusyAndSelfNesting(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Create(cluster.NewNode("a", cluster.TypeContainerNode), owner)
	require.NoError(t, err)
	_, err = st.Create(cluster.NewNode("a/b", cluster.TypeContainerNode), owner)
	require.NoError(t, err)
	_, err = st.Create(cluster.NewNode("a/b/c", cluster.TypeDataNode), owner)
	require.NoError(t, err)

	_, err = st.Move("a/b", "a/b/nested", owner)
	var ve *cmn.VOSpaceErr
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrInvalidArgument, ve.Kind)

	require.NoError(t, st.SetBusy("a/b/c", true))
	_, err = st.Move("a/b", "a/moved", owner)
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrNodeIsBusy, ve.Kind)

	require.NoError(t, st.SetBusy("a/b/c", false))
	moved, err := st.Move("a/b", "a/moved", owner)
	require.NoError(t, err)
	assert.Equal(t, cluster.Path("a/moved"), moved.Path)

	_, err = st.Get("a/moved/c")
	require.NoError(t, err)
}

func TestCopy_DuplicatesSubtreeUnderNewOwner(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Create(cluster.NewNode("a", cluster.TypeContainerNode), owner)
	require.NoError(t, err)
	_, err = st.Create(cluster.NewNode("a/b", cluster.TypeDataNode), owner)
	require.NoError(t, err)

	_, copied, err := st.Copy("a", "z", owner)
	require.NoError(t, err)
	assert.Len(t, copied, 2)
	for _, n := range copied {
		assert.False(t, n.Busy)
	}

	_, err = st.Get("z/b")
	require.NoError(t, err)
}

func TestDelete_RemovesSubtreeAndRejectsBusy(t *testing.T) {
	st := newTestStore(t)

	_, err := st.Create(cluster.NewNode("a", cluster.TypeContainerNode), owner)
	require.NoError(t, err)
	_, err = st.Create(cluster.NewNode("a/b", cluster.TypeDataNode), owner)
	require.NoError(t, err)

	require.NoError(t, st.SetBusy("a/b", true))
	_, err = st.Delete("a", owner)
	var ve *cmn.VOSpaceErr
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, cmn.ErrNodeIsBusy, ve.Kind)

	require.NoError(t, st.SetBusy("a/b", false))
	removed, err := st.Delete("a", owner)
	require.NoError(t, err)
	assert.Len(t, removed, 2)

	_, err = st.Get("a")
	require.Error(t, err)
}
