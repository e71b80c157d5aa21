package faces_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aman-oss/photoidx/internal/aux/faces"
)

func vec(x, y float32) []float32 { return []float32{x, y, 0, 0} }

func TestBuildClustersSimilarFaces(t *testing.T) {
	dir := t.TempDir()
	idx, err := faces.Open(dir, 4)
	require.NoError(t, err)

	detect := func(path string) ([]faces.Detection, error) {
		switch path {
		case "/a.jpg":
			return []faces.Detection{{BBox: faces.BBox{W: 10, H: 10}, Vector: vec(1, 0), Quality: 1}}, nil
		case "/b.jpg":
			return []faces.Detection{{BBox: faces.BBox{W: 10, H: 10}, Vector: vec(0.99, 0.01), Quality: 1}}, nil
		default:
			return []faces.Detection{{BBox: faces.BBox{W: 10, H: 10}, Vector: vec(0, 1), Quality: 1}}, nil
		}
	}

	result, err := idx.Build([]string{"/a.jpg", "/b.jpg", "/c.jpg"}, detect, faces.BuildParams{
		MinClusterSize: 2, SimilarityThreshold: 0.9, QualityThreshold: 0,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Updated)
	assert.Equal(t, 3, result.Faces)

	aFaces := idx.FacesFor("/a.jpg")
	bFaces := idx.FacesFor("/b.jpg")
	require.Len(t, aFaces, 1)
	require.Len(t, bFaces, 1)
	assert.Equal(t, aFaces[0].ClusterID, bFaces[0].ClusterID)

	cFaces := idx.FacesFor("/c.jpg")
	require.Len(t, cFaces, 1)
	assert.Equal(t, -1, cFaces[0].ClusterID, "singleton below min cluster size stays noise")
}

func TestBuildFiltersByQuality(t *testing.T) {
	dir := t.TempDir()
	idx, err := faces.Open(dir, 4)
	require.NoError(t, err)

	detect := func(path string) ([]faces.Detection, error) {
		return []faces.Detection{{Vector: vec(1, 0), Quality: 0.1}}, nil
	}

	result, err := idx.Build([]string{"/a.jpg"}, detect, faces.BuildParams{QualityThreshold: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Faces)
}

func TestMergeAndSplitClusters(t *testing.T) {
	dir := t.TempDir()
	idx, err := faces.Open(dir, 4)
	require.NoError(t, err)

	detect := func(path string) ([]faces.Detection, error) {
		return []faces.Detection{
			{Vector: vec(1, 0), Quality: 1},
			{Vector: vec(0.99, 0.01), Quality: 1},
		}, nil
	}
	_, err = idx.Build([]string{"/a.jpg"}, detect, faces.BuildParams{MinClusterSize: 2, SimilarityThreshold: 0.9})
	require.NoError(t, err)

	refs := idx.FacesFor("/a.jpg")
	require.Len(t, refs, 2)
	clusterID := refs[0].ClusterID

	newID, err := idx.SplitCluster(clusterID, []int{refs[1].Row})
	require.NoError(t, err)
	assert.NotEqual(t, clusterID, newID)

	require.NoError(t, idx.MergeClusters(newID, clusterID))
	refs = idx.FacesFor("/a.jpg")
	for _, r := range refs {
		assert.Equal(t, clusterID, r.ClusterID)
	}
}
