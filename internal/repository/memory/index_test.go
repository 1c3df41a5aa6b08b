package memory

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mriview/dicom-api/internal/model"
)

func study(id string) *model.Study {
	return &model.Study{ID: id, PatientName: "P", StudyDescription: "first"}
}

func series(id, studyID string) *model.Series {
	return &model.Series{ID: id, StudyID: studyID, SeriesNumber: 1}
}

func slice(id, seriesID, studyID string, instance int, loc float64) *model.Slice {
	return &model.Slice{ID: id, SeriesID: seriesID, StudyID: studyID, InstanceNumber: instance, SliceLocation: loc}
}

func TestInsertCreatesHierarchyOnce(t *testing.T) {
	idx := NewIndex()

	stCreated, seCreated := idx.Insert(study("st1"), series("se1", "st1"), slice("s1", "se1", "st1", 1, 0), true)
	assert.True(t, stCreated)
	assert.True(t, seCreated)

	stCreated, seCreated = idx.Insert(study("st1"), series("se1", "st1"), slice("s2", "se1", "st1", 2, 0), true)
	assert.False(t, stCreated)
	assert.False(t, seCreated)

	assert.Equal(t, 1, idx.StudyCount())
	st, ok := idx.Study("st1")
	require.True(t, ok)
	assert.Equal(t, []string{"se1"}, st.SeriesIDs)
}

func TestInsertKeepsFirstSeenFields(t *testing.T) {
	idx := NewIndex()

	idx.Insert(study("st1"), series("se1", "st1"), slice("s1", "se1", "st1", 1, 0), true)

	later := study("st1")
	later.StudyDescription = "second"
	idx.Insert(later, series("se1", "st1"), slice("s2", "se1", "st1", 2, 0), true)

	st, _ := idx.Study("st1")
	assert.Equal(t, "first", st.StudyDescription)
}

func TestSlicesOrderedByInstanceThenLocation(t *testing.T) {
	idx := NewIndex()

	idx.Insert(study("st1"), series("se1", "st1"), slice("a", "se1", "st1", 3, 0), true)
	idx.Insert(study("st1"), series("se1", "st1"), slice("b", "se1", "st1", 1, 0), true)
	idx.Insert(study("st1"), series("se1", "st1"), slice("c", "se1", "st1", 2, 5.5), true)
	idx.Insert(study("st1"), series("se1", "st1"), slice("d", "se1", "st1", 2, 1.5), true)

	slices := idx.SlicesForSeries("se1")
	require.Len(t, slices, 4)
	ids := []string{slices[0].ID, slices[1].ID, slices[2].ID, slices[3].ID}
	assert.Equal(t, []string{"b", "d", "c", "a"}, ids)
}

func TestOrderingStableOnEqualKeys(t *testing.T) {
	idx := NewIndex()

	for _, id := range []string{"x", "y", "z"} {
		idx.Insert(study("st1"), series("se1", "st1"), slice(id, "se1", "st1", 1, 0), true)
	}

	slices := idx.SlicesForSeries("se1")
	require.Len(t, slices, 3)
	assert.Equal(t, "x", slices[0].ID)
	assert.Equal(t, "y", slices[1].ID)
	assert.Equal(t, "z", slices[2].ID)
}

func TestDefaultInstanceNumberCountsExistingSlices(t *testing.T) {
	idx := NewIndex()

	idx.Insert(study("st1"), series("se1", "st1"), slice("a", "se1", "st1", 0, 0), false)
	idx.Insert(study("st1"), series("se1", "st1"), slice("b", "se1", "st1", 0, 0), false)

	slices := idx.SlicesForSeries("se1")
	require.Len(t, slices, 2)
	assert.Equal(t, 1, slices[0].InstanceNumber)
	assert.Equal(t, 2, slices[1].InstanceNumber)
}

func TestLookupsOnUnknownIDs(t *testing.T) {
	idx := NewIndex()

	_, ok := idx.Study("nope")
	assert.False(t, ok)
	_, ok = idx.Series("nope")
	assert.False(t, ok)
	_, ok = idx.Slice("nope")
	assert.False(t, ok)
	assert.Nil(t, idx.SeriesForStudy("nope"))
	assert.Nil(t, idx.SlicesForSeries("nope"))
	assert.Empty(t, idx.Studies())
}

func TestReadsReturnCopies(t *testing.T) {
	idx := NewIndex()
	idx.Insert(study("st1"), series("se1", "st1"), slice("a", "se1", "st1", 1, 0), true)

	st, _ := idx.Study("st1")
	st.PatientName = "mutated"
	st.SeriesIDs[0] = "mutated"

	again, _ := idx.Study("st1")
	assert.Equal(t, "P", again.PatientName)
	assert.Equal(t, []string{"se1"}, again.SeriesIDs)
}

func TestStudiesKeepFirstSeenOrder(t *testing.T) {
	idx := NewIndex()

	idx.Insert(study("st2"), series("se2", "st2"), slice("a", "se2", "st2", 1, 0), true)
	idx.Insert(study("st1"), series("se1", "st1"), slice("b", "se1", "st1", 1, 0), true)

	studies := idx.Studies()
	require.Len(t, studies, 2)
	assert.Equal(t, "st2", studies[0].ID)
	assert.Equal(t, "st1", studies[1].ID)
}

func TestConcurrentInsertsIntoOneSeries(t *testing.T) {
	idx := NewIndex()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			idx.Insert(study("st1"), series("se1", "st1"), slice(fmt.Sprintf("s%d", n), "se1", "st1", 0, 0), false)
		}(i)
	}
	wg.Wait()

	slices := idx.SlicesForSeries("se1")
	require.Len(t, slices, 50)
	seen := make(map[int]bool)
	for _, sl := range slices {
		assert.False(t, seen[sl.InstanceNumber], "duplicate instance number %d", sl.InstanceNumber)
		seen[sl.InstanceNumber] = true
	}
}
