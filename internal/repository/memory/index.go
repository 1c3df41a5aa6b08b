// Package memory holds the in-process hierarchy index. One RWMutex guards
// all three mappings; concurrent insertions into the same series therefore
// cannot race on the re-sort step.
package memory

import (
	"sort"
	"sync"

	"github.com/mriview/dicom-api/internal/model"
	"github.com/mriview/dicom-api/internal/repository"
)

type Index struct {
	mu         sync.RWMutex
	studies    map[string]*model.Study
	series     map[string]*model.Series
	slices     map[string]*model.Slice
	studyOrder []string
}

var _ repository.Index = (*Index)(nil)

func NewIndex() *Index {
	return &Index{
		studies: make(map[string]*model.Study),
		series:  make(map[string]*model.Series),
		slices:  make(map[string]*model.Slice),
	}
}

// Insert applies the full insertion protocol under one write lock. Identity
// fields of an existing study or series are never overwritten; only
// membership lists grow.
func (i *Index) Insert(study *model.Study, series *model.Series, slice *model.Slice, haveInstance bool) (bool, bool) {
	i.mu.Lock()
	defer i.mu.Unlock()

	studyCreated := false
	st, ok := i.studies[study.ID]
	if !ok {
		st = cloneStudy(study)
		st.SeriesIDs = append([]string(nil), study.SeriesIDs...)
		i.studies[st.ID] = st
		i.studyOrder = append(i.studyOrder, st.ID)
		studyCreated = true
	}

	seriesCreated := false
	se, ok := i.series[series.ID]
	if !ok {
		se = cloneSeries(series)
		se.SliceIDs = append([]string(nil), series.SliceIDs...)
		i.series[se.ID] = se
		seriesCreated = true
	}

	if !contains(st.SeriesIDs, se.ID) {
		st.SeriesIDs = append(st.SeriesIDs, se.ID)
	}

	// The default instance number counts existing slices only; computing it
	// after the append would count the slice against itself.
	if !haveInstance {
		slice.InstanceNumber = len(se.SliceIDs) + 1
	}

	i.slices[slice.ID] = cloneSlice(slice)

	if !contains(se.SliceIDs, slice.ID) {
		se.SliceIDs = append(se.SliceIDs, slice.ID)
		i.resortLocked(se)
	}

	return studyCreated, seriesCreated
}

// resortLocked re-establishes the series ordering invariant. The sort is
// stable: equal (instance number, slice location) keys keep insertion order.
func (i *Index) resortLocked(se *model.Series) {
	sort.SliceStable(se.SliceIDs, func(a, b int) bool {
		sa, sb := i.slices[se.SliceIDs[a]], i.slices[se.SliceIDs[b]]
		if sa == nil || sb == nil {
			return sa != nil
		}
		if sa.InstanceNumber != sb.InstanceNumber {
			return sa.InstanceNumber < sb.InstanceNumber
		}
		return sa.SliceLocation < sb.SliceLocation
	})
}

func (i *Index) Studies() []*model.Study {
	i.mu.RLock()
	defer i.mu.RUnlock()

	out := make([]*model.Study, 0, len(i.studyOrder))
	for _, id := range i.studyOrder {
		if st, ok := i.studies[id]; ok {
			out = append(out, cloneStudyWithMembers(st))
		}
	}
	return out
}

func (i *Index) Study(id string) (*model.Study, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	st, ok := i.studies[id]
	if !ok {
		return nil, false
	}
	return cloneStudyWithMembers(st), true
}

func (i *Index) SeriesForStudy(studyID string) []*model.Series {
	i.mu.RLock()
	defer i.mu.RUnlock()

	st, ok := i.studies[studyID]
	if !ok {
		return nil
	}
	out := make([]*model.Series, 0, len(st.SeriesIDs))
	for _, id := range st.SeriesIDs {
		if se, ok := i.series[id]; ok {
			out = append(out, cloneSeriesWithMembers(se))
		}
	}
	return out
}

func (i *Index) Series(id string) (*model.Series, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	se, ok := i.series[id]
	if !ok {
		return nil, false
	}
	return cloneSeriesWithMembers(se), true
}

func (i *Index) SlicesForSeries(seriesID string) []*model.Slice {
	i.mu.RLock()
	defer i.mu.RUnlock()

	se, ok := i.series[seriesID]
	if !ok {
		return nil
	}
	out := make([]*model.Slice, 0, len(se.SliceIDs))
	for _, id := range se.SliceIDs {
		if sl, ok := i.slices[id]; ok {
			out = append(out, cloneSlice(sl))
		}
	}
	return out
}

func (i *Index) Slice(id string) (*model.Slice, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	sl, ok := i.slices[id]
	if !ok {
		return nil, false
	}
	return cloneSlice(sl), true
}

func (i *Index) StudyCount() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.studies)
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func cloneStudy(s *model.Study) *model.Study {
	c := *s
	c.SeriesIDs = nil
	return &c
}

func cloneStudyWithMembers(s *model.Study) *model.Study {
	c := *s
	c.SeriesIDs = append([]string(nil), s.SeriesIDs...)
	return &c
}

func cloneSeries(s *model.Series) *model.Series {
	c := *s
	c.SliceIDs = nil
	return &c
}

func cloneSeriesWithMembers(s *model.Series) *model.Series {
	c := *s
	c.SliceIDs = append([]string(nil), s.SliceIDs...)
	return &c
}

func cloneSlice(s *model.Slice) *model.Slice {
	c := *s
	return &c
}
