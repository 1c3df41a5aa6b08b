package repository

import (
	"context"

	"github.com/mriview/dicom-api/internal/model"
)

// All repository interfaces in one file
type (
	// Index is the shared three-level hierarchy index. Mutation happens only
	// through Insert; read methods return copies so callers never observe a
	// membership list mid-re-sort.
	Index interface {
		// Insert applies the insertion protocol atomically: create the study
		// and series if absent (identity fields are first-writer-wins),
		// append memberships, default the instance number to the pre-insert
		// slice count plus one when haveInstance is false, and re-establish
		// the series ordering invariant. Returns whether the study and
		// series records were created by this call.
		Insert(study *model.Study, series *model.Series, slice *model.Slice, haveInstance bool) (studyCreated, seriesCreated bool)

		Studies() []*model.Study
		Study(id string) (*model.Study, bool)
		SeriesForStudy(studyID string) []*model.Series
		Series(id string) (*model.Series, bool)
		SlicesForSeries(seriesID string) []*model.Slice
		Slice(id string) (*model.Slice, bool)
		StudyCount() int
	}

	// AuditRepository persists access-log rows. Implementations must be safe
	// for concurrent use.
	AuditRepository interface {
		Create(ctx context.Context, entry *model.AccessLog) error
		List(ctx context.Context, filters map[string]interface{}) ([]*model.AccessLog, error)
	}
)
