// Package imaging implements the hierarchy resolver and the pixel rendering
// pipeline over the shared study/series/slice index.
package imaging

import (
	"context"

	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mriview/dicom-api/internal/dicomfile"
	"github.com/mriview/dicom-api/internal/model"
	"github.com/mriview/dicom-api/internal/repository"
	"github.com/mriview/dicom-api/internal/service/audit"
	"github.com/mriview/dicom-api/internal/storage"
	apperrors "github.com/mriview/dicom-api/pkg/errors"
	"github.com/mriview/dicom-api/pkg/metrics"
)

type Service struct {
	index   repository.Index
	store   storage.BlobStore
	auditor *audit.Service
	metrics *metrics.Metrics
}

// NewService wires the resolver and renderer to their collaborators.
// metrics may be nil when monitoring is disabled.
func NewService(index repository.Index, store storage.BlobStore, auditor *audit.Service, m *metrics.Metrics) *Service {
	return &Service{
		index:   index,
		store:   store,
		auditor: auditor,
		metrics: m,
	}
}

// ListStudies returns all studies in first-seen order.
func (s *Service) ListStudies(ctx context.Context) []*model.Study {
	return s.index.Studies()
}

// ListSeries returns the series of a study, empty when the study is unknown.
func (s *Service) ListSeries(ctx context.Context, studyID string) []*model.Series {
	return s.index.SeriesForStudy(studyID)
}

// ListSlices returns the ordered slices of a series, empty when the series
// is unknown.
func (s *Service) ListSlices(ctx context.Context, seriesID string) []*model.Slice {
	return s.index.SlicesForSeries(seriesID)
}

// GetSlice returns one slice record.
func (s *Service) GetSlice(ctx context.Context, sliceID string) (*model.Slice, bool) {
	return s.index.Slice(sliceID)
}

// GetMetadata re-reads the backing file and returns the structured header
// view. When the file is gone or no longer parseable the view is rebuilt
// from the index record alone, so an ingested slice always stays visible.
func (s *Service) GetMetadata(ctx context.Context, sliceID string) (*model.SliceMetadata, error) {
	sl, ok := s.index.Slice(sliceID)
	if !ok {
		return nil, apperrors.NotFound("slice", nil)
	}

	if sl.FilePath == "" || !s.store.Exists(sl.FilePath) {
		return metadataFromRecord(sl), nil
	}

	ds, err := dicomfile.OpenMetadata(sl.FilePath)
	if err != nil {
		return metadataFromRecord(sl), nil
	}

	return metadataFromDataset(sl, ds), nil
}

func metadataFromRecord(sl *model.Slice) *model.SliceMetadata {
	return &model.SliceMetadata{
		ID: sl.ID,
		Patient: model.PatientMeta{
			Name:      model.UnknownLabel,
			ID:        model.UnknownLabel,
			BirthDate: model.UnknownLabel,
			Sex:       model.UnknownLabel,
		},
		Study: model.StudyMeta{
			Date:        model.UnknownLabel,
			Time:        model.UnknownLabel,
			Description: model.UnknownLabel,
			ID:          sl.StudyID,
		},
		Series: model.SeriesMeta{
			Number:      model.UnknownLabel,
			Description: model.UnknownLabel,
			Modality:    model.UnknownLabel,
			BodyPart:    model.UnknownLabel,
		},
		Image: model.ImageMeta{
			Rows:           sl.Rows,
			Columns:        sl.Columns,
			InstanceNumber: sl.InstanceNumber,
			SliceLocation:  sl.SliceLocation,
			PixelSpacing:   []float64{1, 1},
		},
	}
}

func metadataFromDataset(sl *model.Slice, ds *dicomfile.Dataset) *model.SliceMetadata {
	stringOr := func(t tag.Tag, def string) string {
		if v := ds.String(t); v != "" {
			return v
		}
		return def
	}
	floatOr := func(t tag.Tag, def float64) float64 {
		if v, ok := ds.Float(t); ok {
			return v
		}
		return def
	}
	intOr := func(t tag.Tag, def int) int {
		if v, ok := ds.Int(t); ok {
			return v
		}
		return def
	}

	spacing := ds.Floats(tag.PixelSpacing)
	if len(spacing) == 0 {
		spacing = []float64{1, 1}
	}

	return &model.SliceMetadata{
		ID: sl.ID,
		Patient: model.PatientMeta{
			Name:      stringOr(tag.PatientName, model.UnknownLabel),
			ID:        stringOr(tag.PatientID, model.UnknownLabel),
			BirthDate: stringOr(tag.PatientBirthDate, model.UnknownLabel),
			Sex:       stringOr(tag.PatientSex, model.UnknownLabel),
		},
		Study: model.StudyMeta{
			Date:        stringOr(tag.StudyDate, model.UnknownLabel),
			Time:        stringOr(tag.StudyTime, model.UnknownLabel),
			Description: stringOr(tag.StudyDescription, model.UnknownLabel),
			ID:          stringOr(tag.StudyID, model.UnknownLabel),
		},
		Series: model.SeriesMeta{
			Number:      stringOr(tag.SeriesNumber, model.UnknownLabel),
			Description: stringOr(tag.SeriesDescription, model.UnknownLabel),
			Modality:    stringOr(tag.Modality, model.UnknownLabel),
			BodyPart:    stringOr(tag.BodyPartExamined, model.UnknownLabel),
		},
		Image: model.ImageMeta{
			Rows:           intOr(tag.Rows, 0),
			Columns:        intOr(tag.Columns, 0),
			InstanceNumber: intOr(tag.InstanceNumber, 0),
			SliceLocation:  floatOr(tag.SliceLocation, 0),
			SliceThickness: floatOr(tag.SliceThickness, 0),
			PixelSpacing:   spacing,
		},
		Acquisition: model.AcquisitionMeta{
			MagneticFieldStrength: floatOr(tag.MagneticFieldStrength, 0),
			SequenceName:          stringOr(tag.SequenceName, model.UnknownLabel),
			RepetitionTime:        floatOr(tag.RepetitionTime, 0),
			EchoTime:              floatOr(tag.EchoTime, 0),
		},
	}
}

func (s *Service) audit(ctx context.Context, action, entityType, entityID, outcome string) {
	if s.auditor == nil {
		return
	}
	s.auditor.Log(ctx, action, entityType, entityID, outcome, nil)
}

func (s *Service) trackStudies() {
	if s.metrics != nil {
		s.metrics.StudiesTracked.Set(float64(s.index.StudyCount()))
	}
}
