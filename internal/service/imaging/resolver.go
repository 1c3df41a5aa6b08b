package imaging

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom/pkg/tag"

	"github.com/mriview/dicom-api/internal/dicomfile"
	"github.com/mriview/dicom-api/internal/model"
)

// Resolve saves the uploaded bytes, decodes the header, and inserts the
// slice into the hierarchy index. Header parse failures degrade to a
// minimal-information record instead of rejecting the upload; the only
// error returned is a durable-store write failure.
func (s *Service) Resolve(ctx context.Context, fileBytes []byte, filename, relativePath string) (*model.Slice, error) {
	start := time.Now()

	sliceID := uuid.New().String()
	path, err := s.store.Save(sliceID, fileBytes)
	if err != nil {
		if s.metrics != nil {
			s.metrics.SlicesBySaveErr.WithLabelValues("write").Inc()
		}
		return nil, fmt.Errorf("save upload %s: %w", filename, err)
	}

	if relativePath == "" {
		relativePath = filename
	}
	folder := ParseFolderStructure(relativePath)

	var sl *model.Slice
	ds, parseErr := dicomfile.ParseBytes(fileBytes)
	if parseErr != nil {
		log.Warn().Err(parseErr).Str("filename", filename).Msg("header decode failed, indexing degraded record")
		sl = s.indexDegraded(sliceID, filename, path, folder, parseErr)
		if s.metrics != nil {
			s.metrics.IngestFailures.Inc()
		}
	} else {
		sl = s.indexDataset(ds, sliceID, filename, path, folder)
	}

	if s.metrics != nil {
		s.metrics.SlicesIngested.Inc()
		s.metrics.IngestLatency.Observe(time.Since(start).Seconds())
	}
	s.trackStudies()
	s.audit(ctx, "upload", "slice", sl.ID, "ok")

	return sl, nil
}

// ParseFolderStructure derives the fallback identity from a relative path.
// Expected layout: patient/body_location/file.dcm, with deeper nesting
// collapsed into the subfolder.
func ParseFolderStructure(relativePath string) model.FolderInfo {
	parts := strings.Split(strings.ReplaceAll(relativePath, "\\", "/"), "/")

	switch {
	case len(parts) >= 3:
		sub := parts[1]
		if len(parts) > 3 {
			sub = strings.Join(parts[1:len(parts)-1], "/")
		}
		return model.FolderInfo{
			PatientFolder: parts[0],
			BodyLocation:  parts[1],
			Subfolder:     sub,
		}
	case len(parts) == 2:
		return model.FolderInfo{
			PatientFolder: parts[0],
			BodyLocation:  parts[0],
			Subfolder:     parts[0],
		}
	default:
		return model.FolderInfo{
			PatientFolder: model.UnknownLabel,
			BodyLocation:  model.UnknownLabel,
			Subfolder:     "",
		}
	}
}

// fallbackID synthesizes a deterministic identifier from a path segment,
// falling back to the slice's own identifier when the segment is empty.
// The slice-id fallback gives up grouping but guarantees uniqueness.
func fallbackID(prefix, segment, sliceID string) string {
	if segment != "" {
		return prefix + segment
	}
	return sliceID
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (s *Service) indexDataset(ds *dicomfile.Dataset, sliceID, filename, path string, folder model.FolderInfo) *model.Slice {
	patientName := firstNonEmpty(ds.String(tag.PatientName), folder.PatientFolder, model.UnknownLabel)

	studyID := ds.String(tag.StudyInstanceUID)
	if studyID == "" {
		studyID = fallbackID(model.StudyIDPrefix, folder.PatientFolder, sliceID)
	}

	study := &model.Study{
		ID:               studyID,
		PatientName:      patientName,
		PatientID:        firstNonEmpty(ds.String(tag.PatientID), folder.PatientFolder, model.UnknownLabel),
		StudyDate:        firstNonEmpty(ds.String(tag.StudyDate), model.UnknownLabel),
		StudyDescription: firstNonEmpty(ds.String(tag.StudyDescription), "Patient: "+patientName),
		Modality:         firstNonEmpty(ds.String(tag.Modality), model.DefaultModality),
	}

	seriesID := ds.String(tag.SeriesInstanceUID)
	if seriesID == "" {
		seriesID = fallbackID(model.SeriesIDPrefix, folder.Subfolder, sliceID)
	}

	seriesNumber := model.DefaultSeriesNumber
	if n, ok := ds.Int(tag.SeriesNumber); ok {
		seriesNumber = n
	}

	series := &model.Series{
		ID:                seriesID,
		StudyID:           studyID,
		SeriesNumber:      seriesNumber,
		SeriesDescription: firstNonEmpty(ds.String(tag.SeriesDescription), folder.BodyLocation, model.DefaultSeriesLabel),
		BodyPart:          firstNonEmpty(ds.String(tag.BodyPartExamined), folder.BodyLocation),
	}

	instanceNumber, haveInstance := ds.Int(tag.InstanceNumber)

	sliceLocation := model.DefaultSliceLocation
	if loc, ok := ds.Float(tag.SliceLocation); ok {
		sliceLocation = loc
	}

	rows, _ := ds.Int(tag.Rows)
	cols, _ := ds.Int(tag.Columns)

	sl := &model.Slice{
		ID:             sliceID,
		SeriesID:       seriesID,
		StudyID:        studyID,
		InstanceNumber: instanceNumber,
		SliceLocation:  sliceLocation,
		Filename:       filename,
		FilePath:       path,
		Rows:           rows,
		Columns:        cols,
	}

	s.index.Insert(study, series, sl, haveInstance)
	return sl
}

// indexDegraded still performs study and series creation from path identity
// alone, so an un-parseable upload stays visible and retrievable.
func (s *Service) indexDegraded(sliceID, filename, path string, folder model.FolderInfo, parseErr error) *model.Slice {
	studyID := fallbackID(model.StudyIDPrefix, folder.PatientFolder, sliceID)
	seriesID := fallbackID(model.SeriesIDPrefix, folder.Subfolder, sliceID)

	study := &model.Study{
		ID:               studyID,
		PatientName:      firstNonEmpty(folder.PatientFolder, model.UnknownLabel),
		PatientID:        firstNonEmpty(folder.PatientFolder, model.UnknownLabel),
		StudyDate:        model.UnknownLabel,
		StudyDescription: model.FallbackStudyDesc,
		Modality:         model.DefaultModality,
	}

	series := &model.Series{
		ID:                seriesID,
		StudyID:           studyID,
		SeriesNumber:      model.DefaultSeriesNumber,
		SeriesDescription: firstNonEmpty(folder.BodyLocation, model.FallbackSeriesDesc),
		BodyPart:          folder.BodyLocation,
	}

	sl := &model.Slice{
		ID:       sliceID,
		SeriesID: seriesID,
		StudyID:  studyID,
		Filename: filename,
		FilePath: path,
		Error:    parseErr.Error(),
	}

	s.index.Insert(study, series, sl, false)
	return sl
}
