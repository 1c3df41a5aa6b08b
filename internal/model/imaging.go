package model

// Identity fallbacks used when a file carries no usable header values.
const (
	UnknownLabel         = "Unknown"
	DefaultSeriesLabel   = "Series"
	DefaultModality      = "MR"
	StudyIDPrefix        = "study_"
	SeriesIDPrefix       = "series_"
	FallbackStudyDesc    = "Uploaded Study"
	FallbackSeriesDesc   = "Uploaded Series"
	DefaultSeriesNumber  = 1
	DefaultSliceLocation = 0.0
)

// Study represents one patient imaging encounter. The identifier is the
// embedded StudyInstanceUID when present, otherwise synthesized from the
// top-level upload folder. Identity fields are written once, on creation;
// later slices only append series membership.
type Study struct {
	ID               string   `json:"id"`
	PatientName      string   `json:"patient_name"`
	PatientID        string   `json:"patient_id"`
	StudyDate        string   `json:"study_date"`
	StudyDescription string   `json:"study_description"`
	Modality         string   `json:"modality"`
	SeriesIDs        []string `json:"series_ids"`
}

// Series represents one acquisition run within a study. SliceIDs is kept
// sorted by (instance number, slice location) at all times; ties keep
// insertion order.
type Series struct {
	ID                string   `json:"id"`
	StudyID           string   `json:"study_id"`
	SeriesNumber      int      `json:"series_number"`
	SeriesDescription string   `json:"series_description"`
	BodyPart          string   `json:"body_part"`
	SliceIDs          []string `json:"slice_ids"`
}

// Slice represents one 2-D image plane or frame stack. The identifier is
// minted fresh per upload; byte-identical uploads are distinct slices. The
// backing file at FilePath is the sole source of truth for pixels.
type Slice struct {
	ID             string  `json:"id"`
	SeriesID       string  `json:"series_id"`
	StudyID        string  `json:"study_id"`
	InstanceNumber int     `json:"instance_number"`
	SliceLocation  float64 `json:"slice_location"`
	Filename       string  `json:"filename"`
	FilePath       string  `json:"file_path"`
	Rows           int     `json:"rows"`
	Columns        int     `json:"columns"`
	Error          string  `json:"error,omitempty"`
}

// FolderInfo carries the path-derived fallback identity for one upload.
type FolderInfo struct {
	PatientFolder string
	BodyLocation  string
	Subfolder     string
}

// ImageFormat selects the output container for a render.
type ImageFormat string

const (
	FormatPNG  ImageFormat = "png"
	FormatJPEG ImageFormat = "jpeg"
)

// ContentType returns the MIME type for the format.
func (f ImageFormat) ContentType() string {
	if f == FormatJPEG {
		return "image/jpeg"
	}
	return "image/png"
}

// Window is an explicit display window in rescaled physical units.
type Window struct {
	Center float64
	Width  float64
}

// UploadFileResult reports the outcome for one file of an upload batch.
type UploadFileResult struct {
	Success      bool   `json:"success"`
	Filename     string `json:"filename"`
	RelativePath string `json:"relative_path,omitempty"`
	SliceID      string `json:"slice_id,omitempty"`
	StudyID      string `json:"study_id,omitempty"`
	SeriesID     string `json:"series_id,omitempty"`
	Error        string `json:"error,omitempty"`
}

// UploadResponse summarizes an upload batch. A single bad file never fails
// the batch.
type UploadResponse struct {
	Uploaded int                `json:"uploaded"`
	Failed   int                `json:"failed"`
	Files    []UploadFileResult `json:"files"`
}
