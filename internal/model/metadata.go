package model

// SliceMetadata is the structured header view returned for a single slice,
// grouped the way a viewer presents it. Values are re-read from the backing
// file on every call; absent tags fall back to "Unknown" or zero.
type SliceMetadata struct {
	ID          string          `json:"id"`
	Patient     PatientMeta     `json:"patient"`
	Study       StudyMeta       `json:"study"`
	Series      SeriesMeta      `json:"series"`
	Image       ImageMeta       `json:"image"`
	Acquisition AcquisitionMeta `json:"acquisition"`
}

type PatientMeta struct {
	Name      string `json:"name"`
	ID        string `json:"id"`
	BirthDate string `json:"birth_date"`
	Sex       string `json:"sex"`
}

type StudyMeta struct {
	Date        string `json:"date"`
	Time        string `json:"time"`
	Description string `json:"description"`
	ID          string `json:"id"`
}

type SeriesMeta struct {
	Number      string `json:"number"`
	Description string `json:"description"`
	Modality    string `json:"modality"`
	BodyPart    string `json:"body_part"`
}

type ImageMeta struct {
	Rows           int       `json:"rows"`
	Columns        int       `json:"columns"`
	InstanceNumber int       `json:"instance_number"`
	SliceLocation  float64   `json:"slice_location"`
	SliceThickness float64   `json:"slice_thickness"`
	PixelSpacing   []float64 `json:"pixel_spacing"`
}

type AcquisitionMeta struct {
	MagneticFieldStrength float64 `json:"magnetic_field_strength"`
	SequenceName          string  `json:"sequence_name"`
	RepetitionTime        float64 `json:"repetition_time"`
	EchoTime              float64 `json:"echo_time"`
}
