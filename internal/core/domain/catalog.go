package domain

import "time"

type Category string

const (
	CategoryNone     Category = ""
	CategoryArtistic Category = "ARTISTIC"
	CategoryAmbience Category = "AMBIENCE"
	CategoryProduct  Category = "PRODUCT"
)

type Quality string

const (
	QualityNone Quality = ""
	QualityHigh Quality = "HIGH"
	QualityLow  Quality = "LOW"
)

// Context is the classification inherited down a directory chain.
type Context struct {
	Category Category `json:"category,omitempty"`
	Quality  Quality  `json:"quality,omitempty"`
}

// ClassCode returns "<category>_<quality>", or "" when the context is not fully classified.
func (c Context) ClassCode() string {
	if c.Category == CategoryNone || c.Quality == QualityNone {
		return ""
	}
	return string(c.Category) + "_" + string(c.Quality)
}

type Branch string

const (
	BranchStandard Branch = "standard"
	BranchAmbience Branch = "ambience"
)

// NaturalKey identifies one logical image row. Subtype is empty for standard rows.
type NaturalKey struct {
	ProductCode string
	ClassCode   string
	Subtype     string
}

type CandidateRecord struct {
	Company           string     `json:"empresa"`
	FiscalYear        int        `json:"ejercicio"`
	ProductCode       string     `json:"codprodu"`
	LineNumber        int        `json:"linea"`
	Description       *string    `json:"descripcion,omitempty"`
	ClassCode         string     `json:"codclaarchivo"`
	ImageName         string     `json:"nombre,omitempty"`
	Subtype           string     `json:"subtipo,omitempty"`
	AttachmentRef     string     `json:"ficadjunto"`
	AssociatedDocType *string    `json:"tipdocasociado,omitempty"`
	CreatedAt         time.Time  `json:"fecalta"`
	SourceModifiedAt  *time.Time `json:"fecftpmod,omitempty"`
	Branch            Branch     `json:"-"`
}

func (r CandidateRecord) Key() NaturalKey {
	if r.Branch == BranchAmbience {
		return NaturalKey{ProductCode: r.ProductCode, ClassCode: r.ClassCode, Subtype: r.Subtype}
	}
	return NaturalKey{ProductCode: r.ProductCode, ClassCode: r.ClassCode}
}

// SourceModifiedMillis is the last-write-wins ordering value; absent timestamps sort as 0.
func (r CandidateRecord) SourceModifiedMillis() int64 {
	if r.SourceModifiedAt == nil {
		return 0
	}
	return r.SourceModifiedAt.UnixMilli()
}

// FileObservation is one image file reported by a tree scan.
type FileObservation struct {
	Path       string    `json:"path"`
	Folders    []string  `json:"folders"`
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
}

type ScanResult struct {
	Files        []FileObservation `json:"files"`
	Directories  []DirectoryEntry  `json:"directories"`
	FilesSkipped int               `json:"files_skipped"`
}

// BranchFailure reports a branch whose upsert failed and contributed no rows.
type BranchFailure struct {
	Branch Branch `json:"branch"`
	Rows   int    `json:"rows"`
	Error  string `json:"error"`
}

type ReconcileResult struct {
	UpdatedStandard int             `json:"updatedStandard"`
	UpdatedAmbience int             `json:"updatedAmbience"`
	Failures        []BranchFailure `json:"failures,omitempty"`
}

func (r ReconcileResult) Total() int {
	return r.UpdatedStandard + r.UpdatedAmbience
}
