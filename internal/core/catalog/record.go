package catalog

import (
	"net/url"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

const (
	DefaultCompany    = "001"
	DefaultFiscalYear = 2025
	DefaultLineNumber = 1

	// AmbiencePrefix matches AMBIENCE_*, AMBIENTE_* and AMBIENT_* class codes after Normalize.
	AmbiencePrefix = "AMBIEN"

	// subtypeTokenIndex selects the token after the product code in "<CODE> <SUBTYPE> ...".
	subtypeTokenIndex = 1
)

var tokenSeparators = regexp.MustCompile(`[\s_\-]+`)

// BranchOf routes a class code to its reconciliation branch.
func BranchOf(classCode string) domain.Branch {
	if strings.HasPrefix(Normalize(classCode), AmbiencePrefix) {
		return domain.BranchAmbience
	}
	return domain.BranchStandard
}

// Build turns a raw row into a candidate record. The inherited context supplies the class
// code when the row carries none. The boolean is false when the row must be skipped.
func Build(raw domain.RawRow, inherited domain.Context, now time.Time) (domain.CandidateRecord, bool) {
	productCode := strings.TrimSpace(raw.ProductCode.Value)
	classCode := strings.TrimSpace(raw.ClassCode.Value)
	if classCode == "" {
		classCode = inherited.ClassCode()
	}
	if productCode == "" || classCode == "" {
		return domain.CandidateRecord{}, false
	}

	rec := domain.CandidateRecord{
		Company:       DefaultCompany,
		FiscalYear:    DefaultFiscalYear,
		ProductCode:   productCode,
		LineNumber:    DefaultLineNumber,
		ClassCode:     classCode,
		AttachmentRef: strings.TrimSpace(raw.AttachmentRef.Value),
		CreatedAt:     now.UTC(),
		Branch:        BranchOf(classCode),
	}
	if raw.Company.Valid {
		rec.Company = raw.Company.Value
	}
	if raw.FiscalYear.Valid {
		rec.FiscalYear = raw.FiscalYear.Value
	}
	if raw.LineNumber.Valid {
		rec.LineNumber = raw.LineNumber.Value
	}
	if raw.Description.Valid {
		v := raw.Description.Value
		rec.Description = &v
	}
	if raw.AssociatedDocType.Valid {
		v := raw.AssociatedDocType.Value
		rec.AssociatedDocType = &v
	}
	if raw.CreatedAt.Valid {
		rec.CreatedAt = raw.CreatedAt.Value
	}
	if raw.SourceModifiedAt.Valid {
		v := raw.SourceModifiedAt.Value
		rec.SourceModifiedAt = &v
	}

	if rec.Branch == domain.BranchAmbience {
		rec.ImageName = strings.TrimSpace(raw.ImageName.Value)
		rec.Subtype = strings.TrimSpace(raw.Subtype.Value)
		if rec.Subtype == "" {
			rec.Subtype = SubtypeFromAttachment(rec.AttachmentRef)
		}
	}
	return rec, true
}

// SubtypeFromAttachment derives the ambience subtype from the attachment's file name.
func SubtypeFromAttachment(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	segment := ref
	if idx := strings.LastIndexAny(segment, `/\`); idx >= 0 {
		segment = segment[idx+1:]
	}
	if decoded, err := url.PathUnescape(segment); err == nil {
		segment = decoded
	}
	segment = strings.TrimSuffix(segment, path.Ext(segment))

	tokens := make([]string, 0, 4)
	for _, tok := range tokenSeparators.Split(segment, -1) {
		if tok != "" {
			tokens = append(tokens, tok)
		}
	}
	if len(tokens) <= subtypeTokenIndex {
		return ""
	}
	return tokens[subtypeTokenIndex]
}

// SplitByBranch partitions records preserving their relative order.
func SplitByBranch(records []domain.CandidateRecord) (standard, ambience []domain.CandidateRecord) {
	for _, rec := range records {
		if rec.Branch == domain.BranchAmbience {
			ambience = append(ambience, rec)
			continue
		}
		standard = append(standard, rec)
	}
	return standard, ambience
}
