package catalog

import (
	"strings"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

func detectCategory(name string) domain.Category {
	switch {
	case strings.Contains(name, "ART"):
		return domain.CategoryArtistic
	case strings.Contains(name, "AMBIEN"), name == "AMB":
		return domain.CategoryAmbience
	case strings.Contains(name, "PROD"):
		return domain.CategoryProduct
	default:
		return domain.CategoryNone
	}
}

func detectQuality(name string) domain.Quality {
	switch {
	case strings.Contains(name, "BUENA"), strings.Contains(name, "ALTA"):
		return domain.QualityHigh
	case strings.Contains(name, "BAJA"):
		return domain.QualityLow
	default:
		return domain.QualityNone
	}
}

// NextContext derives a folder's context from its parent's.
// A category signal resets quality; a quality signal without a category implies PRODUCT.
func NextContext(folderName string, parent domain.Context) domain.Context {
	name := Normalize(folderName)
	next := parent

	if category := detectCategory(name); category != domain.CategoryNone {
		next = domain.Context{Category: category}
	}
	if quality := detectQuality(name); quality != domain.QualityNone {
		if next.Category == domain.CategoryNone {
			next.Category = domain.CategoryProduct
		}
		next.Quality = quality
	}
	return next
}

// ContextForFolders folds NextContext over a root-to-leaf folder chain.
func ContextForFolders(folders []string) domain.Context {
	var ctx domain.Context
	for _, folder := range folders {
		ctx = NextContext(folder, ctx)
	}
	return ctx
}
