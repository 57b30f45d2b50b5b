package catalog

import (
	"testing"

	"github.com/kirillkom/catalog-image-sync/internal/core/domain"
)

func TestContextForFoldersProductHigh(t *testing.T) {
	ctx := ContextForFolders([]string{"PRODUCTOS", "ALTA"})
	want := domain.Context{Category: domain.CategoryProduct, Quality: domain.QualityHigh}
	if ctx != want {
		t.Fatalf("expected %+v, got %+v", want, ctx)
	}
	if ctx.ClassCode() != "PRODUCT_HIGH" {
		t.Fatalf("unexpected class code %q", ctx.ClassCode())
	}
}

func TestContextForFoldersLaterQualityOverrides(t *testing.T) {
	ctx := ContextForFolders([]string{"ARTISTICA", "ALTA", "BAJA"})
	want := domain.Context{Category: domain.CategoryArtistic, Quality: domain.QualityLow}
	if ctx != want {
		t.Fatalf("expected %+v, got %+v", want, ctx)
	}
	if ctx.ClassCode() != "ARTISTIC_LOW" {
		t.Fatalf("unexpected class code %q", ctx.ClassCode())
	}
}

func TestNextContextCategoryResetsQuality(t *testing.T) {
	parent := domain.Context{Category: domain.CategoryProduct, Quality: domain.QualityHigh}
	next := NextContext("Ambientes", parent)
	if next != (domain.Context{Category: domain.CategoryAmbience}) {
		t.Fatalf("expected quality reset, got %+v", next)
	}
	if next.ClassCode() != "" {
		t.Fatalf("context without quality must not yield a class code, got %q", next.ClassCode())
	}
}

func TestNextContextQualityWithoutCategoryImpliesProduct(t *testing.T) {
	next := NextContext(" buena ", domain.Context{})
	want := domain.Context{Category: domain.CategoryProduct, Quality: domain.QualityHigh}
	if next != want {
		t.Fatalf("expected %+v, got %+v", want, next)
	}
}

func TestNextContextInheritsWithoutSignal(t *testing.T) {
	parent := domain.Context{Category: domain.CategoryAmbience, Quality: domain.QualityLow}
	if got := NextContext("2024", parent); got != parent {
		t.Fatalf("expected parent context %+v, got %+v", parent, got)
	}
}

func TestNextContextMatchesExactAmbAndAccents(t *testing.T) {
	cases := []struct {
		folder string
		want   domain.Category
	}{
		{"amb", domain.CategoryAmbience},
		{"Artística", domain.CategoryArtistic},
		{"AMBAR", domain.CategoryNone},
	}
	for _, tc := range cases {
		if got := NextContext(tc.folder, domain.Context{}).Category; got != tc.want {
			t.Fatalf("folder %q: expected %v, got %v", tc.folder, tc.want, got)
		}
	}
}

func TestNormalizeStripsDiacritics(t *testing.T) {
	if got := Normalize("  ambiénte España "); got != "AMBIENTE ESPANA" {
		t.Fatalf("unexpected normalized value %q", got)
	}
}
