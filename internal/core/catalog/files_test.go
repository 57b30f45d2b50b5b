package catalog

import "testing"

func TestFileFilters(t *testing.T) {
	for name, want := range map[string]bool{"._A1.jpg": true, ".DS_Store": true, "Thumbs.db": true, "A1.jpg": false} {
		if got := IsIgnorableFile(name); got != want {
			t.Fatalf("IsIgnorableFile(%q) = %v, want %v", name, got, want)
		}
	}
	for name, want := range map[string]bool{"A1 COCINA.JPEG": true, "a1.tiff": true, "a1.psd": false} {
		if got := IsImageFile(name); got != want {
			t.Fatalf("IsImageFile(%q) = %v, want %v", name, got, want)
		}
	}
	for name, want := range map[string]bool{"Brutos 2024": true, "originales": true, "ALTA": false} {
		if got := IsExcludedFolder(name, DefaultExcludedFolderTokens); got != want {
			t.Fatalf("IsExcludedFolder(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestProductCodeFromFileName(t *testing.T) {
	cases := map[string]string{
		"ABC123 COCINA 01.jpg": "ABC123",
		"ABC123.jpg":           "ABC123",
		" foo.jpg":             "",
	}
	for in, want := range cases {
		if got := ProductCodeFromFileName(in); got != want {
			t.Fatalf("ProductCodeFromFileName(%q) = %q, want %q", in, got, want)
		}
	}
}
