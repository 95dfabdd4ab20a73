package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"path"
	"strings"
)

// opfPackage mirrors the parts of the package document Verify needs.
type opfPackage struct {
	XMLName          xml.Name    `xml:"package"`
	Version          string      `xml:"version,attr"`
	UniqueIdentifier string      `xml:"unique-identifier,attr"`
	Identifiers      []opfIdent  `xml:"metadata>identifier"`
	Manifest         opfManifest `xml:"manifest"`
	Spine            opfSpine    `xml:"spine"`
}

type opfIdent struct {
	ID    string `xml:"id,attr"`
	Value string `xml:",chardata"`
}

type opfManifest struct {
	Items []opfManifestItem `xml:"item"`
}

type opfManifestItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

type opfSpine struct {
	ItemRefs []opfSpineItemRef `xml:"itemref"`
}

type opfSpineItemRef struct {
	IDRef string `xml:"idref,attr"`
}

// Verify checks structural validity of a produced archive: the mimetype
// entry is first, stored and exact; the OPF parses; the manifest references
// every packaged file and references nothing absent; every spine idref
// resolves. It exists for tests and post-build sanity checks, not as a
// general-purpose EPUB validator.
func Verify(epubPath string) error {
	zr, err := zip.OpenReader(epubPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", epubPath, err)
	}
	defer zr.Close()

	if len(zr.File) == 0 {
		return fmt.Errorf("%s: empty archive", epubPath)
	}
	first := zr.File[0]
	if first.Name != mimetypeName {
		return fmt.Errorf("first entry is %q, want %q", first.Name, mimetypeName)
	}
	if first.Method != zip.Store {
		return fmt.Errorf("mimetype entry is compressed")
	}
	content, err := readZipFile(first)
	if err != nil {
		return err
	}
	if string(content) != mimetypeContent {
		return fmt.Errorf("mimetype content = %q, want %q", content, mimetypeContent)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	opfFile, ok := files[opfPath]
	if !ok {
		return fmt.Errorf("missing %s", opfPath)
	}
	opfData, err := readZipFile(opfFile)
	if err != nil {
		return err
	}
	var pkg opfPackage
	if err := xml.Unmarshal(opfData, &pkg); err != nil {
		return fmt.Errorf("parse OPF: %w", err)
	}
	if pkg.Version != "3.0" {
		return fmt.Errorf("package version = %q, want 3.0", pkg.Version)
	}

	// Manifest hrefs are relative to the OPF directory.
	opfDir := path.Dir(opfPath)
	manifested := make(map[string]bool, len(pkg.Manifest.Items))
	ids := make(map[string]bool, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		full := path.Join(opfDir, item.Href)
		if _, ok := files[full]; !ok {
			return fmt.Errorf("manifest references absent file %s", full)
		}
		manifested[full] = true
		ids[item.ID] = true
	}
	for name := range files {
		if name == mimetypeName || name == opfPath || strings.HasPrefix(name, "META-INF/") {
			continue
		}
		if !manifested[name] {
			return fmt.Errorf("archive file %s not in manifest", name)
		}
	}

	for _, ref := range pkg.Spine.ItemRefs {
		if !ids[ref.IDRef] {
			return fmt.Errorf("spine idref %q has no manifest item", ref.IDRef)
		}
	}
	return nil
}

// UniqueIdentifier extracts the package's unique identifier value.
func UniqueIdentifier(epubPath string) (string, error) {
	zr, err := zip.OpenReader(epubPath)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", epubPath, err)
	}
	defer zr.Close()

	for _, f := range zr.File {
		if f.Name != opfPath {
			continue
		}
		data, err := readZipFile(f)
		if err != nil {
			return "", err
		}
		var pkg opfPackage
		if err := xml.Unmarshal(data, &pkg); err != nil {
			return "", fmt.Errorf("parse OPF: %w", err)
		}
		for _, ident := range pkg.Identifiers {
			if ident.ID == pkg.UniqueIdentifier {
				return strings.TrimSpace(ident.Value), nil
			}
		}
		return "", fmt.Errorf("unique-identifier %q not found in metadata", pkg.UniqueIdentifier)
	}
	return "", fmt.Errorf("missing %s", opfPath)
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s in archive: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read %s in archive: %w", f.Name, err)
	}
	return data, nil
}
