// Package epub extracts text content from EPUB archives for the
// built-in PDF conversion fallback. It resolves the OPF package via
// META-INF/container.xml, walks the spine in reading order, and pulls
// plain text out of each content document. Layout, images, and styling
// are intentionally ignored.
package epub

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformed indicates an archive that is not a readable EPUB.
var ErrMalformed = errors.New("malformed epub")

// Book holds the content extracted from an EPUB: document metadata and
// the text of each spine document in reading order.
type Book struct {
	Title    string
	Author   string
	Chapters []string
}

const containerPath = "META-INF/container.xml"

type containerXML struct {
	RootFiles []struct {
		FullPath  string `xml:"full-path,attr"`
		MediaType string `xml:"media-type,attr"`
	} `xml:"rootfiles>rootfile"`
}

type opfPackage struct {
	Metadata struct {
		Titles   []string `xml:"http://purl.org/dc/elements/1.1/ title"`
		Creators []string `xml:"http://purl.org/dc/elements/1.1/ creator"`
	} `xml:"metadata"`
	Manifest struct {
		Items []opfItem `xml:"item"`
	} `xml:"manifest"`
	Spine struct {
		ItemRefs []struct {
			IDRef string `xml:"idref,attr"`
		} `xml:"itemref"`
	} `xml:"spine"`
}

type opfItem struct {
	ID        string `xml:"id,attr"`
	Href      string `xml:"href,attr"`
	MediaType string `xml:"media-type,attr"`
}

// Extract opens the EPUB at path and returns its metadata and the text
// of every spine document in reading order.
func Extract(path string) (*Book, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	defer zr.Close()

	return extract(&zr.Reader)
}

func extract(zr *zip.Reader) (*Book, error) {
	opfPath, err := findOPFPath(zr)
	if err != nil {
		return nil, err
	}

	opfData, err := readEntry(zr, opfPath)
	if err != nil {
		return nil, err
	}

	pkg, err := parseOPF(opfData)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]opfItem, len(pkg.Manifest.Items))
	for _, item := range pkg.Manifest.Items {
		byID[item.ID] = item
	}

	book := &Book{}
	if len(pkg.Metadata.Titles) > 0 {
		book.Title = strings.TrimSpace(pkg.Metadata.Titles[0])
	}
	if len(pkg.Metadata.Creators) > 0 {
		book.Author = strings.TrimSpace(pkg.Metadata.Creators[0])
	}

	for _, ref := range pkg.Spine.ItemRefs {
		item, ok := byID[ref.IDRef]
		if !ok || !isContentDocument(item.MediaType) {
			continue
		}

		docPath := resolveWithin(opfPath, item.Href)
		if docPath == "" {
			continue
		}

		docData, err := readEntry(zr, docPath)
		if err != nil {
			// A missing or unreadable chapter degrades to a gap, not a
			// failed extraction.
			continue
		}

		text, err := extractText(docData)
		if err != nil || text == "" {
			continue
		}
		book.Chapters = append(book.Chapters, text)
	}

	if len(book.Chapters) == 0 {
		return nil, fmt.Errorf("%w: no readable spine documents", ErrMalformed)
	}

	return book, nil
}

// findOPFPath locates the OPF package document, preferring the
// container.xml rootfile and falling back to scanning for a .opf entry.
func findOPFPath(zr *zip.Reader) (string, error) {
	if f := locateEntry(zr, containerPath); f != nil {
		data, err := readFile(f)
		if err != nil {
			return "", err
		}

		var c containerXML
		if err := decodeXML(data, &c); err != nil {
			return "", fmt.Errorf("%w: container.xml: %v", ErrMalformed, err)
		}

		for _, rf := range c.RootFiles {
			p := strings.TrimSpace(rf.FullPath)
			if p == "" {
				continue
			}
			if rf.MediaType == "" || strings.EqualFold(strings.TrimSpace(rf.MediaType), "application/oebps-package+xml") {
				return p, nil
			}
		}
	}

	for _, f := range zr.File {
		if strings.HasSuffix(strings.ToLower(f.Name), ".opf") {
			return f.Name, nil
		}
	}

	return "", fmt.Errorf("%w: no OPF package document", ErrMalformed)
}

func parseOPF(data []byte) (*opfPackage, error) {
	var pkg opfPackage
	if err := decodeXML(data, &pkg); err != nil {
		return nil, fmt.Errorf("%w: OPF: %v", ErrMalformed, err)
	}
	return &pkg, nil
}

// decodeXML parses XML leniently: real-world OPF files carry HTML named
// entities that a strict parser rejects.
func decodeXML(data []byte, v any) error {
	dec := xml.NewDecoder(bytes.NewReader(stripBOM(data)))
	dec.Strict = false
	dec.Entity = xml.HTMLEntity
	return dec.Decode(v)
}

func isContentDocument(mediaType string) bool {
	switch strings.ToLower(strings.TrimSpace(mediaType)) {
	case "application/xhtml+xml", "text/html":
		return true
	}
	return false
}
