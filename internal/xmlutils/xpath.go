// Package xmlutils evaluates XPath expressions against XML documents, including the
// parts stored inside OOXML (zip) packages.
package xmlutils

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"

	"gopkg.in/xmlpath.v2"
)

// Parse reads an XML document and returns its root node.
func Parse(r io.Reader) (*xmlpath.Node, error) {
	root, err := xmlpath.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse XML: %w", err)
	}
	return root, nil
}

// ExtractFromXML extracts values from an XML node using an XPath expression
func ExtractFromXML(root *xmlpath.Node, xpath string) ([]string, error) {
	path, err := xmlpath.Compile(xpath)
	if err != nil {
		return nil, fmt.Errorf("failed to compile XPath: %w", err)
	}

	var values []string
	iter := path.Iter(root)
	for iter.Next() {
		values = append(values, strings.TrimSpace(iter.Node().String()))
	}
	return values, nil
}

// ExtractFromPackage opens the zip package in data, parses the part named entry and
// evaluates xpath against it.
func ExtractFromPackage(data []byte, entry, xpath string) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("not a zip package: %w", err)
	}
	for _, f := range zr.File {
		if f.Name != entry {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s: %w", entry, err)
		}
		defer func() { _ = rc.Close() }()

		root, err := Parse(rc)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", entry, err)
		}
		return ExtractFromXML(root, xpath)
	}
	return nil, fmt.Errorf("package has no part %s", entry)
}
