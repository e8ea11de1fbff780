package docgen

import (
	"archive/zip"
	"bytes"
	"fmt"

	"github.com/beevik/etree"
	"github.com/openbrgy/portal/data"
)

// BuildTemplate assembles a minimal single-part DOCX from the embedded OOXML
// skeleton, one paragraph per input string. Lets tests fabricate template
// fixtures without binary files in the tree.
func BuildTemplate(paragraphs []string) ([]byte, error) {
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data.OOXMLDocumentSkeleton); err != nil {
		return nil, fmt.Errorf("parse document skeleton: %w", err)
	}
	body := doc.FindElement("//body")
	if body == nil {
		return nil, fmt.Errorf("document skeleton has no body")
	}
	for _, text := range paragraphs {
		para := body.CreateElement("w:p")
		run := para.CreateElement("w:r")
		t := run.CreateElement("w:t")
		t.SetText(text)
		preserveSpace(t)
	}
	mainPart, err := doc.WriteToBytes()
	if err != nil {
		return nil, fmt.Errorf("serialize document: %w", err)
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	parts := []struct {
		name string
		body []byte
	}{
		{contentTypesName, data.OOXMLContentTypes},
		{"_rels/.rels", data.OOXMLPackageRels},
		{mainRelsPartName, data.OOXMLDocumentRels},
		{mainPartName, mainPart},
	}
	for _, pt := range parts {
		w, err := zw.Create(pt.name)
		if err != nil {
			return nil, fmt.Errorf("zip create %s: %w", pt.name, err)
		}
		if _, err := w.Write(pt.body); err != nil {
			return nil, fmt.Errorf("zip write %s: %w", pt.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}
