package docgen

import (
	"archive/zip"
	"bytes"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/beevik/etree"
)

// ErrTemplateUnreadable signals a template whose zip container or main
// document part cannot be parsed. Callers translate it to a validation
// failure instead of crashing.
var ErrTemplateUnreadable = errors.New("template unreadable")

const (
	mainPartName     = "word/document.xml"
	mainRelsPartName = "word/_rels/document.xml.rels"
	contentTypesName = "[Content_Types].xml"

	nsRelationships = "http://schemas.openxmlformats.org/package/2006/relationships"
	nsImageRelType  = "http://schemas.openxmlformats.org/officeDocument/2006/relationships/image"
)

type part struct {
	name string
	data []byte
}

// Package is an editable OOXML package: parts are loaded into memory, XML
// parts under edit are held as element trees, and untouched parts round-trip
// byte for byte. This replaces string surgery on raw OOXML with structured
// mutation.
type Package struct {
	parts []part
	index map[string]int

	// parsed XML parts, keyed by part name; serialized over the raw bytes on save
	edited map[string]*etree.Document
}

// Open parses a DOCX binary into an editable package. The zip container and
// the main document part must both parse.
func Open(data []byte) (*Package, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTemplateUnreadable, err)
	}

	pkg := &Package{
		index:  make(map[string]int),
		edited: make(map[string]*etree.Document),
	}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open part %s: %v", ErrTemplateUnreadable, f.Name, err)
		}
		body, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read part %s: %v", ErrTemplateUnreadable, f.Name, err)
		}
		pkg.index[f.Name] = len(pkg.parts)
		pkg.parts = append(pkg.parts, part{name: f.Name, data: body})
	}

	if _, ok := pkg.index[mainPartName]; !ok {
		return nil, fmt.Errorf("%w: missing %s", ErrTemplateUnreadable, mainPartName)
	}
	if _, err := pkg.xmlPart(mainPartName); err != nil {
		return nil, err
	}
	return pkg, nil
}

// xmlPart returns the parsed tree for a part, parsing it on first access.
func (p *Package) xmlPart(name string) (*etree.Document, error) {
	if doc, ok := p.edited[name]; ok {
		return doc, nil
	}
	idx, ok := p.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: missing part %s", ErrTemplateUnreadable, name)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(p.parts[idx].data); err != nil {
		return nil, fmt.Errorf("%w: parse %s: %v", ErrTemplateUnreadable, name, err)
	}
	p.edited[name] = doc
	return doc, nil
}

// MainText returns the concatenated visible text of the main document part,
// paragraph by paragraph separated by newlines.
func (p *Package) MainText() (string, error) {
	doc, err := p.xmlPart(mainPartName)
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, para := range doc.FindElements("//p") {
		if sb.Len() > 0 {
			sb.WriteByte('\n')
		}
		for _, t := range textElements(para) {
			sb.WriteString(t.Text())
		}
	}
	return sb.String(), nil
}

// ReplaceText substitutes every occurrence of old with new in the main
// document part and returns the number of paragraphs touched. Tokens split
// across runs are handled by collapsing each affected paragraph's text into
// its first run.
func (p *Package) ReplaceText(old, new string) (int, error) {
	if old == "" {
		return 0, nil
	}
	doc, err := p.xmlPart(mainPartName)
	if err != nil {
		return 0, err
	}
	touched := 0
	for _, para := range doc.FindElements("//p") {
		if replaceInParagraph(para, old, new) {
			touched++
		}
	}
	return touched, nil
}

// textElements collects the w:t descendants of a paragraph in document order.
func textElements(para *etree.Element) []*etree.Element {
	var out []*etree.Element
	var walk func(e *etree.Element)
	walk = func(e *etree.Element) {
		for _, child := range e.ChildElements() {
			if child.Tag == "t" {
				out = append(out, child)
				continue
			}
			walk(child)
		}
	}
	walk(para)
	return out
}

// replaceInParagraph rewrites a paragraph containing the token. When the
// token is split across runs the full paragraph text moves into the first
// run; formatting of later runs is lost for that paragraph, which matches
// what substitution into user-authored templates needs.
func replaceInParagraph(para *etree.Element, old, new string) bool {
	texts := textElements(para)
	if len(texts) == 0 {
		return false
	}

	// Fast path: token contained in a single run.
	inSingle := false
	for _, t := range texts {
		if strings.Contains(t.Text(), old) {
			t.SetText(strings.ReplaceAll(t.Text(), old, new))
			preserveSpace(t)
			inSingle = true
		}
	}
	if inSingle {
		return true
	}

	var full strings.Builder
	for _, t := range texts {
		full.WriteString(t.Text())
	}
	if !strings.Contains(full.String(), old) {
		return false
	}

	texts[0].SetText(strings.ReplaceAll(full.String(), old, new))
	preserveSpace(texts[0])
	for _, t := range texts[1:] {
		t.SetText("")
	}
	return true
}

// preserveSpace keeps leading/trailing whitespace significant for Word.
func preserveSpace(t *etree.Element) {
	text := t.Text()
	if strings.HasPrefix(text, " ") || strings.HasSuffix(text, " ") {
		t.CreateAttr("xml:space", "preserve")
	}
}

// AddImagePart stores an image under word/media, registers its content type
// and appends a relationship from the main part. Returns the relationship id
// to reference from drawing markup.
func (p *Package) AddImagePart(filename string, data []byte, contentType string) (string, error) {
	partName := "word/media/" + filename

	if idx, ok := p.index[partName]; ok {
		p.parts[idx].data = data
	} else {
		p.index[partName] = len(p.parts)
		p.parts = append(p.parts, part{name: partName, data: data})
	}

	if err := p.ensureContentTypeDefault(strings.TrimPrefix(path.Ext(filename), "."), contentType); err != nil {
		return "", err
	}
	return p.appendRelationship(nsImageRelType, "media/"+filename)
}

// ensureContentTypeDefault adds a Default extension mapping when absent.
func (p *Package) ensureContentTypeDefault(extension, contentType string) error {
	doc, err := p.xmlPart(contentTypesName)
	if err != nil {
		return err
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("%w: empty %s", ErrTemplateUnreadable, contentTypesName)
	}
	for _, def := range root.SelectElements("Default") {
		if strings.EqualFold(def.SelectAttrValue("Extension", ""), extension) {
			return nil
		}
	}
	def := root.CreateElement("Default")
	def.CreateAttr("Extension", extension)
	def.CreateAttr("ContentType", contentType)
	return nil
}

// appendRelationship adds a relationship to the main part's table, creating
// the table when the template has none, and returns the new id.
func (p *Package) appendRelationship(relType, target string) (string, error) {
	doc, err := p.relsPart()
	if err != nil {
		return "", err
	}
	root := doc.Root()
	if root == nil {
		return "", fmt.Errorf("%w: empty %s", ErrTemplateUnreadable, mainRelsPartName)
	}

	maxID := 0
	for _, rel := range root.SelectElements("Relationship") {
		id := rel.SelectAttrValue("Id", "")
		var n int
		if _, err := fmt.Sscanf(id, "rId%d", &n); err == nil && n > maxID {
			maxID = n
		}
	}

	relID := fmt.Sprintf("rId%d", maxID+1)
	rel := root.CreateElement("Relationship")
	rel.CreateAttr("Id", relID)
	rel.CreateAttr("Type", relType)
	rel.CreateAttr("Target", target)
	return relID, nil
}

// relsPart returns the main part relationship table, creating an empty one
// for templates that ship without it.
func (p *Package) relsPart() (*etree.Document, error) {
	if _, ok := p.index[mainRelsPartName]; !ok {
		doc := etree.NewDocument()
		doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8" standalone="yes"`)
		root := doc.CreateElement("Relationships")
		root.CreateAttr("xmlns", nsRelationships)
		p.index[mainRelsPartName] = len(p.parts)
		p.parts = append(p.parts, part{name: mainRelsPartName})
		p.edited[mainRelsPartName] = doc
		return doc, nil
	}
	return p.xmlPart(mainRelsPartName)
}

// Bytes serializes the package back into a DOCX binary. Edited XML parts are
// re-serialized; everything else is written back untouched.
func (p *Package) Bytes() ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, pt := range p.parts {
		body := pt.data
		if doc, ok := p.edited[pt.name]; ok {
			serialized, err := doc.WriteToBytes()
			if err != nil {
				return nil, fmt.Errorf("serialize %s: %w", pt.name, err)
			}
			body = serialized
		}
		w, err := zw.Create(pt.name)
		if err != nil {
			return nil, fmt.Errorf("zip create %s: %w", pt.name, err)
		}
		if _, err := w.Write(body); err != nil {
			return nil, fmt.Errorf("zip write %s: %w", pt.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("zip close: %w", err)
	}
	return buf.Bytes(), nil
}
