package docgen

import (
	"fmt"
	"strings"

	"github.com/beevik/etree"
	qrcode "github.com/skip2/go-qrcode"
)

// Drawing namespaces, declared inline on the generated markup so templates
// that never carried images still render.
const (
	nsWPDrawing = "http://schemas.openxmlformats.org/drawingml/2006/wordprocessingDrawing"
	nsDrawing   = "http://schemas.openxmlformats.org/drawingml/2006/main"
	nsPicture   = "http://schemas.openxmlformats.org/drawingml/2006/picture"
	nsOfficeRel = "http://schemas.openxmlformats.org/officeDocument/2006/relationships"
)

// qrEMU is the rendered square edge: 1.25 inch in English Metric Units.
const qrEMU = "1143000"

const qrPixels = 256

// EmbedQRCode renders the transaction code as a QR raster, stores it as an
// image part wired into the relationship table, removes the literal marker
// text and inserts the image into the paragraph that held the marker.
// Returns false when the marker does not occur in the document.
func (p *Package) EmbedQRCode(marker, code string) (bool, error) {
	doc, err := p.xmlPart(mainPartName)
	if err != nil {
		return false, err
	}

	target := findParagraphWithText(doc, marker)
	if target == nil {
		return false, nil
	}

	png, err := qrcode.Encode(code, qrcode.Medium, qrPixels)
	if err != nil {
		return false, fmt.Errorf("render qr: %w", err)
	}

	relID, err := p.AddImagePart("qr-"+sanitizeFilename(code)+".png", png, "image/png")
	if err != nil {
		return false, err
	}

	replaceInParagraph(target, marker, "")
	appendInlineImage(target, relID, code)
	return true, nil
}

// findParagraphWithText locates the first paragraph whose concatenated run
// text contains the token, tolerating tokens split across runs.
func findParagraphWithText(doc *etree.Document, token string) *etree.Element {
	for _, para := range doc.FindElements("//p") {
		var sb strings.Builder
		for _, t := range textElements(para) {
			sb.WriteString(t.Text())
		}
		if strings.Contains(sb.String(), token) {
			return para
		}
	}
	return nil
}

// appendInlineImage appends a run holding a wp:inline drawing to the
// paragraph. The pic ids are static; Word only requires them unique within
// one drawing.
func appendInlineImage(para *etree.Element, relID, description string) {
	run := para.CreateElement("w:r")
	drawing := run.CreateElement("w:drawing")

	inline := drawing.CreateElement("wp:inline")
	inline.CreateAttr("xmlns:wp", nsWPDrawing)
	inline.CreateAttr("distT", "0")
	inline.CreateAttr("distB", "0")
	inline.CreateAttr("distL", "0")
	inline.CreateAttr("distR", "0")

	extent := inline.CreateElement("wp:extent")
	extent.CreateAttr("cx", qrEMU)
	extent.CreateAttr("cy", qrEMU)

	docPr := inline.CreateElement("wp:docPr")
	docPr.CreateAttr("id", "1")
	docPr.CreateAttr("name", "Transaction QR")
	docPr.CreateAttr("descr", description)

	graphic := inline.CreateElement("a:graphic")
	graphic.CreateAttr("xmlns:a", nsDrawing)

	graphicData := graphic.CreateElement("a:graphicData")
	graphicData.CreateAttr("uri", nsPicture)

	pic := graphicData.CreateElement("pic:pic")
	pic.CreateAttr("xmlns:pic", nsPicture)

	nvPicPr := pic.CreateElement("pic:nvPicPr")
	cNvPr := nvPicPr.CreateElement("pic:cNvPr")
	cNvPr.CreateAttr("id", "1")
	cNvPr.CreateAttr("name", "Transaction QR")
	nvPicPr.CreateElement("pic:cNvPicPr")

	blipFill := pic.CreateElement("pic:blipFill")
	blip := blipFill.CreateElement("a:blip")
	blip.CreateAttr("xmlns:r", nsOfficeRel)
	blip.CreateAttr("r:embed", relID)
	blipFill.CreateElement("a:stretch").CreateElement("a:fillRect")

	spPr := pic.CreateElement("pic:spPr")
	xfrm := spPr.CreateElement("a:xfrm")
	off := xfrm.CreateElement("a:off")
	off.CreateAttr("x", "0")
	off.CreateAttr("y", "0")
	ext := xfrm.CreateElement("a:ext")
	ext.CreateAttr("cx", qrEMU)
	ext.CreateAttr("cy", qrEMU)
	geom := spPr.CreateElement("a:prstGeom")
	geom.CreateAttr("prst", "rect")
	geom.CreateElement("a:avLst")
}

// sanitizeFilename strips characters unfit for a part name.
func sanitizeFilename(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
