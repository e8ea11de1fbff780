package data

import (
	_ "embed"
)

// Minimal OOXML parts used to assemble DOCX documents from scratch, mainly
// for test fixtures.

//go:embed ooxml/[Content_Types].xml
var OOXMLContentTypes []byte

//go:embed ooxml/package.rels
var OOXMLPackageRels []byte

//go:embed ooxml/document.rels
var OOXMLDocumentRels []byte

//go:embed ooxml/document.xml
var OOXMLDocumentSkeleton []byte
