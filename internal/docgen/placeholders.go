package docgen

import (
	"regexp"
	"strings"
)

// Placeholder tokens recognized in templates: $[name], ${name}, [name] and
// {name}. Names are word-ish: letters, digits, underscore, dash, dot and
// inner spaces.
var placeholderRe = regexp.MustCompile(`\$?\[([A-Za-z0-9_][A-Za-z0-9_ .\-]*)\]|\$?\{([A-Za-z0-9_][A-Za-z0-9_ .\-]*)\}`)

// ExtractPlaceholders scans a DOCX binary and returns the de-duplicated,
// order-preserving set of field names referenced by placeholder tokens in the
// main document part. A template with no placeholders yields an empty slice.
func ExtractPlaceholders(data []byte) ([]string, error) {
	pkg, err := Open(data)
	if err != nil {
		return nil, err
	}
	text, err := pkg.MainText()
	if err != nil {
		return nil, err
	}
	return scanPlaceholders(text), nil
}

// scanPlaceholders collects field names from already-extracted text.
func scanPlaceholders(text string) []string {
	seen := make(map[string]struct{})
	fields := []string{}
	for _, m := range placeholderRe.FindAllStringSubmatch(text, -1) {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		fields = append(fields, name)
	}
	return fields
}

// TokenForms returns every literal marker form a field name may take in a
// template, longest first so $[name] wins over [name] during substitution.
func TokenForms(name string) []string {
	return []string{
		"$[" + name + "]",
		"${" + name + "}",
		"[" + name + "]",
		"{" + name + "}",
	}
}

// Substitute replaces every recognized token form of each field with its
// value in the main document part. Returns the number of substitutions that
// touched the document.
func (p *Package) Substitute(values map[string]string) (int, error) {
	total := 0
	for name, value := range values {
		for _, token := range TokenForms(name) {
			n, err := p.ReplaceText(token, value)
			if err != nil {
				return total, err
			}
			total += n
		}
	}
	return total, nil
}

// BlankRemaining replaces any leftover placeholder tokens with the empty
// string. Generation treats unresolved tokens as no-ops rather than hard
// failures; the choice is applied consistently at every call site.
func (p *Package) BlankRemaining() error {
	text, err := p.MainText()
	if err != nil {
		return err
	}
	for _, name := range scanPlaceholders(text) {
		for _, token := range TokenForms(name) {
			if _, err := p.ReplaceText(token, ""); err != nil {
				return err
			}
		}
	}
	return nil
}
