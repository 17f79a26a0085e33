package sections

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Type classifies a section of cleaned text.
type Type string

const (
	TypeText  Type = "text"
	TypeOCR   Type = "ocr"
	TypeTable Type = "table"
)

// Unknown replaces a table or page number that could not be parsed.
const Unknown = "Unknown"

// Section is a contiguous, tagged region of cleaned text.
type Section struct {
	Type     Type
	Page     string // "" when the tag had no page attribute.
	TableNum string // Set only for tables.
	Content  string
}

var (
	tableOpenRe = regexp.MustCompile(`^<TABLE-OPEN((?:\s+[a-z]+=\S*?)*)\s*>$`)
	sectOpenRe  = regexp.MustCompile(`^<(TEXT|OCR)-OPEN((?:\s+[a-z]+=\S*?)*)\s*>$`)
	attrRe      = regexp.MustCompile(`([a-z]+)=(\S*)`)
)

const (
	tagTableClose = "<TABLE-CLOSE>"
	tagTextClose  = "<TEXT-CLOSE>"
	tagOCRClose   = "<OCR-CLOSE>"
)

// Parse scans tagged text line by line and returns its sections in order.
// Content outside any tag lands in an implicit text section. A missing close
// tag is tolerated: content simply runs into the next recognized tag.
func Parse(text string) []Section {
	var (
		out []Section
		cur = Section{Type: TypeText}
		buf strings.Builder
	)

	flush := func() {
		content := strings.TrimSpace(buf.String())
		buf.Reset()
		if content == "" {
			return
		}
		cur.Content = content
		out = append(out, cur)
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		if m := tableOpenRe.FindStringSubmatch(line); m != nil {
			flush()
			attrs := parseAttrs(m[1])
			cur = Section{
				Type:     TypeTable,
				TableNum: tableNumber(attrs),
				Page:     number(attrs, "page"),
			}
			continue
		}
		if m := sectOpenRe.FindStringSubmatch(line); m != nil {
			flush()
			typ := TypeText
			if m[1] == "OCR" {
				typ = TypeOCR
			}
			cur = Section{Type: typ, Page: number(parseAttrs(m[2]), "page")}
			continue
		}

		switch line {
		case tagTableClose:
			if cur.Type != TypeTable {
				continue
			}
			flush()
			cur = Section{Type: TypeText}
			continue
		case tagTextClose, tagOCRClose:
			flush()
			cur = Section{Type: TypeText}
			continue
		}

		buf.WriteString(line)
		buf.WriteByte('\n')
	}
	flush()
	return out
}

func parseAttrs(s string) map[string]string {
	attrs := make(map[string]string)
	for _, m := range attrRe.FindAllStringSubmatch(s, -1) {
		attrs[m[1]] = m[2]
	}
	return attrs
}

// number returns the attribute as a decimal string, "" when absent and
// Unknown when present but not a number.
func number(attrs map[string]string, key string) string {
	v, ok := attrs[key]
	if !ok {
		return ""
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return Unknown
	}
	return strconv.Itoa(n)
}

// tableNumber is Unknown when the n attribute is missing, unlike page.
func tableNumber(attrs map[string]string) string {
	if _, ok := attrs["n"]; !ok {
		return Unknown
	}
	return number(attrs, "n")
}

// OpenTag returns the opening tag line for a section.
func OpenTag(s Section) string {
	switch s.Type {
	case TypeTable:
		return fmt.Sprintf("<TABLE-OPEN n=%s page=%s>", orUnknown(s.TableNum), orUnknown(s.Page))
	case TypeOCR:
		return withPage("<OCR-OPEN", s.Page)
	default:
		return withPage("<TEXT-OPEN", s.Page)
	}
}

// CloseTag returns the closing tag line for a section.
func CloseTag(s Section) string {
	switch s.Type {
	case TypeTable:
		return tagTableClose
	case TypeOCR:
		return tagOCRClose
	default:
		return tagTextClose
	}
}

func withPage(prefix, page string) string {
	if page == "" {
		return prefix + ">"
	}
	return prefix + " page=" + page + ">"
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

// Format writes sections back into the tag format Parse reads.
func Format(secs []Section) string {
	var b strings.Builder
	for i, s := range secs {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(OpenTag(s))
		b.WriteByte('\n')
		b.WriteString(strings.TrimSpace(s.Content))
		b.WriteByte('\n')
		b.WriteString(CloseTag(s))
	}
	return b.String()
}

// Counts tallies sections by type.
func Counts(secs []Section) map[Type]int {
	counts := map[Type]int{TypeText: 0, TypeOCR: 0, TypeTable: 0}
	for _, s := range secs {
		counts[s.Type]++
	}
	return counts
}
