// Package pdftest builds small text-only PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"strings"
)

// Build returns a PDF with one page per argument. Each line of a page
// argument is drawn as its own text row, top to bottom, in Helvetica.
func Build(pages ...string) []byte {
	return build(len(pages), pages)
}

// BuildMissingPages is Build with a page tree whose /Count claims extra pages
// that have no page object, so readers see them as null pages.
func BuildMissingPages(extra int, pages ...string) []byte {
	return build(len(pages)+extra, pages)
}

func build(count int, pages []string) []byte {
	var objects []string

	// 1: catalog, 2: page tree, 3: font, then a page and a content stream per page.
	kids := make([]string, len(pages))
	for i := range pages {
		kids[i] = fmt.Sprintf("%d 0 R", 4+2*i)
	}
	objects = append(objects,
		"<< /Type /Catalog /Pages 2 0 R >>",
		fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), count),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>",
	)

	for i, text := range pages {
		stream := contentStream(text)
		objects = append(objects,
			fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] "+
				"/Resources << /Font << /F1 3 0 R >> >> /Contents %d 0 R >>", 5+2*i),
			fmt.Sprintf("<< /Length %d >>\nstream\n%s\nendstream", len(stream), stream),
		)
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := make([]int, len(objects))
	for i, obj := range objects {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", i+1, obj)
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(objects)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objects)+1, xref)

	return buf.Bytes()
}

func contentStream(text string) string {
	var sb strings.Builder
	sb.WriteString("BT\n/F1 12 Tf\n")
	y := 720
	for _, line := range strings.Split(text, "\n") {
		if line == "" {
			y -= 16
			continue
		}
		fmt.Fprintf(&sb, "1 0 0 1 72 %d Tm\n(%s) Tj\n", y, escape(line))
		y -= 16
	}
	sb.WriteString("ET")
	return sb.String()
}

func escape(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
