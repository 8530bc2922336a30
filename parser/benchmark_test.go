package parser

import (
	"bytes"
	"context"
	"fmt"
	"testing"
)

// benchmarkPDF builds a file with pages pages, each with a content stream.
func benchmarkPDF(pages int) []byte {
	b := newPDF()
	b.obj(1, "<< /Type /Catalog /Pages 2 0 R >>")
	var kids bytes.Buffer
	for i := 0; i < pages; i++ {
		fmt.Fprintf(&kids, "%d 0 R ", 3+2*i)
	}
	b.obj(2, fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids.String(), pages))
	for i := 0; i < pages; i++ {
		page, content := 3+2*i, 4+2*i
		b.obj(page, fmt.Sprintf("<< /Type /Page /Parent 2 0 R /Contents %d 0 R >>", content))
		b.stream(content, "", []byte(fmt.Sprintf("BT /F1 12 Tf (page %d) Tj ET", i)))
	}
	return b.table(3+2*pages, "/Root 1 0 R")
}

func BenchmarkParse(b *testing.B) {
	data := benchmarkPDF(500)
	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		p := NewDocumentParser(Config{})
		doc, err := p.Parse(context.Background(), bytes.NewReader(data))
		if err != nil {
			b.Fatalf("parse failed: %v", err)
		}
		if doc.PageCount() != 500 {
			b.Fatalf("PageCount = %d", doc.PageCount())
		}
	}
}
