package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/wudi/pdfstruct/observability"
	"github.com/wudi/pdfstruct/parser"
	"github.com/wudi/pdfstruct/recovery"
	"github.com/wudi/pdfstruct/security"
)

type options struct {
	pdfPath     string
	strict      bool
	preset      string
	asJSON      bool
	verbose     bool
	fingerprint bool
}

func main() {
	opts, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(2)
	}
	if err := run(opts); err != nil {
		fmt.Fprintf(os.Stderr, "inspect: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var opts options
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/inspect [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.BoolVar(&opts.strict, "strict", false, "Fail on the first structural error instead of recovering")
	flag.StringVar(&opts.preset, "preset", "default", "Resource limits: conservative, default or permissive")
	flag.BoolVar(&opts.asJSON, "json", false, "Print the report as JSON")
	flag.BoolVar(&opts.verbose, "v", false, "Log parser state transitions to stderr")
	flag.BoolVar(&opts.fingerprint, "fingerprint", false, "Print the BLAKE2b-256 digest of the file")
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		return options{}, fmt.Errorf("missing pdf path")
	}
	opts.pdfPath = flag.Arg(0)
	return opts, nil
}

type revisionSummary struct {
	Number     int    `json:"number"`
	XRefOffset int64  `json:"xrefOffset"`
	Kind       string `json:"kind"`
	Added      int    `json:"added"`
	Modified   int    `json:"modified"`
	Deleted    int    `json:"deleted"`
	Digest     string `json:"digest,omitempty"`
}

type report struct {
	Path          string                    `json:"path"`
	Mode          string                    `json:"mode"`
	Version       string                    `json:"version"`
	HeaderOffset  int64                     `json:"headerOffset,omitempty"`
	Size          int64                     `json:"size"`
	XRefKind      string                    `json:"xrefKind"`
	Objects       int                       `json:"objects"`
	Hybrid        bool                      `json:"hybrid"`
	Recovered     bool                      `json:"recovered"`
	Encrypted     bool                      `json:"encrypted"`
	Encryption    *security.EncryptionInfo  `json:"encryption,omitempty"`
	Linearization *parser.LinearizationInfo `json:"linearization,omitempty"`
	Revisions     []revisionSummary         `json:"revisions"`
	Pages         int                       `json:"pages"`
	GraphNodes    int                       `json:"graphNodes"`
	GraphEdges    int                       `json:"graphEdges"`
	Metadata      *parser.Metadata          `json:"metadata,omitempty"`
	Anomalies     []string                  `json:"anomalies"`
	Fingerprint   string                    `json:"fingerprint,omitempty"`
}

func run(opts options) error {
	limits, err := security.LimitsForPreset(opts.preset)
	if err != nil {
		return err
	}
	file, err := os.Open(opts.pdfPath)
	if err != nil {
		return fmt.Errorf("open pdf: %w", err)
	}
	defer file.Close()

	cfg := parser.Config{Limits: limits, Fingerprint: opts.fingerprint}
	if opts.strict {
		cfg.Recovery = recovery.NewStrictStrategy()
	}
	if opts.verbose {
		h := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		cfg.Logger = observability.NewSlogLogger(slog.New(h))
	}
	p := parser.NewDocumentParser(cfg)
	doc, err := p.Parse(context.Background(), file)
	if err != nil {
		return fmt.Errorf("parse pdf: %w", err)
	}

	rep := report{
		Path:          opts.pdfPath,
		Mode:          "strict",
		Version:       doc.Version,
		HeaderOffset:  doc.HeaderOffset,
		Size:          doc.Size,
		XRefKind:      doc.XRef.Type(),
		Objects:       doc.XRef.Len(),
		Hybrid:        doc.Hybrid,
		Recovered:     doc.Recovered,
		Encrypted:     doc.Encrypted,
		Encryption:    doc.Encryption,
		Linearization: doc.Linearization,
		Pages:         doc.PageCount(),
		GraphNodes:    doc.Graph.Len(),
		GraphEdges:    doc.Graph.EdgeCount(),
		Metadata:      doc.Metadata,
		Anomalies:     []string{},
	}
	if p.Tolerant() {
		rep.Mode = "tolerant"
	}
	for _, rev := range doc.Revisions {
		rep.Revisions = append(rep.Revisions, revisionSummary{
			Number:     rev.Number,
			XRefOffset: rev.XRefOffset,
			Kind:       rev.Kind,
			Added:      len(rev.Added),
			Modified:   len(rev.Modified),
			Deleted:    len(rev.Deleted),
			Digest:     hex.EncodeToString(rev.Digest[:]),
		})
	}
	for _, a := range doc.Anomalies {
		rep.Anomalies = append(rep.Anomalies, a.String())
	}
	if doc.Fingerprint != nil {
		rep.Fingerprint = hex.EncodeToString(doc.Fingerprint)
	}

	if opts.asJSON {
		data, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal report: %w", err)
		}
		fmt.Printf("%s\n", data)
		return nil
	}
	printReport(rep)
	return nil
}

func printReport(rep report) {
	fmt.Printf("file:       %s (%d bytes)\n", rep.Path, rep.Size)
	fmt.Printf("mode:       %s\n", rep.Mode)
	fmt.Printf("version:    %s", rep.Version)
	if rep.HeaderOffset > 0 {
		fmt.Printf(" (header at %d)", rep.HeaderOffset)
	}
	fmt.Println()
	fmt.Printf("xref:       %s, %d objects, hybrid=%v recovered=%v\n", rep.XRefKind, rep.Objects, rep.Hybrid, rep.Recovered)
	if lin := rep.Linearization; lin != nil {
		fmt.Printf("linearized: v%g, /L %d, %d pages, first page object %d\n", lin.Version, lin.FileLength, lin.ObjectCount, lin.FirstPageObject)
	} else {
		fmt.Println("linearized: no")
	}
	if enc := rep.Encryption; enc != nil {
		fmt.Printf("encrypted:  %s V%d R%d, %d-bit %s\n", enc.Filter, enc.V, enc.R, enc.KeyLength, enc.StreamFilter)
	} else {
		fmt.Printf("encrypted:  %v\n", rep.Encrypted)
	}
	fmt.Printf("pages:      %d\n", rep.Pages)
	fmt.Printf("graph:      %d nodes, %d edges\n", rep.GraphNodes, rep.GraphEdges)
	if md := rep.Metadata; md != nil {
		if md.Title != "" {
			fmt.Printf("title:      %s\n", md.Title)
		}
		if md.Producer != "" {
			fmt.Printf("producer:   %s\n", md.Producer)
		}
	}
	if rep.Fingerprint != "" {
		fmt.Printf("blake2b:    %s\n", rep.Fingerprint)
	}
	fmt.Printf("\n== revisions (%d) ==\n", len(rep.Revisions))
	for _, rev := range rep.Revisions {
		fmt.Printf("  #%d %-11s at %-8d +%d ~%d -%d\n", rev.Number, rev.Kind, rev.XRefOffset, rev.Added, rev.Modified, rev.Deleted)
	}
	fmt.Printf("\n== anomalies (%d) ==\n", len(rep.Anomalies))
	for _, a := range rep.Anomalies {
		fmt.Printf("  %s\n", a)
	}
}
