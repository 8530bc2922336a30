package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/wudi/pdfstruct/recovery"
	"github.com/wudi/pdfstruct/scanner"
)

func main() {
	limit := flag.Int("limit", 200000, "Stop after this many tokens")
	lenient := flag.Bool("lenient", false, "Recover from malformed strings and streams")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/scantest [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "scantest: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	cfg := scanner.Config{Markers: true}
	if *lenient {
		cfg.Recovery = recovery.NewLenientStrategy()
	}
	s := scanner.New(f, cfg)
	for i := 0; i < *limit; i++ {
		tok, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			fmt.Printf("ERR: %v\n", err)
			break
		}
		fmt.Printf("%d %s %s\n", tok.Pos, tok.Type, describe(tok))
	}
}

func describe(tok scanner.Token) string {
	switch tok.Type {
	case scanner.TokenName, scanner.TokenKeyword, scanner.TokenHeader:
		return tok.Str
	case scanner.TokenNumber:
		if tok.IsInt {
			return fmt.Sprint(tok.Int)
		}
		return fmt.Sprint(tok.Float)
	case scanner.TokenBoolean:
		return fmt.Sprint(tok.Bool)
	case scanner.TokenRef:
		return fmt.Sprintf("%d %d R", tok.Int, tok.Gen)
	case scanner.TokenString:
		if tok.Hex {
			return fmt.Sprintf("<%x>", tok.Bytes)
		}
		return fmt.Sprintf("%q", tok.Bytes)
	case scanner.TokenStream:
		return fmt.Sprintf("%d bytes at %d scanned=%v", tok.DataLength, tok.DataOffset, tok.Scanned)
	default:
		return ""
	}
}
