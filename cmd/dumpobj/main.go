package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/parser"
)

func main() {
	num := flag.Int("obj", -1, "Object number to dump; -1 dumps the trailer")
	gen := flag.Int("gen", 0, "Generation number")
	decode := flag.Bool("decode", false, "Write the decoded stream payload to stdout")
	out := flag.String("out", "", "Write the stream payload to this file instead of stdout")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: go run ./cmd/dumpobj [flags] <pdf>\n")
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	f, err := os.Open(flag.Arg(0))
	if err != nil {
		fmt.Fprintf(os.Stderr, "dumpobj: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()

	ctx := context.Background()
	doc, err := parser.NewDocumentParser(parser.Config{LazyStreamThreshold: 1 << 16}).Parse(ctx, f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dumpobj: parse pdf: %v\n", err)
		os.Exit(1)
	}

	var obj raw.Object = doc.Trailer
	if *num >= 0 {
		obj, err = doc.Load(ctx, raw.ObjectRef{Num: *num, Gen: *gen})
		if err != nil {
			fmt.Fprintf(os.Stderr, "dumpobj: load %d %d: %v\n", *num, *gen, err)
			os.Exit(1)
		}
	}

	st, isStream := obj.(*raw.StreamObj)
	if !*decode || !isStream {
		fmt.Println(format(obj, 0))
		return
	}
	data, err := doc.Loader().DecodeStream(ctx, st)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dumpobj: decode stream: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		if err := os.WriteFile(*out, data, 0o644); err != nil {
			fmt.Fprintf(os.Stderr, "dumpobj: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(data), *out)
		return
	}
	os.Stdout.Write(data)
}

// format prints obj in PDF syntax, one dictionary entry per line.
func format(obj raw.Object, indent int) string {
	pad := strings.Repeat("  ", indent)
	switch o := obj.(type) {
	case raw.NullObj:
		return "null"
	case raw.BoolObj:
		return fmt.Sprint(o.V)
	case raw.NumberObj:
		if o.IsInt {
			return fmt.Sprint(o.I)
		}
		return fmt.Sprint(o.F)
	case raw.NameObj:
		return "/" + o.Val
	case raw.StringObj:
		if o.Hex {
			return fmt.Sprintf("<%x>", o.Bytes)
		}
		return fmt.Sprintf("(%s)", parser.DecodeTextString(o.Bytes))
	case raw.RefObj:
		return fmt.Sprintf("%d %d R", o.R.Num, o.R.Gen)
	case *raw.ArrayObj:
		parts := make([]string, len(o.Items))
		for i, it := range o.Items {
			parts[i] = format(it, indent+1)
		}
		return "[" + strings.Join(parts, " ") + "]"
	case *raw.DictObj:
		var sb strings.Builder
		sb.WriteString("<<\n")
		for _, k := range o.Order {
			fmt.Fprintf(&sb, "%s  /%s %s\n", pad, k, format(o.KV[k], indent+1))
		}
		sb.WriteString(pad + ">>")
		return sb.String()
	case *raw.StreamObj:
		return format(o.Dict, indent) + fmt.Sprintf("\n%sstream (%d bytes, lazy=%v)", pad, o.Length(), o.IsLazy())
	default:
		return fmt.Sprintf("%v", obj)
	}
}
