package parser

import (
	"context"
	"errors"
	"fmt"

	"github.com/wudi/pdfstruct/ir/graph"
	"github.com/wudi/pdfstruct/ir/raw"
	"github.com/wudi/pdfstruct/observability"
	"github.com/wudi/pdfstruct/recovery"
	"github.com/wudi/pdfstruct/security"
	"github.com/wudi/pdfstruct/xref"
)

// parseStructure builds the catalog, page tree, metadata and encryption
// nodes reachable from the trailer.
func (s *session) parseStructure(ctx context.Context) error {
	g := s.doc.Graph
	s.trailerNode = g.AddNode(graph.NodeTrailer, s.doc.Trailer)

	ref, catalog, err := s.catalog(ctx)
	if err != nil {
		return err
	}
	if catalog != nil {
		s.doc.CatalogRef, s.doc.Catalog = ref, catalog
		id, _ := g.AddObjectNode(ref, graph.NodeCatalog, catalog)
		g.Node(id).Type = graph.NodeCatalog
		g.SetRoot(id)
		if err := s.link(s.trailerNode, id, graph.EdgeReference); err != nil {
			return err
		}
		if err := s.walkPages(ctx, id, catalog); err != nil {
			return err
		}
	}

	if v, ok := s.doc.Trailer.Lookup("Info"); ok {
		info, id, err := s.dictNode(ctx, v, graph.NodeMetadata)
		if err != nil {
			return err
		}
		if info != nil {
			s.doc.Info = info
			s.doc.Metadata = metadataFromInfo(info)
			if err := s.link(s.trailerNode, id, graph.EdgeReference); err != nil {
				return err
			}
		}
	}
	if v, ok := s.doc.Trailer.Lookup("Encrypt"); ok {
		s.doc.Encrypted = true
		enc, id, err := s.dictNode(ctx, v, graph.NodeEncrypt)
		if err != nil {
			return err
		}
		if enc != nil {
			info := security.DescribeEncryption(enc)
			s.doc.Encryption = &info
			if err := s.link(s.trailerNode, id, graph.EdgeReference); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *session) link(from, to graph.NodeID, t graph.EdgeType) error {
	if err := s.doc.Graph.AddEdge(from, to, t); err != nil {
		return fmt.Errorf("link %s node: %w", t, err)
	}
	return nil
}

// dictNode resolves v and adds it to the graph as a node of type t when it is
// a dictionary.
func (s *session) dictNode(ctx context.Context, v raw.Object, t graph.NodeType) (*raw.DictObj, graph.NodeID, error) {
	obj, err := s.loader.Resolve(ctx, v)
	if err != nil {
		return nil, 0, err
	}
	d, ok := obj.(*raw.DictObj)
	if !ok {
		s.p.log.Debug("expected dictionary", observability.String("node", t.String()), observability.String("got", obj.Type()))
		return nil, 0, nil
	}
	if r, ok := v.(raw.RefObj); ok {
		id, _ := s.doc.Graph.AddObjectNode(r.R, t, d)
		s.doc.Graph.Node(id).Type = t
		return d, id, nil
	}
	return d, s.doc.Graph.AddNode(t, d), nil
}

// catalog returns the document catalog named by the trailer. In tolerant mode a
// missing or broken /Root is replaced by the first /Type /Catalog object found.
func (s *session) catalog(ctx context.Context) (raw.ObjectRef, *raw.DictObj, error) {
	if ref, ok := s.doc.Trailer.RefValue("Root"); ok {
		obj, err := s.loader.Resolve(ctx, raw.RefObj{R: ref})
		if err != nil {
			return raw.ObjectRef{}, nil, fmt.Errorf("load catalog: %w", err)
		}
		if d, ok := obj.(*raw.DictObj); ok {
			return ref, d, nil
		}
	}
	err := recovery.Malformed("parse structure", -1, errors.New("trailer /Root does not lead to a catalog dictionary"))
	if !s.allows(ctx, err, -1, "structure") {
		return raw.ObjectRef{}, nil, err
	}
	ref, d, err := s.findCatalog(ctx)
	if err != nil {
		return raw.ObjectRef{}, nil, err
	}
	if d == nil {
		s.p.log.Warn("no catalog found")
		s.anomalies.Record(recovery.AnomalyCatalogMissing, "no object with /Type /Catalog")
		return raw.ObjectRef{}, nil, nil
	}
	s.p.log.Warn("catalog synthesized", observability.String("object", ref.String()))
	s.anomalies.Record(recovery.AnomalyCatalogSynthesized, fmt.Sprintf("using %v as /Root", ref))
	s.doc.Trailer.SetKey("Root", raw.RefObj{R: ref})
	return ref, d, nil
}

func (s *session) findCatalog(ctx context.Context) (raw.ObjectRef, *raw.DictObj, error) {
	for _, num := range s.doc.XRef.Objects() {
		e, _ := s.doc.XRef.Entry(num)
		var ref raw.ObjectRef
		switch e.Type {
		case xref.EntryInUse:
			ref = raw.ObjectRef{Num: num, Gen: e.Gen}
		case xref.EntryCompressed:
			ref = raw.ObjectRef{Num: num}
		default:
			continue
		}
		obj, err := s.loader.Load(ctx, ref)
		if err != nil {
			return raw.ObjectRef{}, nil, err
		}
		if d, ok := obj.(*raw.DictObj); ok {
			if t, _ := d.NameValue("Type"); t == "Catalog" {
				return ref, d, nil
			}
		}
	}
	return raw.ObjectRef{}, nil, nil
}

// walkPages walks the page tree with an explicit stack. A node reached twice
// is skipped, which breaks /Kids cycles.
func (s *session) walkPages(ctx context.Context, catalogNode graph.NodeID, catalog *raw.DictObj) error {
	root, ok := catalog.RefValue("Pages")
	if !ok {
		s.p.log.Debug("catalog has no page tree reference")
		return nil
	}
	type frame struct {
		ref    raw.ObjectRef
		parent graph.NodeID
	}
	g := s.doc.Graph
	stack := []frame{{ref: root, parent: catalogNode}}
	visited := make(map[raw.ObjectRef]bool)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if visited[f.ref] {
			s.p.log.Debug("page tree node reached twice", observability.String("object", f.ref.String()))
			continue
		}
		visited[f.ref] = true

		obj, err := s.loader.Load(ctx, f.ref)
		if err != nil {
			return fmt.Errorf("load page tree node %v: %w", f.ref, err)
		}
		d, _ := obj.(*raw.DictObj)
		nt := graph.NodeUnknown
		if d != nil {
			switch t, _ := d.NameValue("Type"); t {
			case "Pages":
				nt = graph.NodePages
			case "Page":
				nt = graph.NodePage
			}
		}
		id, created := g.AddObjectNode(f.ref, nt, obj)
		if !created && g.Node(id).Type == graph.NodeUnknown {
			g.Node(id).Type = nt
		}
		if err := s.link(f.parent, id, graph.EdgeChild); err != nil {
			return err
		}

		switch nt {
		case graph.NodePage:
			s.doc.Pages = append(s.doc.Pages, f.ref)
		case graph.NodePages:
			kids, ok := d.Lookup("Kids")
			if !ok {
				continue
			}
			kids, err := s.loader.Resolve(ctx, kids)
			if err != nil {
				return fmt.Errorf("load /Kids of %v: %w", f.ref, err)
			}
			arr, ok := kids.(*raw.ArrayObj)
			if !ok {
				continue
			}
			for i := len(arr.Items) - 1; i >= 0; i-- {
				if r, ok := arr.Items[i].(raw.RefObj); ok {
					stack = append(stack, frame{ref: r.R, parent: id})
				}
			}
		}
	}
	return nil
}

// refSite is a reference found inside a value, with the dictionary key it sits under.
type refSite struct {
	ref raw.ObjectRef
	key string
}

// resolveReferences loads every object reachable from the trailer and links
// it into the graph. The visited set keeps each object to one load.
func (s *session) resolveReferences(ctx context.Context) error {
	g := s.doc.Graph
	type item struct {
		val  raw.Object
		from graph.NodeID
	}
	queue := []item{{val: s.doc.Trailer, from: s.trailerNode}}
	visited := make(map[raw.ObjectRef]bool)
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		it := queue[0]
		queue = queue[1:]
		for _, site := range collectRefs(it.val) {
			if visited[site.ref] {
				if id, ok := g.NodeForObject(site.ref); ok {
					if err := s.link(it.from, id, edgeFor(site.key)); err != nil {
						return err
					}
				}
				continue
			}
			visited[site.ref] = true
			obj, err := s.loader.Load(ctx, site.ref)
			if err != nil {
				return fmt.Errorf("resolve %v: %w", site.ref, err)
			}
			id, _ := g.AddObjectNode(site.ref, graph.NodeObject, obj)
			if err := s.link(it.from, id, edgeFor(site.key)); err != nil {
				return err
			}
			queue = append(queue, item{val: obj, from: id})
		}
	}
	return nil
}

// collectRefs lists the references nested in v, without following them.
func collectRefs(v raw.Object) []refSite {
	type frame struct {
		val raw.Object
		key string
	}
	var out []refSite
	stack := []frame{{val: v}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		switch o := f.val.(type) {
		case raw.RefObj:
			out = append(out, refSite{ref: o.R, key: f.key})
		case *raw.ArrayObj:
			for i := len(o.Items) - 1; i >= 0; i-- {
				stack = append(stack, frame{val: o.Items[i], key: f.key})
			}
		case *raw.DictObj:
			for i := len(o.Order) - 1; i >= 0; i-- {
				k := o.Order[i]
				stack = append(stack, frame{val: o.KV[k], key: k})
			}
		case *raw.StreamObj:
			if o.Dict != nil {
				stack = append(stack, frame{val: o.Dict, key: f.key})
			}
		}
	}
	return out
}

func edgeFor(key string) graph.EdgeType {
	switch key {
	case "Kids":
		return graph.EdgeChild
	case "Parent":
		return graph.EdgeParent
	case "Resources":
		return graph.EdgeResource
	case "Annots":
		return graph.EdgeAnnotation
	case "Contents":
		return graph.EdgeContent
	default:
		return graph.EdgeReference
	}
}
