package filters

import "github.com/wudi/pdfstruct/ir/raw"

// ExtractFilters reads Filter and DecodeParms entries from a stream dictionary.
// Params stay aligned with names; a filter without parameters gets nil.
func ExtractFilters(dict raw.Dictionary) ([]string, []raw.Dictionary) {
	var names []string
	var params []raw.Dictionary

	filterObj, ok := dict.Get(raw.NameObj{Val: "Filter"})
	if !ok {
		return names, params
	}

	switch f := filterObj.(type) {
	case raw.Name:
		names = append(names, f.Value())
	case *raw.ArrayObj:
		for _, item := range f.Items {
			if n, ok := item.(raw.Name); ok {
				names = append(names, n.Value())
			}
		}
	}

	if len(names) > 0 {
		params = make([]raw.Dictionary, len(names))
		pObj, ok := dict.Get(raw.NameObj{Val: "DecodeParms"})
		if !ok {
			pObj, ok = dict.Get(raw.NameObj{Val: "DP"})
		}
		if ok {
			switch p := pObj.(type) {
			case raw.Dictionary:
				params[0] = p
			case *raw.ArrayObj:
				for i, item := range p.Items {
					if i >= len(params) {
						break
					}
					if d, ok := item.(raw.Dictionary); ok {
						params[i] = d
					}
				}
			}
		}
	}

	return names, params
}
