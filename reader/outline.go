package reader

// OutlineItem is one entry in the document outline (bookmarks), with its
// resolved 1-based target page (0 if the destination could not be
// resolved) and any nested children.
type OutlineItem struct {
	Title    string
	Page     int
	Children []OutlineItem
}

// Outline returns the document outline tree. Documents without an
// /Outlines entry yield an empty slice.
func (d *Document) Outline() ([]OutlineItem, error) {
	catalog, err := d.Catalog()
	if err != nil {
		return nil, err
	}

	outlinesObj, ok := catalog["Outlines"]
	if !ok {
		return []OutlineItem{}, nil
	}
	resolved, err := d.resolveIfRef(outlinesObj)
	if err != nil {
		return nil, err
	}
	outlines, ok := resolved.(Dict)
	if !ok {
		return []OutlineItem{}, nil
	}

	items := d.walkOutline(outlines["First"], 0)
	if items == nil {
		items = []OutlineItem{}
	}
	return items, nil
}

// walkOutline follows a /First -> /Next sibling chain, recursing into
// children. The depth guard breaks cycles in malformed files.
func (d *Document) walkOutline(first Object, depth int) []OutlineItem {
	if first == nil || depth > 32 {
		return nil
	}

	var items []OutlineItem
	node := first
	for i := 0; node != nil && i < 4096; i++ {
		resolved, err := d.resolveIfRef(node)
		if err != nil {
			break
		}
		dict, ok := resolved.(Dict)
		if !ok {
			break
		}

		item := OutlineItem{}
		if t, ok := dict["Title"]; ok {
			if s, ok := t.(String); ok {
				item.Title = decodePDFString(s.Value)
			}
		}
		item.Page = d.resolveDestPage(dict)
		item.Children = d.walkOutline(dict["First"], depth+1)

		items = append(items, item)

		next, ok := dict["Next"]
		if !ok {
			break
		}
		node = next
	}
	return items
}

// resolveDestPage extracts the target page from an outline item's /Dest
// entry or /A GoTo action.
func (d *Document) resolveDestPage(dict Dict) int {
	dest, ok := dict["Dest"]
	if !ok {
		if actionObj, ok := dict["A"]; ok {
			resolved, err := d.resolveIfRef(actionObj)
			if err != nil {
				return 0
			}
			if action, ok := resolved.(Dict); ok && action.GetName("S") == "GoTo" {
				dest = action["D"]
			}
		}
	}
	if dest == nil {
		return 0
	}
	return d.destToPage(dest)
}

// destToPage resolves an explicit destination array to a 1-based page
// number. Named destinations are not resolved.
func (d *Document) destToPage(dest Object) int {
	resolved, err := d.resolveIfRef(dest)
	if err != nil {
		return 0
	}
	arr, ok := resolved.(Array)
	if !ok || len(arr) == 0 {
		return 0
	}
	switch target := arr[0].(type) {
	case Reference:
		return d.pageByObjNum[target.Number]
	case Integer:
		// Some producers write a 0-based page index directly.
		n := int(target) + 1
		if n >= 1 && n <= len(d.pages) {
			return n
		}
	}
	return 0
}
