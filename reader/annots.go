package reader

// Annotation is one page annotation (/Annots entry).
type Annotation struct {
	Subtype  string
	Contents string
	Rect     Rectangle
}

// Link is a link annotation with its resolved target: an external URI or
// an internal 1-based page number (0 when absent).
type Link struct {
	URI        string
	TargetPage int
	Rect       Rectangle
}

// Annotations returns all annotations on this page.
func (p *Page) Annotations() ([]Annotation, error) {
	dicts, err := p.annotDicts()
	if err != nil {
		return nil, err
	}

	annots := make([]Annotation, 0, len(dicts))
	for _, dict := range dicts {
		a := Annotation{Subtype: string(dict.GetName("Subtype"))}
		if c, ok := dict["Contents"]; ok {
			if s, ok := c.(String); ok {
				a.Contents = decodePDFString(s.Value)
			}
		}
		if rectObj, ok := dict["Rect"]; ok {
			if resolved, err := p.doc.resolveIfRef(rectObj); err == nil {
				if rect, err := parseRectangle(resolved); err == nil {
					a.Rect = rect
				}
			}
		}
		annots = append(annots, a)
	}
	return annots, nil
}

// Links returns the link annotations on this page with their targets
// resolved. Links with neither a /URI action nor a resolvable destination
// are still reported, with empty target fields.
func (p *Page) Links() ([]Link, error) {
	dicts, err := p.annotDicts()
	if err != nil {
		return nil, err
	}

	links := make([]Link, 0)
	for _, dict := range dicts {
		if dict.GetName("Subtype") != "Link" {
			continue
		}

		link := Link{}
		if rectObj, ok := dict["Rect"]; ok {
			if resolved, err := p.doc.resolveIfRef(rectObj); err == nil {
				if rect, err := parseRectangle(resolved); err == nil {
					link.Rect = rect
				}
			}
		}

		if actionObj, ok := dict["A"]; ok {
			if resolved, err := p.doc.resolveIfRef(actionObj); err == nil {
				if action, ok := resolved.(Dict); ok {
					switch action.GetName("S") {
					case "URI":
						if u, ok := action["URI"]; ok {
							if s, ok := u.(String); ok {
								link.URI = decodePDFString(s.Value)
							}
						}
					case "GoTo":
						link.TargetPage = p.doc.destToPage(action["D"])
					}
				}
			}
		} else if dest, ok := dict["Dest"]; ok {
			link.TargetPage = p.doc.destToPage(dest)
		}

		links = append(links, link)
	}
	return links, nil
}

// annotDicts resolves the page's /Annots array into dictionaries.
func (p *Page) annotDicts() ([]Dict, error) {
	annotsObj, ok := p.dict["Annots"]
	if !ok {
		return nil, nil
	}
	resolved, err := p.doc.resolveIfRef(annotsObj)
	if err != nil {
		return nil, err
	}
	arr, ok := resolved.(Array)
	if !ok {
		return nil, nil
	}

	var dicts []Dict
	for _, item := range arr {
		itemResolved, err := p.doc.resolveIfRef(item)
		if err != nil {
			continue
		}
		if dict, ok := itemResolved.(Dict); ok {
			dicts = append(dicts, dict)
		}
	}
	return dicts, nil
}
