package pageops

import (
	"bytes"
	"compress/zlib"
	"crypto/rc4"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/lvillar/pdfmcp/reader"
)

// builder accumulates the indirect objects of a document being written.
// Object numbers are assigned in insertion order, starting at 1.
type builder struct {
	objects []reader.Object
}

// add appends an object and returns its reference.
func (b *builder) add(obj reader.Object) reader.Reference {
	b.objects = append(b.objects, obj)
	return reader.Reference{Number: len(b.objects)}
}

// reserve allocates an object number whose value is supplied later with
// set. It allows reference cycles while copying.
func (b *builder) reserve() reader.Reference {
	return b.add(reader.Null{})
}

func (b *builder) set(ref reader.Reference, obj reader.Object) {
	b.objects[ref.Number-1] = obj
}

// output serializes the accumulated objects as a complete PDF file with a
// classic cross-reference table. A non-nil encryptor protects all strings
// and streams and appends the /Encrypt dictionary.
func (b *builder) output(w io.Writer, root, info reader.Reference, enc *encryptor) error {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	// Binary marker so transfer tools treat the file as binary.
	buf.WriteString("%\xe2\xe3\xcf\xd3\n")

	offsets := make([]int, 0, len(b.objects)+1)
	writeOne := func(num int, obj reader.Object, cipher *rc4.Cipher) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n", num)
		writeObject(&buf, obj, cipher)
		buf.WriteString("\nendobj\n")
	}

	for i, obj := range b.objects {
		var cipher *rc4.Cipher
		if enc != nil {
			cipher = enc.objectCipher(i+1, 0)
		}
		writeOne(i+1, obj, cipher)
	}

	var encryptRef reader.Reference
	if enc != nil {
		// The encryption dictionary itself is written in the clear.
		encryptRef = reader.Reference{Number: len(b.objects) + 1}
		writeOne(encryptRef.Number, enc.dict, nil)
	}

	xrefPos := buf.Len()
	size := len(offsets) + 1
	fmt.Fprintf(&buf, "xref\n0 %d\n", size)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}

	buf.WriteString("trailer\n<< ")
	fmt.Fprintf(&buf, "/Size %d /Root %d 0 R", size, root.Number)
	if info.Number > 0 {
		fmt.Fprintf(&buf, " /Info %d 0 R", info.Number)
	}
	if enc != nil {
		fmt.Fprintf(&buf, " /Encrypt %d 0 R /ID [<%X> <%X>]", encryptRef.Number, enc.fileID, enc.fileID)
	}
	buf.WriteString(" >>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefPos)

	_, err := w.Write(buf.Bytes())
	return err
}

// writeObject serializes one object. A non-nil cipher encrypts string and
// stream payloads; the cipher state is shared across all payloads of the
// object, in document order, matching how the reader decrypts.
func writeObject(buf *bytes.Buffer, obj reader.Object, cipher *rc4.Cipher) {
	switch o := obj.(type) {
	case nil, reader.Null:
		buf.WriteString("null")
	case reader.Boolean:
		if o {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case reader.Integer:
		fmt.Fprintf(buf, "%d", int64(o))
	case reader.Real:
		buf.WriteString(formatReal(float64(o)))
	case reader.Name:
		writeName(buf, o)
	case reader.String:
		writeString(buf, o, cipher)
	case reader.Array:
		buf.WriteByte('[')
		for i, item := range o {
			if i > 0 {
				buf.WriteByte(' ')
			}
			writeObject(buf, item, cipher)
		}
		buf.WriteByte(']')
	case reader.Dict:
		writeDict(buf, o, cipher)
	case reader.Reference:
		fmt.Fprintf(buf, "%d %d R", o.Number, o.Generation)
	case reader.Stream:
		data := o.Data
		if cipher != nil {
			enc := make([]byte, len(data))
			cipher.XORKeyStream(enc, data)
			data = enc
		}
		dict := make(reader.Dict, len(o.Dict)+1)
		for k, v := range o.Dict {
			dict[k] = v
		}
		dict["Length"] = reader.Integer(len(data))
		writeDict(buf, dict, cipher)
		buf.WriteString("\nstream\n")
		buf.Write(data)
		buf.WriteString("\nendstream")
	}
}

// writeDict serializes a dictionary with its keys sorted, so output is
// deterministic.
func writeDict(buf *bytes.Buffer, d reader.Dict, cipher *rc4.Cipher) {
	keys := make([]string, 0, len(d))
	for k := range d {
		keys = append(keys, string(k))
	}
	sort.Strings(keys)

	buf.WriteString("<< ")
	for _, k := range keys {
		writeName(buf, reader.Name(k))
		buf.WriteByte(' ')
		writeObject(buf, d[reader.Name(k)], cipher)
		buf.WriteByte(' ')
	}
	buf.WriteString(">>")
}

func writeName(buf *bytes.Buffer, n reader.Name) {
	buf.WriteByte('/')
	for i := 0; i < len(n); i++ {
		b := n[i]
		if b <= ' ' || b > '~' || strings.IndexByte("()<>[]{}/%#", b) >= 0 {
			fmt.Fprintf(buf, "#%02X", b)
		} else {
			buf.WriteByte(b)
		}
	}
}

func writeString(buf *bytes.Buffer, s reader.String, cipher *rc4.Cipher) {
	data := s.Value
	if cipher != nil {
		enc := make([]byte, len(data))
		cipher.XORKeyStream(enc, data)
		// Encrypted bytes are arbitrary; hex keeps them unambiguous.
		fmt.Fprintf(buf, "<%X>", enc)
		return
	}
	if s.IsHex {
		fmt.Fprintf(buf, "<%X>", data)
		return
	}
	buf.WriteByte('(')
	for _, b := range data {
		switch b {
		case '(', ')', '\\':
			buf.WriteByte('\\')
			buf.WriteByte(b)
		case '\n':
			buf.WriteString(`\n`)
		case '\r':
			buf.WriteString(`\r`)
		default:
			buf.WriteByte(b)
		}
	}
	buf.WriteByte(')')
}

// formatReal renders a float without exponent notation, which PDF does not
// allow.
func formatReal(f float64) string {
	s := strconv.FormatFloat(f, 'f', -1, 64)
	return s
}

// copier transfers object graphs from a parsed document into a builder,
// renumbering references and deduplicating shared objects.
type copier struct {
	src  *reader.Document
	dst  *builder
	seen map[int]reader.Reference // source object number -> destination ref
}

func newCopier(src *reader.Document, dst *builder) *copier {
	return &copier{src: src, dst: dst, seen: make(map[int]reader.Reference)}
}

// copyObject deep-copies obj into the destination builder. References are
// followed, their targets copied once, and rewritten to destination
// numbers.
func (c *copier) copyObject(obj reader.Object) (reader.Object, error) {
	switch o := obj.(type) {
	case reader.Reference:
		if ref, ok := c.seen[o.Number]; ok {
			return ref, nil
		}
		placeholder := c.dst.reserve()
		c.seen[o.Number] = placeholder
		resolved, err := c.src.ResolveReference(o)
		if err != nil {
			return nil, fmt.Errorf("pageops: resolving object %d: %w", o.Number, err)
		}
		copied, err := c.copyObject(resolved)
		if err != nil {
			return nil, err
		}
		c.dst.set(placeholder, copied)
		return placeholder, nil

	case reader.Dict:
		out := make(reader.Dict, len(o))
		for k, v := range o {
			copied, err := c.copyObject(v)
			if err != nil {
				return nil, err
			}
			out[k] = copied
		}
		return out, nil

	case reader.Array:
		out := make(reader.Array, len(o))
		for i, v := range o {
			copied, err := c.copyObject(v)
			if err != nil {
				return nil, err
			}
			out[i] = copied
		}
		return out, nil

	case reader.Stream:
		dict := make(reader.Dict, len(o.Dict))
		for k, v := range o.Dict {
			if k == "Length" {
				continue // recomputed on output
			}
			copied, err := c.copyObject(v)
			if err != nil {
				return nil, err
			}
			dict[k] = copied
		}
		return reader.Stream{Dict: dict, Data: o.Data}, nil

	default:
		return obj, nil
	}
}

// pageSettings adjusts a page while it is being copied.
type pageSettings struct {
	rotate   *int // override /Rotate
	compress bool // flate-compress unfiltered streams
	extra    []reader.Stream
}

// appendPage copies one parsed page into the builder as a self-contained
// page object under the given /Pages parent, and returns its reference.
// Inherited attributes are materialized onto the page dictionary.
func appendPage(b *builder, c *copier, p *reader.Page, parent reader.Reference, set pageSettings) (reader.Reference, error) {
	dict := reader.Dict{
		"Type":   reader.Name("Page"),
		"Parent": parent,
		"MediaBox": reader.Array{
			reader.Real(p.MediaBox.LLX), reader.Real(p.MediaBox.LLY),
			reader.Real(p.MediaBox.URX), reader.Real(p.MediaBox.URY),
		},
	}
	if p.CropBox != nil {
		dict["CropBox"] = reader.Array{
			reader.Real(p.CropBox.LLX), reader.Real(p.CropBox.LLY),
			reader.Real(p.CropBox.URX), reader.Real(p.CropBox.URY),
		}
	}

	rotate := p.Rotate
	if set.rotate != nil {
		rotate = *set.rotate
	}
	if rotate != 0 {
		dict["Rotate"] = reader.Integer(rotate)
	}

	if p.Resources != nil {
		res, err := c.copyObject(p.Resources)
		if err != nil {
			return reader.Reference{}, err
		}
		dict["Resources"] = res
	}

	streams := append(append([]reader.Stream(nil), p.Contents...), set.extra...)
	var contents reader.Array
	for _, s := range streams {
		copied, err := c.copyObject(s)
		if err != nil {
			return reader.Reference{}, err
		}
		cs := copied.(reader.Stream)
		if set.compress {
			cs = compressStream(cs)
		}
		contents = append(contents, b.add(cs))
	}
	switch len(contents) {
	case 0:
	case 1:
		dict["Contents"] = contents[0]
	default:
		dict["Contents"] = contents
	}

	return b.add(dict), nil
}

// compressStream flate-compresses a stream that carries no filter yet.
// Already-filtered data is left alone.
func compressStream(s reader.Stream) reader.Stream {
	if _, ok := s.Dict["Filter"]; ok {
		return s
	}
	var buf bytes.Buffer
	zw, err := zlib.NewWriterLevel(&buf, zlib.BestCompression)
	if err != nil {
		return s
	}
	if _, err := zw.Write(s.Data); err != nil {
		zw.Close()
		return s
	}
	if err := zw.Close(); err != nil {
		return s
	}
	if buf.Len() >= len(s.Data) {
		return s // compression did not help
	}
	s.Dict["Filter"] = reader.Name("FlateDecode")
	s.Data = buf.Bytes()
	return s
}

// buildDocument assembles a complete document from already-copied page
// references and optional metadata.
func buildDocument(w io.Writer, b *builder, pageRefs []reader.Reference, pagesRef reader.Reference, meta map[string]string, enc *encryptor) error {
	kids := make(reader.Array, len(pageRefs))
	for i, ref := range pageRefs {
		kids[i] = ref
	}
	b.set(pagesRef, reader.Dict{
		"Type":  reader.Name("Pages"),
		"Kids":  kids,
		"Count": reader.Integer(len(pageRefs)),
	})

	var infoRef reader.Reference
	if len(meta) > 0 {
		info := make(reader.Dict, len(meta))
		for k, v := range meta {
			info[reader.Name(k)] = reader.String{Value: []byte(v)}
		}
		infoRef = b.add(info)
	}

	rootRef := b.add(reader.Dict{
		"Type":  reader.Name("Catalog"),
		"Pages": pagesRef,
	})
	return b.output(w, rootRef, infoRef, enc)
}
