package pageops

import (
	"crypto/md5"
	"crypto/rc4"
	"encoding/binary"
	"io"

	"github.com/lvillar/pdfmcp/reader"
)

// Standard padding string from the PDF security handler.
var passwordPadding = []byte{
	0x28, 0xBF, 0x4E, 0x5E, 0x4E, 0x75, 0x8A, 0x41,
	0x64, 0x00, 0x4E, 0x56, 0xFF, 0xFA, 0x01, 0x08,
	0x2E, 0x2E, 0x00, 0xB6, 0xD0, 0x68, 0x3E, 0x80,
	0x2F, 0x0C, 0xA9, 0xFE, 0x64, 0x53, 0x69, 0x7A,
}

// Permissions selects what a reader opening the document with only the
// user password is allowed to do.
type Permissions struct {
	Print    bool
	Copy     bool
	Modify   bool
	Annotate bool
}

// value encodes the permission bits of the standard security handler.
func (p Permissions) value() int32 {
	v := 0xC0 // reserved bits 7 and 8
	if p.Print {
		v |= 1 << 2
	}
	if p.Modify {
		v |= 1 << 3
	}
	if p.Copy {
		v |= 1 << 4
	}
	if p.Annotate {
		v |= 1 << 5
	}
	return int32(v - 256)
}

// Protect rewrites the document encrypted with 128-bit RC4 (the standard
// security handler, revision 3). Opening it later requires the user or
// owner password. An empty owner password falls back to the user password.
//
// One RC4 keystream is shared across all string and stream payloads of an
// object, in serialized byte order. The reader package decrypts with the
// same shared-cipher scheme, so Protect/Unprotect round-trip; readers that
// restart the cipher for every string, as the standard handler describes,
// will only decrypt the first encrypted payload of each object correctly.
func Protect(w io.Writer, data []byte, userPass, ownerPass string, perms Permissions) error {
	doc, err := open(data)
	if err != nil {
		return err
	}
	if ownerPass == "" {
		ownerPass = userPass
	}

	fileID := md5.Sum(data)
	enc := newEncryptor(userPass, ownerPass, perms, fileID[:])

	b := &builder{}
	c := newCopier(doc, b)
	pagesRef := b.reserve()

	refs := make([]reader.Reference, 0, doc.NumPages())
	for n := 1; n <= doc.NumPages(); n++ {
		page, err := doc.Page(n)
		if err != nil {
			return err
		}
		ref, err := appendPage(b, c, page, pagesRef, pageSettings{})
		if err != nil {
			return err
		}
		refs = append(refs, ref)
	}

	kids := make(reader.Array, len(refs))
	for i, ref := range refs {
		kids[i] = ref
	}
	b.set(pagesRef, reader.Dict{
		"Type":  reader.Name("Pages"),
		"Kids":  kids,
		"Count": reader.Integer(len(refs)),
	})

	var infoRef reader.Reference
	if meta := doc.Metadata(); len(meta) > 0 {
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

// Unprotect rewrites an encrypted document without encryption. The
// password may be either the user or the owner password.
func Unprotect(w io.Writer, data []byte, password string) error {
	doc, err := openWithPassword(data, password)
	if err != nil {
		return err
	}
	return writePages(w, doc, allPages(doc), nil)
}

// encryptor holds the file encryption key and the /Encrypt dictionary for
// a document being written.
type encryptor struct {
	key    []byte
	fileID []byte
	dict   reader.Dict
}

// newEncryptor derives the RC4-128 file key and the /O and /U password
// hashes (security handler algorithms 2, 3 and 5).
func newEncryptor(userPass, ownerPass string, perms Permissions, fileID []byte) *encryptor {
	p := perms.value()

	// Algorithm 3: the /O value.
	digest := md5.Sum(padPass(ownerPass))
	for i := 0; i < 50; i++ {
		digest = md5.Sum(digest[:])
	}
	rkey := digest[:16]

	ownerHash := padPass(userPass)
	for i := 0; i <= 19; i++ {
		c, _ := rc4.NewCipher(xorKey(rkey, byte(i)))
		c.XORKeyStream(ownerHash, ownerHash)
	}

	// Algorithm 2: the file key.
	h := md5.New()
	h.Write(padPass(userPass))
	h.Write(ownerHash)
	var pbuf [4]byte
	binary.LittleEndian.PutUint32(pbuf[:], uint32(p))
	h.Write(pbuf[:])
	h.Write(fileID)
	sum := h.Sum(nil)
	for i := 0; i < 50; i++ {
		tmp := md5.Sum(sum[:16])
		sum = tmp[:]
	}
	key := sum[:16]

	// Algorithm 5: the /U value.
	h = md5.New()
	h.Write(passwordPadding)
	h.Write(fileID)
	userHash := h.Sum(nil)
	for i := 0; i <= 19; i++ {
		c, _ := rc4.NewCipher(xorKey(key, byte(i)))
		c.XORKeyStream(userHash, userHash)
	}
	userHash = append(userHash, make([]byte, 16)...)

	return &encryptor{
		key:    key,
		fileID: fileID,
		dict: reader.Dict{
			"Filter": reader.Name("Standard"),
			"V":      reader.Integer(2),
			"R":      reader.Integer(3),
			"Length": reader.Integer(128),
			"P":      reader.Integer(p),
			"O":      reader.String{Value: ownerHash, IsHex: true},
			"U":      reader.String{Value: userHash, IsHex: true},
		},
	}
}

// objectCipher derives the per-object RC4 cipher: MD5 of the file key plus
// the low bytes of the object and generation numbers.
func (e *encryptor) objectCipher(objNum, genNum int) *rc4.Cipher {
	var buf []byte
	buf = append(buf, e.key...)
	var nbuf [4]byte
	binary.LittleEndian.PutUint32(nbuf[:], uint32(objNum))
	buf = append(buf, nbuf[0], nbuf[1], nbuf[2])
	binary.LittleEndian.PutUint32(nbuf[:], uint32(genNum))
	buf = append(buf, nbuf[0], nbuf[1])

	hash := md5.Sum(buf)
	c, _ := rc4.NewCipher(hash[:16])
	return c
}

func padPass(pass string) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pass)
	copy(padded[n:], passwordPadding[:32-n])
	return padded
}

func xorKey(key []byte, x byte) []byte {
	out := make([]byte, len(key))
	for i, b := range key {
		out[i] = b ^ x
	}
	return out
}
