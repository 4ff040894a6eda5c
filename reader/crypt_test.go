package reader

import (
	"bytes"
	"crypto/md5"
	"crypto/rc4"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strings"
	"testing"
)

// padPassword pads or truncates a password to 32 bytes with the standard
// padding string.
func padPassword(pass string) []byte {
	padded := make([]byte, 32)
	n := copy(padded, pass)
	copy(padded[n:], pdfPadding[:32-n])
	return padded
}

// makeTestEncryptInfo builds a self-consistent encryptInfo: the /O and /U
// hashes are computed from the passwords with the standard algorithms, so
// the validation code in crypt.go can be exercised against known inputs.
func makeTestEncryptInfo(revision, keyLen int, userPass, ownerPass string) *encryptInfo {
	info := &encryptInfo{
		version:     revision - 1,
		revision:    revision,
		keyLength:   keyLen,
		permissions: -44,
		fileID:      []byte{0xDE, 0xAD, 0xBE, 0xEF, 0x01, 0x02, 0x03, 0x04},
	}

	// Owner key and /O hash.
	digest := md5.Sum(padPassword(ownerPass))
	if revision >= 3 {
		for i := 0; i < 50; i++ {
			digest = md5.Sum(digest[:])
		}
	}
	rkey := digest[:keyLen]

	ownerHash := padPassword(userPass)
	if revision == 2 {
		c, _ := rc4.NewCipher(rkey)
		c.XORKeyStream(ownerHash, ownerHash)
	} else {
		for i := 0; i <= 19; i++ {
			xored := make([]byte, len(rkey))
			for j := range rkey {
				xored[j] = rkey[j] ^ byte(i)
			}
			c, _ := rc4.NewCipher(xored)
			c.XORKeyStream(ownerHash, ownerHash)
		}
	}
	info.ownerHash = ownerHash

	// File key and /U hash.
	key := computeEncryptionKey([]byte(userPass), info)
	if revision == 2 {
		userHash := make([]byte, 32)
		c, _ := rc4.NewCipher(key)
		c.XORKeyStream(userHash, pdfPadding)
		info.userHash = userHash
	} else {
		h := md5.New()
		h.Write(pdfPadding)
		h.Write(info.fileID)
		sum := h.Sum(nil)
		for i := 0; i <= 19; i++ {
			xored := make([]byte, len(key))
			for j := range key {
				xored[j] = key[j] ^ byte(i)
			}
			c, _ := rc4.NewCipher(xored)
			c.XORKeyStream(sum, sum)
		}
		info.userHash = append(sum, make([]byte, 16)...)
	}
	return info
}

func TestValidateUserPassword(t *testing.T) {
	cases := []struct {
		name     string
		revision int
		keyLen   int
	}{
		{"rc4-40bit-r2", 2, 5},
		{"rc4-128bit-r3", 3, 16},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			info := makeTestEncryptInfo(tc.revision, tc.keyLen, "user123", "owner456")

			key := computeEncryptionKey([]byte("user123"), info)
			if len(key) != tc.keyLen {
				t.Fatalf("key length = %d, want %d", len(key), tc.keyLen)
			}
			if !validateUserPassword(key, info) {
				t.Error("correct user password rejected")
			}

			wrong := computeEncryptionKey([]byte("nope"), info)
			if validateUserPassword(wrong, info) {
				t.Error("wrong password accepted")
			}
		})
	}
}

func TestRecoverUserPassFromOwner(t *testing.T) {
	for _, revision := range []int{2, 3} {
		keyLen := 5
		if revision >= 3 {
			keyLen = 16
		}
		info := makeTestEncryptInfo(revision, keyLen, "user123", "owner456")

		recovered := recoverUserPassFromOwner([]byte("owner456"), info)
		key := computeEncryptionKey(recovered, info)
		if !validateUserPassword(key, info) {
			t.Errorf("R=%d: owner password did not recover a valid user key", revision)
		}

		recovered = recoverUserPassFromOwner([]byte("not-the-owner"), info)
		key = computeEncryptionKey(recovered, info)
		if validateUserPassword(key, info) {
			t.Errorf("R=%d: wrong owner password accepted", revision)
		}
	}
}

// objectKey derives the per-object RC4 key the same way makeObjectCipher
// does, for building encrypted fixtures.
func objectKey(fileKey []byte, objNum, genNum int) []byte {
	var buf []byte
	buf = append(buf, fileKey...)
	var nbuf [4]byte
	binary.LittleEndian.PutUint32(nbuf[:], uint32(objNum))
	buf = append(buf, nbuf[0], nbuf[1], nbuf[2])
	binary.LittleEndian.PutUint32(nbuf[:], uint32(genNum))
	buf = append(buf, nbuf[0], nbuf[1])
	hash := md5.Sum(buf)
	n := len(fileKey) + 5
	if n > 16 {
		n = 16
	}
	return hash[:n]
}

// encryptedPDF builds a 128-bit RC4 protected single-page document whose
// content stream draws the word "Secret".
func encryptedPDF(userPass, ownerPass string) []byte {
	info := makeTestEncryptInfo(3, 16, userPass, ownerPass)
	key := computeEncryptionKey([]byte(userPass), info)

	content := []byte(helloContent("Secret"))
	c, _ := rc4.NewCipher(objectKey(key, 4, 0))
	c.XORKeyStream(content, content)

	encryptDict := fmt.Sprintf(
		"<< /Filter /Standard /V 2 /R 3 /Length 128 /P %d /O <%s> /U <%s> >>",
		info.permissions,
		strings.ToUpper(hex.EncodeToString(info.ownerHash)),
		strings.ToUpper(hex.EncodeToString(info.userHash)))

	objects := []string{
		"<< /Type /Catalog /Pages 2 0 R >>",
		"<< /Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792] >>",
		"<< /Type /Page /Parent 2 0 R /Contents 4 0 R /Resources << /Font << /F1 5 0 R >> >> >>",
		streamObj("", string(content)),
		"<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>",
		encryptDict,
	}
	id := strings.ToUpper(hex.EncodeToString(info.fileID))
	trailer := fmt.Sprintf("/Root 1 0 R /Encrypt 6 0 R /ID [<%s> <%s>]", id, id)
	return buildPDF(objects, trailer)
}

func TestReadProtectedWithUserPassword(t *testing.T) {
	data := encryptedPDF("user123", "owner456")

	doc, err := ReadFromWithPassword(bytes.NewReader(data), "user123")
	if err != nil {
		t.Fatalf("opening with user password: %v", err)
	}
	page, err := doc.Page(1)
	if err != nil {
		t.Fatalf("Page(1): %v", err)
	}
	text, err := page.ExtractText()
	if err != nil {
		t.Fatalf("ExtractText: %v", err)
	}
	if !strings.Contains(text, "Secret") {
		t.Errorf("decrypted text = %q, want it to contain Secret", text)
	}
}

func TestReadProtectedWithOwnerPassword(t *testing.T) {
	data := encryptedPDF("user123", "owner456")

	doc, err := ReadFromWithPassword(bytes.NewReader(data), "owner456")
	if err != nil {
		t.Fatalf("opening with owner password: %v", err)
	}
	if doc.NumPages() != 1 {
		t.Errorf("NumPages = %d, want 1", doc.NumPages())
	}
}

func TestReadProtectedWrongPassword(t *testing.T) {
	data := encryptedPDF("user123", "owner456")

	if _, err := ReadFromWithPassword(bytes.NewReader(data), "letmein"); err == nil {
		t.Fatal("expected an error for a wrong password")
	}
}
