package verify

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

// IsMultipart reports whether an S3 entity tag is a composite multipart
// marker (<md5-of-part-md5s>-<part-count>) rather than a plain content
// hash. Encodes the "-" in etag test from the tool this was ported from.
func IsMultipart(etag string) bool {
	return strings.Contains(strings.Trim(etag, `"`), "-")
}

// md5File computes the streaming MD5 digest of path.
func md5File(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// sha256HealthCheck streams path end-to-end through SHA-256, confirming the
// bytes are readable without attempting to match a digest to the server's
// composite multipart etag (which cannot be reproduced without the
// original part boundaries).
func sha256HealthCheck(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	h := sha256.New()
	_, err = io.Copy(h, f)
	return err
}
