// Package verify implements the two-stage verifier: an inventory check
// comparing the local tree to the recorded manifest, then a content check
// recomputing digests against the recorded entity tags.
package verify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/mahrens917/aws-sub001/progress"
	"github.com/mahrens917/aws-sub001/store"
)

// ErrVerification is raised when one or more files fail the content check
// (size mismatch or checksum mismatch).
var ErrVerification = errors.New("content verification failed")

// ErrVerificationCountMismatch is raised when the number of files verified
// does not equal the expected file count, a hard failure distinct from any
// individual file's mismatch.
var ErrVerificationCountMismatch = errors.New("verified file count does not match expected file count")

// progressEvery controls how often progress is printed, in files, in
// addition to the time-based throttle.
const progressEvery = 100

// Verifier runs both stages of verification for one bucket.
type Verifier struct {
	store         *store.Store
	localBasePath string
}

// NewVerifier constructs a Verifier rooted at localBasePath.
func NewVerifier(st *store.Store, localBasePath string) *Verifier {
	return &Verifier{store: st, localBasePath: localBasePath}
}

// VerifyBucket runs the inventory check followed by the content check for
// bucket, then records the five verification metrics.
func (v *Verifier) VerifyBucket(bucket string, token *progress.Token) error {
	files, err := v.store.GetFilesForBucket(bucket)
	if err != nil {
		return err
	}

	bucketDir := filepath.Join(v.localBasePath, bucket)

	expected := make(map[string]ExpectedFile, len(files))
	for _, f := range files {
		expected[normalizeKey(f.Key)] = ExpectedFile{Size: f.Size, ETag: f.ETag}
	}

	local, err := ScanLocalFiles(bucketDir)
	if err != nil {
		return err
	}

	if _, err := CheckInventory(expected, local); err != nil {
		return err
	}

	result, err := v.verifyContent(bucket, bucketDir, expected, token)
	if err != nil {
		return err
	}
	result.LocalFileCount = uint64(len(local))

	if result.VerifiedFileCount != uint64(len(expected)) {
		return fmt.Errorf("%w: bucket %s verified %d of %d expected files",
			ErrVerificationCountMismatch, bucket, result.VerifiedFileCount, len(expected))
	}

	return v.store.MarkBucketVerifyComplete(result)
}

type contentError struct {
	key     string
	message string
}

func (v *Verifier) verifyContent(bucket, bucketDir string, expected map[string]ExpectedFile, token *progress.Token) (store.VerifyResult, error) {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	result := store.VerifyResult{Bucket: bucket}
	var errs []contentError

	printer := progress.NewPrinterWithInterval(fmt.Sprintf("verifying %s", bucket), 2*time.Second)

	for i, key := range keys {
		if token.Cancelled() {
			break
		}

		exp := expected[key]
		local := filepath.Join(bucketDir, filepath.FromSlash(key))

		info, err := os.Stat(local)
		if err != nil {
			errs = append(errs, contentError{key: key, message: fmt.Sprintf("stat failed: %v", err)})
			continue
		}
		if uint64(info.Size()) != exp.Size {
			errs = append(errs, contentError{key: key, message: fmt.Sprintf("size mismatch: local=%d expected=%d", info.Size(), exp.Size)})
			continue
		}
		result.SizeVerifiedCount++

		if IsMultipart(exp.ETag) {
			if err := sha256HealthCheck(local); err != nil {
				errs = append(errs, contentError{key: key, message: fmt.Sprintf("health check read failed: %v", err)})
				continue
			}
		} else {
			sum, err := md5File(local)
			if err != nil {
				errs = append(errs, contentError{key: key, message: fmt.Sprintf("md5 read failed: %v", err)})
				continue
			}
			wantTag := strings.Trim(exp.ETag, `"`)
			if sum != wantTag {
				errs = append(errs, contentError{key: key, message: fmt.Sprintf("checksum mismatch: local=%s expected=%s", sum, wantTag)})
				continue
			}
		}
		result.ChecksumVerifiedCount++
		result.VerifiedFileCount++
		result.TotalBytesVerified += exp.Size

		if (i+1)%progressEvery == 0 {
			printer.Printf("verified %d/%d files in %s", i+1, len(keys), bucket)
		}
	}
	printer.Finish(fmt.Sprintf("verified %d/%d files in %s", result.VerifiedFileCount, len(keys), bucket))

	if len(errs) > 0 {
		return result, fmt.Errorf("%w: %s", ErrVerification, summarizeContentErrors(errs))
	}
	return result, nil
}

func summarizeContentErrors(errs []contentError) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%d file(s) failed verification", len(errs))

	shown := errs
	var more int
	if len(errs) > maxErrorDisplay {
		shown = errs[:maxErrorDisplay]
		more = len(errs) - maxErrorDisplay
	}
	for _, e := range shown {
		fmt.Fprintf(&b, "; %s: %s", e.key, e.message)
	}
	if more > 0 {
		fmt.Fprintf(&b, "; ...and %d more", more)
	}
	return b.String()
}

func normalizeKey(key string) string {
	return strings.ReplaceAll(key, `\`, "/")
}
