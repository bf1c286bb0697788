package httprange

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateBoundaryLength(t *testing.T) {
	b, err := GenerateBoundary()
	require.NoError(t, err)
	assert.Len(t, b, BoundaryLength)
	assert.Regexp(t, `^-{26}[0-9a-f]{24}$`, b)
}

func TestParseRangeHeaderStartEnd(t *testing.T) {
	ranges, err := ParseRangeHeader("bytes=0-99", 1000)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, Range{Start: 0, End: 99}, ranges[0])
	assert.Equal(t, int64(100), ranges[0].Length())
}

func TestParseRangeHeaderOpenEnded(t *testing.T) {
	ranges, err := ParseRangeHeader("bytes=900-", 1000)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, Range{Start: 900, End: 999}, ranges[0])
}

func TestParseRangeHeaderSuffix(t *testing.T) {
	ranges, err := ParseRangeHeader("bytes=-100", 1000)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, Range{Start: 900, End: 999}, ranges[0])
}

func TestParseRangeHeaderSuffixLargerThanTotalClampsToWholeContent(t *testing.T) {
	ranges, err := ParseRangeHeader("bytes=-5000", 1000)
	require.NoError(t, err)
	require.Len(t, ranges, 1)
	assert.Equal(t, Range{Start: 0, End: 999}, ranges[0])
}

func TestParseRangeHeaderMultipleRanges(t *testing.T) {
	ranges, err := ParseRangeHeader("bytes=0-99,200-299", 1000)
	require.NoError(t, err)
	require.Len(t, ranges, 2)
	assert.Equal(t, Range{Start: 200, End: 299}, ranges[1])
}

func TestParseRangeHeaderRejectsMissingPrefix(t *testing.T) {
	_, err := ParseRangeHeader("0-99", 1000)
	assert.Error(t, err)
}

func TestParseRangeHeaderRejectsUnsatisfiableRange(t *testing.T) {
	_, err := ParseRangeHeader("bytes=2000-3000", 1000)
	assert.Error(t, err)
}

func TestParseRangeHeaderRejectsInvertedRange(t *testing.T) {
	_, err := ParseRangeHeader("bytes=500-100", 1000)
	assert.Error(t, err)
}

func TestResponseSizeNoRangeHeaderBillsFullContent(t *testing.T) {
	size, ranges := ResponseSize("", 1000, "application/octet-stream")
	assert.Equal(t, int64(1000), size)
	assert.Nil(t, ranges)
}

func TestResponseSizeMalformedRangeBillsFullContent(t *testing.T) {
	size, ranges := ResponseSize("bytes=5000-6000", 1000, "application/octet-stream")
	assert.Equal(t, int64(1000), size)
	assert.Nil(t, ranges)
}

func TestResponseSizeSingleRangeBillsRangeLength(t *testing.T) {
	size, ranges := ResponseSize("bytes=0-99", 1000, "application/octet-stream")
	assert.Equal(t, int64(100), size)
	require.Len(t, ranges, 1)
}

func TestResponseSizeMultipleRangesBillsMultipartEnvelope(t *testing.T) {
	size, ranges := ResponseSize("bytes=0-9,20-29", 1000, "text/plain")
	require.Len(t, ranges, 2)
	assert.Equal(t, MultipartSize(ranges, 1000, "text/plain"), size)
}

func TestMultipartSizeExactByteCount(t *testing.T) {
	ranges := []Range{{Start: 0, End: 9}}
	size := MultipartSize(ranges, 100, "text/plain")

	boundary := ""
	for i := 0; i < BoundaryLength; i++ {
		boundary += "-"
	}
	want := int64(len("--"+boundary+"\r\n")) +
		int64(len("Content-Type: text/plain\r\n")) +
		int64(len("Content-Range: bytes 0-9/100\r\n\r\n")) +
		10 + 2 +
		int64(len("--"+boundary+"--\r\n"))
	assert.Equal(t, want, size)
}

func TestContentDigestTranslatesBase64URLToStandard(t *testing.T) {
	// "a-b_c" (base64url) -> "a+b/c" (standard), padded to a multiple of 4.
	got := ContentDigest("a-b_c")
	assert.Equal(t, "sha-256=:a+b/c===:", got)
}

func TestContentDigestLeavesAlreadyPaddedValueAlone(t *testing.T) {
	got := ContentDigest("YWJjZA==")
	assert.Equal(t, "sha-256=:YWJjZA==:", got)
}

func TestETagWrapsInQuotes(t *testing.T) {
	assert.Equal(t, `"abc123"`, ETag("abc123"))
}

func TestShouldReturnNotModifiedRequiresMatchingETag(t *testing.T) {
	req := ConditionalRequest{IfNoneMatch: `"abc"`, IsLocallyCached: true}
	assert.True(t, ShouldReturnNotModified(req, `"abc"`))

	req.IfNoneMatch = `"xyz"`
	assert.False(t, ShouldReturnNotModified(req, `"abc"`))
}

func TestShouldReturnNotModifiedRequiresCacheOrHead(t *testing.T) {
	req := ConditionalRequest{IfNoneMatch: `"abc"`, IsLocallyCached: false, IsHEAD: false}
	assert.False(t, ShouldReturnNotModified(req, `"abc"`))

	req.IsHEAD = true
	assert.True(t, ShouldReturnNotModified(req, `"abc"`))
}

func TestShouldReturnNotModifiedRequiresIfNoneMatchPresent(t *testing.T) {
	req := ConditionalRequest{IsLocallyCached: true}
	assert.False(t, ShouldReturnNotModified(req, `"abc"`))
}
