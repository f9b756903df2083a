package dispatch

import (
	"encoding/xml"
	"time"

	"github.com/prn-tf/s3gate/internal/domain"
	"github.com/prn-tf/s3gate/internal/storage"
)

const s3Namespace = "http://s3.amazonaws.com/doc/2006-03-01/"

// Owner is the S3 XML owner fragment. This server has no concept of a
// numeric user ID; the access key ID stands in for both fields.
type Owner struct {
	ID          string `xml:"ID"`
	DisplayName string `xml:"DisplayName"`
}

func ownerOf(accessKeyID string) Owner {
	return Owner{ID: accessKeyID, DisplayName: accessKeyID}
}

// ListAllMyBucketsResult is the body of a ListBuckets response.
type ListAllMyBucketsResult struct {
	XMLName xml.Name      `xml:"ListAllMyBucketsResult"`
	Xmlns   string        `xml:"xmlns,attr"`
	Owner   Owner         `xml:"Owner"`
	Buckets bucketsWrapper `xml:"Buckets"`
}

type bucketsWrapper struct {
	Bucket []bucketEntry `xml:"Bucket"`
}

type bucketEntry struct {
	Name         string `xml:"Name"`
	CreationDate string `xml:"CreationDate"`
}

func newListAllMyBucketsResult(owner string, buckets []*domain.Bucket) *ListAllMyBucketsResult {
	entries := make([]bucketEntry, 0, len(buckets))
	for _, b := range buckets {
		entries = append(entries, bucketEntry{
			Name:         b.Name,
			CreationDate: b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	return &ListAllMyBucketsResult{
		Xmlns:   s3Namespace,
		Owner:   ownerOf(owner),
		Buckets: bucketsWrapper{Bucket: entries},
	}
}

// contentsEntry is one <Contents> object entry in a listing response.
type contentsEntry struct {
	Key          string `xml:"Key"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
	StorageClass string `xml:"StorageClass"`
}

type commonPrefixEntry struct {
	Prefix string `xml:"Prefix"`
}

// ListBucketResult serves both ListObjectsV1 and ListObjectsV2; fields
// that don't apply to one version are simply left zero/omitted.
type ListBucketResult struct {
	XMLName        xml.Name            `xml:"ListBucketResult"`
	Xmlns          string              `xml:"xmlns,attr"`
	Name           string              `xml:"Name"`
	Prefix         string              `xml:"Prefix"`
	Marker         string              `xml:"Marker,omitempty"`
	NextMarker     string              `xml:"NextMarker,omitempty"`
	ContinuationToken     string       `xml:"ContinuationToken,omitempty"`
	NextContinuationToken string       `xml:"NextContinuationToken,omitempty"`
	StartAfter     string              `xml:"StartAfter,omitempty"`
	KeyCount       int                 `xml:"KeyCount,omitempty"`
	MaxKeys        int                 `xml:"MaxKeys"`
	Delimiter      string              `xml:"Delimiter,omitempty"`
	IsTruncated    bool                `xml:"IsTruncated"`
	Contents       []contentsEntry     `xml:"Contents"`
	CommonPrefixes []commonPrefixEntry `xml:"CommonPrefixes,omitempty"`
}

func newListBucketResult(bucket string, opts storage.ListOptions, res *storage.ListResult, v2 bool) *ListBucketResult {
	contents := make([]contentsEntry, 0, len(res.Objects))
	for _, o := range res.Objects {
		contents = append(contents, contentsEntry{
			Key:          o.Key,
			LastModified: o.LastModified.UTC().Format(time.RFC3339),
			ETag:         o.ETag,
			Size:         o.Size,
			StorageClass: "STANDARD",
		})
	}
	prefixes := make([]commonPrefixEntry, 0, len(res.CommonPrefixes))
	for _, p := range res.CommonPrefixes {
		prefixes = append(prefixes, commonPrefixEntry{Prefix: p})
	}

	result := &ListBucketResult{
		Xmlns:          s3Namespace,
		Name:           bucket,
		Prefix:         opts.Prefix,
		MaxKeys:        opts.MaxKeys,
		Delimiter:      opts.Delimiter,
		IsTruncated:    res.IsTruncated,
		Contents:       contents,
		CommonPrefixes: prefixes,
	}
	if v2 {
		result.KeyCount = len(contents)
		result.StartAfter = opts.StartAfter
		if res.IsTruncated {
			result.NextContinuationToken = res.NextToken
		}
	} else {
		if res.IsTruncated {
			result.NextMarker = res.NextToken
		}
	}
	return result
}

// InitiateMultipartUploadResult is the response body of InitiateMultipart.
type InitiateMultipartUploadResult struct {
	XMLName  xml.Name `xml:"InitiateMultipartUploadResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	UploadID string   `xml:"UploadId"`
}

// completeMultipartUploadRequest is the parsed request body of CompleteMultipart.
type completeMultipartUploadRequest struct {
	XMLName xml.Name            `xml:"CompleteMultipartUpload"`
	Parts   []completedPartEntry `xml:"Part"`
}

type completedPartEntry struct {
	PartNumber int    `xml:"PartNumber"`
	ETag       string `xml:"ETag"`
}

// CompleteMultipartUploadResult is the response body of CompleteMultipart.
type CompleteMultipartUploadResult struct {
	XMLName  xml.Name `xml:"CompleteMultipartUploadResult"`
	Xmlns    string   `xml:"xmlns,attr"`
	Location string   `xml:"Location"`
	Bucket   string   `xml:"Bucket"`
	Key      string   `xml:"Key"`
	ETag     string   `xml:"ETag"`
}

type partEntry struct {
	PartNumber   int    `xml:"PartNumber"`
	LastModified string `xml:"LastModified"`
	ETag         string `xml:"ETag"`
	Size         int64  `xml:"Size"`
}

// ListPartsResult is the response body of ListParts.
type ListPartsResult struct {
	XMLName  xml.Name    `xml:"ListPartsResult"`
	Xmlns    string      `xml:"xmlns,attr"`
	Bucket   string      `xml:"Bucket"`
	Key      string      `xml:"Key"`
	UploadID string      `xml:"UploadId"`
	Part     []partEntry `xml:"Part"`
}

type uploadEntry struct {
	Key       string `xml:"Key"`
	UploadID  string `xml:"UploadId"`
	Initiated string `xml:"Initiated"`
}

// ListMultipartUploadsResult is the response body of ListMultipartUploads.
type ListMultipartUploadsResult struct {
	XMLName xml.Name      `xml:"ListMultipartUploadsResult"`
	Xmlns   string        `xml:"xmlns,attr"`
	Bucket  string        `xml:"Bucket"`
	Upload  []uploadEntry `xml:"Upload"`
}

// Error is the S3 XML error envelope (SPEC_FULL §6).
type Error struct {
	XMLName   xml.Name `xml:"Error"`
	Code      string   `xml:"Code"`
	Message   string   `xml:"Message"`
	Resource  string   `xml:"Resource,omitempty"`
	RequestID string   `xml:"RequestId,omitempty"`
}
