package storage

import (
	"bytes"
	"context"
	"io"
	"net/url"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
)

// AWS talks to Amazon S3 through the AWS SDK. Unlike the minio-backed S3
// store, List issues exactly one ListObjects call and returns that page.
type AWS struct {
	Client s3iface.S3API
	Bucket string
}

// NewAWS builds a client from static credentials when given, otherwise from
// the SDK's default credential chain. An empty endpoint targets AWS itself.
func NewAWS(endpoint, region, bucket, accessKey, secretKey, sessionToken string, forcePathStyle bool) (*AWS, error) {
	cfg := aws.NewConfig().WithRegion(region).WithS3ForcePathStyle(forcePathStyle)
	if accessKey != "" || secretKey != "" {
		cfg = cfg.WithCredentials(credentials.NewStaticCredentials(accessKey, secretKey, sessionToken))
	}
	if endpoint != "" {
		cfg = cfg.WithEndpoint(endpoint)
	}
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return &AWS{Client: s3.New(sess), Bucket: bucket}, nil
}

func (a *AWS) Put(ctx context.Context, key string, reader io.Reader, _ int64, opts PutOptions) error {
	body, ok := reader.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(reader)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
		Body:   body,
	}
	if opts.ACL != "" {
		input.ACL = aws.String(opts.ACL)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = aws.StringMap(opts.Metadata)
	}
	_, err := a.Client.PutObjectWithContext(ctx, input)
	return err
}

func (a *AWS) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	out, err := a.Client.GetObjectWithContext(ctx, &s3.GetObjectInput{
		Bucket: aws.String(a.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}

func (a *AWS) List(ctx context.Context, prefix string) ([]ObjectInfo, error) {
	out, err := a.Client.ListObjectsWithContext(ctx, &s3.ListObjectsInput{
		Bucket: aws.String(a.Bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return nil, err
	}
	infos := make([]ObjectInfo, 0, len(out.Contents))
	for _, obj := range out.Contents {
		infos = append(infos, ObjectInfo{
			Key:      aws.StringValue(obj.Key),
			Size:     aws.Int64Value(obj.Size),
			Modified: aws.TimeValue(obj.LastModified),
		})
	}
	return infos, nil
}

func (a *AWS) Copy(ctx context.Context, srcKey, dstKey string, opts PutOptions) error {
	input := &s3.CopyObjectInput{
		Bucket:     aws.String(a.Bucket),
		CopySource: aws.String(url.PathEscape(a.Bucket + "/" + srcKey)),
		Key:        aws.String(dstKey),
	}
	if opts.ACL != "" {
		input.ACL = aws.String(opts.ACL)
	}
	if opts.ContentType != "" || len(opts.Metadata) > 0 {
		input.MetadataDirective = aws.String(s3.MetadataDirectiveReplace)
	}
	if opts.ContentType != "" {
		input.ContentType = aws.String(opts.ContentType)
	}
	if len(opts.Metadata) > 0 {
		input.Metadata = aws.StringMap(opts.Metadata)
	}
	_, err := a.Client.CopyObjectWithContext(ctx, input)
	return err
}
