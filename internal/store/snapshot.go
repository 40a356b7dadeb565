package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"golang.org/x/sync/errgroup"
)

// Snapshot kinds, used as file name prefixes.
const (
	SnapshotCustomized = "finalCustomizedAnswers"
	SnapshotBehavioral = "finalBehaviorAnswers"
)

// ErrSnapshotExists is returned when a snapshot name is already taken.
var ErrSnapshotExists = errors.New("snapshot already exists")

// SnapshotSink stores write-once audit copies of submitted answers.
type SnapshotSink interface {
	// Save writes payload as pretty JSON under name and returns where it went.
	Save(ctx context.Context, name string, payload any) (string, error)
}

// SnapshotName builds <kind>_<sessionID>_<timestamp>.json where the timestamp
// is the UTC ISO-8601 time with ':' and '.' replaced by '-'.
func SnapshotName(kind, sessionID string, t time.Time) string {
	ts := t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
	ts = strings.NewReplacer(":", "-", ".", "-").Replace(ts)
	return fmt.Sprintf("%s_%s_%s.json", kind, sessionID, ts)
}

// NumberedSnapshotName returns name with a -n suffix before the extension, used
// when two snapshots of one session land in the same millisecond.
func NumberedSnapshotName(name string, n int) string {
	return fmt.Sprintf("%s-%d.json", strings.TrimSuffix(name, ".json"), n)
}

func marshalSnapshot(payload any) ([]byte, error) {
	if raw, ok := payload.(json.RawMessage); ok {
		var buf bytes.Buffer
		if err := json.Indent(&buf, raw, "", "  "); err != nil {
			return nil, fmt.Errorf("failed to format snapshot: %w", err)
		}
		return buf.Bytes(), nil
	}
	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// DirSink writes snapshots into a local directory.
type DirSink struct {
	dir string
}

// NewDirSink creates dir if needed.
func NewDirSink(dir string) (*DirSink, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create snapshot directory: %w", err)
	}
	return &DirSink{dir: dir}, nil
}

// Save implements SnapshotSink. Existing files are never overwritten.
func (d *DirSink) Save(_ context.Context, name string, payload any) (string, error) {
	if name != filepath.Base(name) {
		return "", fmt.Errorf("invalid snapshot name %q", name)
	}
	data, err := marshalSnapshot(payload)
	if err != nil {
		return "", err
	}

	p := filepath.Join(d.dir, name)
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return "", fmt.Errorf("%w: %s", ErrSnapshotExists, p)
		}
		return "", fmt.Errorf("failed to create snapshot: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close snapshot: %w", err)
	}
	return p, nil
}

// ObjectPutter is the subset of *s3.Client used by S3Sink.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Sink writes snapshots to an S3-compatible bucket such as Cloudflare R2.
type S3Sink struct {
	client ObjectPutter
	bucket string
	prefix string
}

// NewS3Sink returns a sink writing to bucket under prefix.
func NewS3Sink(client ObjectPutter, bucket, prefix string) *S3Sink {
	return &S3Sink{client: client, bucket: bucket, prefix: prefix}
}

// Save implements SnapshotSink. The upload is conditional so an existing key is kept.
func (s *S3Sink) Save(ctx context.Context, name string, payload any) (string, error) {
	data, err := marshalSnapshot(payload)
	if err != nil {
		return "", err
	}

	key := path.Join(s.prefix, name)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
		IfNoneMatch: aws.String("*"),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "PreconditionFailed" {
			return "", fmt.Errorf("%w: s3://%s/%s", ErrSnapshotExists, s.bucket, key)
		}
		return "", fmt.Errorf("failed to upload snapshot %s: %w", key, err)
	}
	return fmt.Sprintf("s3://%s/%s", s.bucket, key), nil
}

// MultiSink saves to every sink concurrently and returns the first sink's location.
type MultiSink []SnapshotSink

// Save implements SnapshotSink. Any sink failure fails the save; sinks that
// already succeeded keep their copy.
func (m MultiSink) Save(ctx context.Context, name string, payload any) (string, error) {
	locations := make([]string, len(m))
	g, gctx := errgroup.WithContext(ctx)
	for i, sink := range m {
		g.Go(func() error {
			loc, err := sink.Save(gctx, name, payload)
			locations[i] = loc
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}
	if len(locations) == 0 {
		return "", nil
	}
	return locations[0], nil
}
