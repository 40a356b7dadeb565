package store

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNow() time.Time {
	return time.Date(2024, 5, 1, 10, 20, 30, 123_000_000, time.UTC)
}

func TestSnapshotName(t *testing.T) {
	name := SnapshotName(SnapshotCustomized, "3f2c", fixedNow())
	assert.Equal(t, "finalCustomizedAnswers_3f2c_2024-05-01T10-20-30-123Z.json", name)

	local := fixedNow().In(time.FixedZone("X", 5*3600))
	assert.Equal(t, name, SnapshotName(SnapshotCustomized, "3f2c", local), "timestamps are UTC")

	assert.Equal(t, "finalBehaviorAnswers_3f2c_2024-05-01T10-20-30-123Z.json",
		SnapshotName(SnapshotBehavioral, "3f2c", fixedNow()))
}

func TestDirSink_Save(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "BehaviourJSON")
	sink, err := NewDirSink(dir)
	require.NoError(t, err)

	loc, err := sink.Save(context.Background(), "a.json", json.RawMessage(`[{"question":"Q1","selectedAnswer":"B"}]`))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.json"), loc)

	data, err := os.ReadFile(loc)
	require.NoError(t, err)
	assert.Equal(t, "[\n  {\n    \"question\": \"Q1\",\n    \"selectedAnswer\": \"B\"\n  }\n]", string(data))
}

func TestDirSink_WriteOnce(t *testing.T) {
	sink, err := NewDirSink(t.TempDir())
	require.NoError(t, err)

	_, err = sink.Save(context.Background(), "a.json", []string{"first"})
	require.NoError(t, err)
	_, err = sink.Save(context.Background(), "a.json", []string{"second"})
	assert.ErrorIs(t, err, ErrSnapshotExists)
}

func TestDirSink_RejectsPaths(t *testing.T) {
	sink, err := NewDirSink(t.TempDir())
	require.NoError(t, err)

	_, err = sink.Save(context.Background(), "../escape.json", []string{})
	assert.Error(t, err)
}

type fakePutter struct {
	inputs []*s3.PutObjectInput
	bodies []string
	err    error
}

func (f *fakePutter) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if f.err != nil {
		return nil, f.err
	}
	body, _ := io.ReadAll(in.Body)
	f.inputs = append(f.inputs, in)
	f.bodies = append(f.bodies, string(body))
	return &s3.PutObjectOutput{}, nil
}

func TestS3Sink_Save(t *testing.T) {
	putter := &fakePutter{}
	sink := NewS3Sink(putter, "intake", "answers/")

	loc, err := sink.Save(context.Background(), "b.json", map[string]int{"n": 1})
	require.NoError(t, err)
	assert.Equal(t, "s3://intake/answers/b.json", loc)

	require.Len(t, putter.inputs, 1)
	in := putter.inputs[0]
	assert.Equal(t, "intake", aws.ToString(in.Bucket))
	assert.Equal(t, "answers/b.json", aws.ToString(in.Key))
	assert.Equal(t, "application/json", aws.ToString(in.ContentType))
	assert.Equal(t, "*", aws.ToString(in.IfNoneMatch))
	assert.Equal(t, "{\n  \"n\": 1\n}", putter.bodies[0])
}

func TestS3Sink_Error(t *testing.T) {
	sink := NewS3Sink(&fakePutter{err: errors.New("precondition failed")}, "intake", "")
	_, err := sink.Save(context.Background(), "b.json", []int{1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to upload snapshot b.json")
}

func TestS3Sink_ExistingKey(t *testing.T) {
	putter := &fakePutter{err: &smithy.GenericAPIError{Code: "PreconditionFailed", Message: "At least one of the pre-conditions you specified did not hold"}}
	sink := NewS3Sink(putter, "intake", "answers")

	_, err := sink.Save(context.Background(), "b.json", []int{1})
	assert.ErrorIs(t, err, ErrSnapshotExists)
	assert.Contains(t, err.Error(), "s3://intake/answers/b.json")
}

func TestNumberedSnapshotName(t *testing.T) {
	name := SnapshotName(SnapshotBehavioral, "3f2c", fixedNow())
	assert.Equal(t, "finalBehaviorAnswers_3f2c_2024-05-01T10-20-30-123Z-2.json", NumberedSnapshotName(name, 2))
}

func TestMultiSink(t *testing.T) {
	dir, err := NewDirSink(t.TempDir())
	require.NoError(t, err)
	putter := &fakePutter{}
	multi := MultiSink{dir, NewS3Sink(putter, "intake", "answers")}

	loc, err := multi.Save(context.Background(), "c.json", []int{1, 2})
	require.NoError(t, err)
	assert.Equal(t, "c.json", filepath.Base(loc))
	assert.Len(t, putter.inputs, 1)

	failing := MultiSink{dir, NewS3Sink(&fakePutter{err: errors.New("down")}, "intake", "")}
	_, err = failing.Save(context.Background(), "d.json", []int{1})
	assert.ErrorContains(t, err, "down")

	loc, err = MultiSink{}.Save(context.Background(), "e.json", []int{1})
	require.NoError(t, err)
	assert.Empty(t, loc)
}

func TestMarshalSnapshot_InvalidRaw(t *testing.T) {
	_, err := marshalSnapshot(json.RawMessage(`{"a":`))
	assert.Error(t, err)
}
