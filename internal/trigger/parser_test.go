// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package trigger

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/docrunner/internal/stageerr"
)

func TestDecode_QueueDoubleUnwrap(t *testing.T) {
	raw := []byte(`{"Records":[{"messageId":"m-1","eventSource":"aws:sqs","body":"{\"Message\": \"{\\\"filename\\\":\\\"a.json\\\",\\\"schema_version\\\":1,\\\"source\\\":\\\"x\\\"}\"}"}]}`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 1)

	d := ds[0]
	assert.Equal(t, SourceQueueMessage, d.Kind)
	assert.Equal(t, "m-1", d.CorrelationID)
	require.NotNil(t, d.Payload)
	assert.Equal(t, "a.json", d.Payload.Filename)
	assert.Equal(t, SchemaVersion(1), d.Payload.SchemaVersion)
	assert.Equal(t, "x", d.Payload.Source)
	assert.Equal(t, Location{Key: "a.json"}, d.Location)
	assert.Equal(t, "a.json", d.SourceReference())
}

func TestDecode_SQSEnvelopeHelper(t *testing.T) {
	body := `{"Type":"Notification","MessageId":"sns-1","Message":"{\"filename\":\"in/b.json\",\"schema_version\":\"2\",\"source\":\"s3://landing/raw\"}"}`

	ds, err := Decode(SQSEnvelope("", body))
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "sns-1", ds[0].CorrelationID)
	assert.Equal(t, SchemaVersion(2), ds[0].Payload.SchemaVersion)
	assert.Equal(t, Location{Provider: ProviderAWS, Bucket: "landing", Key: "raw/in/b.json"}, ds[0].Location)
}

func TestDecode_QueueMultipleRecords(t *testing.T) {
	raw := []byte(`{"Records":[
		{"messageId":"1","body":"{\"Message\":\"{\\\"filename\\\":\\\"a.json\\\"}\"}"},
		{"messageId":"2","body":"{\"Message\":\"{\\\"filename\\\":\\\"b.json\\\"}\"}"}
	]}`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 2)
	assert.Equal(t, "a.json", ds[0].Location.Key)
	assert.Equal(t, "b.json", ds[1].Location.Key)
}

func TestDecode_S3KeyIsPercentDecoded(t *testing.T) {
	raw := []byte(`{"Records":[{"eventName":"ObjectCreated:Put","s3":{"bucket":{"name":"b"},"object":{"key":"data%2F1.json","size":20}},"responseElements":{"x-amz-request-id":"req-1"}}]}`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, SourceObjectStorage, ds[0].Kind)
	assert.Equal(t, Location{Provider: ProviderAWS, Bucket: "b", Key: "data/1.json"}, ds[0].Location)
	assert.Equal(t, "req-1", ds[0].CorrelationID)
}

func TestDecode_S3KeyPlusIsSpace(t *testing.T) {
	raw := []byte(`{"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":"my+file.json"}}}]}`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "my file.json", ds[0].Location.Key)
	assert.NotEmpty(t, ds[0].CorrelationID)
}

func TestDecode_S3EventInsideNotification(t *testing.T) {
	s3evt := `{"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":"x%2Fy.json"}}}]}`
	wrapper := `{"Type":"Notification","Message":` + quote(s3evt) + `}`

	ds, err := Decode(SQSEnvelope("m", wrapper))
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, SourceObjectStorage, ds[0].Kind)
	assert.Equal(t, "x/y.json", ds[0].Location.Key)
}

func TestDecode_EmptyRecords(t *testing.T) {
	ds, err := Decode([]byte(`{"Records":[]}`))
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestDecode_S3TestEvent(t *testing.T) {
	ds, err := Decode([]byte(`{"Service":"Amazon S3","Event":"s3:TestEvent","Bucket":"b"}`))
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestDecode_S3TestEventInQueue(t *testing.T) {
	testEvent := `{"Service":"Amazon S3","Event":"s3:TestEvent","Time":"2026-01-01T00:00:00.000Z","Bucket":"b","RequestId":"r","HostId":"h"}`

	t.Run("direct", func(t *testing.T) {
		ds, err := Decode(SQSEnvelope("m-1", testEvent))
		require.NoError(t, err)
		assert.Empty(t, ds)
	})

	t.Run("notification wrapped", func(t *testing.T) {
		wrapper := `{"Type":"Notification","MessageId":"sns-1","Message":` + quote(testEvent) + `}`
		ds, err := Decode(SQSEnvelope("m-2", wrapper))
		require.NoError(t, err)
		assert.Empty(t, ds)
	})
}

func TestDecode_S3DirectoryMarkerSkipped(t *testing.T) {
	raw := []byte(`{"Records":[
		{"s3":{"bucket":{"name":"b"},"object":{"key":"incoming%2F"}}},
		{"s3":{"bucket":{"name":"b"},"object":{"key":"incoming%2Fa.json"}}}
	]}`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "incoming/a.json", ds[0].Location.Key)

	s3evt := `{"Records":[{"s3":{"bucket":{"name":"b"},"object":{"key":"dir/"}}}]}`
	ds, err = Decode(SQSEnvelope("m", `{"Type":"Notification","Message":`+quote(s3evt)+`}`))
	require.NoError(t, err)
	assert.Empty(t, ds)
}

func TestDecode_Malformed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"empty", ``},
		{"not json", `hello`},
		{"scalar", `42`},
		{"unknown shape", `{"foo":"bar"}`},
		{"s3 missing bucket", `{"Records":[{"s3":{"object":{"key":"k"}}}]}`},
		{"s3 missing key", `{"Records":[{"s3":{"bucket":{"name":"b"},"object":{}}}]}`},
		{"queue missing body", `{"Records":[{"messageId":"1","eventSource":"aws:sqs"}]}`},
		{"queue body not json", `{"Records":[{"messageId":"1","body":"nope"}]}`},
		{"queue missing Message", `{"Records":[{"messageId":"1","body":"{\"Type\":\"Notification\"}"}]}`},
		{"queue Message not object", `{"Records":[{"messageId":"1","body":"{\"Message\":\"42\"}"}]}`},
		{"queue missing filename", `{"Records":[{"messageId":"1","body":"{\"Message\":\"{\\\"source\\\":\\\"x\\\"}\"}"}]}`},
		{"record of unknown type", `{"Records":[{"foo":1}]}`},
		{"gcs missing name", `{"kind":"storage#object","bucket":"b"}`},
		{"push without data", `{"message":{"messageId":"1"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds, err := Decode([]byte(tt.raw))
			require.Error(t, err)
			assert.Nil(t, ds)
			assert.ErrorIs(t, err, stageerr.ErrMalformedEnvelope)
		})
	}
}

func TestDecode_GCSObject(t *testing.T) {
	raw := []byte(`{"kind":"storage#object","id":"bkt/data/2.json/1700000000","bucket":"bkt","name":"data/2.json","generation":"1700000000"}`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, Location{Provider: ProviderGCP, Bucket: "bkt", Key: "data/2.json"}, ds[0].Location)
	assert.Equal(t, "bkt/data/2.json/1700000000", ds[0].CorrelationID)
}

func TestDecode_GCSBucketFromID(t *testing.T) {
	ds, err := Decode([]byte(`{"kind":"storage#object","id":"bkt/n.json/1","name":"n.json"}`))
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "bkt", ds[0].Location.Bucket)
}

func TestDecode_PubSubPush(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"bucket":"bkt","name":"n.json"}`))
	raw := []byte(`{"message":{"data":"` + data + `","messageId":"ps-9"},"subscription":"projects/p/subscriptions/s"}`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, "ps-9", ds[0].CorrelationID)
	assert.Equal(t, "n.json", ds[0].Location.Key)
}

func TestDecode_PubSubPushAttributesOnly(t *testing.T) {
	raw := []byte(`{"message":{"messageId":"ps-1","attributes":{"bucketId":"bkt","objectId":"o.json"}}}`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, Location{Provider: ProviderGCP, Bucket: "bkt", Key: "o.json"}, ds[0].Location)
}

func TestDecode_EventGrid(t *testing.T) {
	raw := []byte(`[
		{"id":"e1","eventType":"Microsoft.Storage.BlobCreated","subject":"/blobServices/default/containers/landing/blobs/in/doc.json"},
		{"id":"e2","eventType":"Microsoft.Storage.BlobDeleted","subject":"/blobServices/default/containers/landing/blobs/old.json"}
	]`)

	ds, err := Decode(raw)
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, Location{Provider: ProviderAzure, Bucket: "landing", Key: "in/doc.json"}, ds[0].Location)
	assert.Equal(t, "e1", ds[0].CorrelationID)
}

func TestSchemaVersionUnmarshal(t *testing.T) {
	tests := []struct {
		in      string
		want    SchemaVersion
		wantErr bool
	}{
		{`1`, 1, false},
		{`"3"`, 3, false},
		{`null`, 0, false},
		{`""`, 0, false},
		{`"v2"`, 0, true},
	}
	for _, tt := range tests {
		var v SchemaVersion
		err := v.UnmarshalJSON([]byte(tt.in))
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, v, tt.in)
	}
}

func quote(s string) string {
	b := []byte{'"'}
	for _, r := range s {
		if r == '"' || r == '\\' {
			b = append(b, '\\')
		}
		b = append(b, string(r)...)
	}
	return string(append(b, '"'))
}
