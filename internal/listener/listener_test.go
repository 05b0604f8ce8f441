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

package listener

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/docrunner/internal/runner"
	"github.com/cardinalhq/docrunner/internal/trigger"
)

type fakeHandler struct {
	mu    sync.Mutex
	calls [][]byte
	fn    func(raw []byte) (runner.Response, error)
}

func (h *fakeHandler) Handle(_ context.Context, raw []byte) (runner.Response, error) {
	h.mu.Lock()
	h.calls = append(h.calls, append([]byte(nil), raw...))
	h.mu.Unlock()
	if h.fn != nil {
		return h.fn(raw)
	}
	return runner.Response{StatusCode: http.StatusOK, Body: runner.BodySuccess}, nil
}

func (h *fakeHandler) callCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.calls)
}

func failWhenContains(marker string) func([]byte) (runner.Response, error) {
	return func(raw []byte) (runner.Response, error) {
		if strings.Contains(string(raw), marker) {
			err := errors.New("run failed")
			return runner.Response{StatusCode: http.StatusInternalServerError, Body: err.Error()}, err
		}
		return runner.Response{StatusCode: http.StatusOK, Body: runner.BodySuccess}, nil
	}
}

type mockSQS struct {
	mock.Mock
}

func (m *mockSQS) ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.ReceiveMessageOutput)
	return out, args.Error(1)
}

func (m *mockSQS) DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	args := m.Called(ctx, params)
	out, _ := args.Get(0).(*sqs.DeleteMessageOutput)
	return out, args.Error(1)
}

func sqsMessage(id, receipt, body string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		ReceiptHandle: aws.String(receipt),
		Body:          aws.String(body),
	}
}

func receiptIs(handle string) any {
	return mock.MatchedBy(func(in *sqs.DeleteMessageInput) bool {
		return aws.ToString(in.ReceiptHandle) == handle
	})
}

func TestNewSQSListener_RequiresQueueURL(t *testing.T) {
	_, err := NewSQSListener(&mockSQS{}, "", &fakeHandler{})
	assert.Error(t, err)
}

func TestSQSListener_DeletesOnlySucceededMessages(t *testing.T) {
	client := &mockSQS{}
	client.On("DeleteMessage", mock.Anything, receiptIs("r-good")).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	handler := &fakeHandler{fn: failWhenContains("bad")}
	l, err := NewSQSListener(client, "https://sqs.example/queue", handler, WithMaxConcurrent(2))
	require.NoError(t, err)

	l.processMessages(context.Background(), []types.Message{
		sqsMessage("m-1", "r-good", `{"bucket":"b","key":"good.json"}`),
		sqsMessage("m-2", "r-bad", `{"bucket":"b","key":"bad.json"}`),
	})

	assert.Equal(t, 2, handler.callCount())
	client.AssertExpectations(t)
	client.AssertNotCalled(t, "DeleteMessage", mock.Anything, receiptIs("r-bad"))
}

func TestSQSListener_WrapsBodyInEnvelope(t *testing.T) {
	client := &mockSQS{}
	client.On("DeleteMessage", mock.Anything, mock.Anything).Return(&sqs.DeleteMessageOutput{}, nil)

	handler := &fakeHandler{}
	l, err := NewSQSListener(client, "q", handler)
	require.NoError(t, err)

	body := `{"bucket":"landing","key":"a.json"}`
	l.processMessages(context.Background(), []types.Message{sqsMessage("m-1", "r-1", body)})

	require.Equal(t, 1, handler.callCount())
	assert.JSONEq(t, string(trigger.SQSEnvelope("m-1", body)), string(handler.calls[0]))
}

func TestSQSListener_NilBodyIsSkipped(t *testing.T) {
	client := &mockSQS{}
	handler := &fakeHandler{}
	l, err := NewSQSListener(client, "q", handler)
	require.NoError(t, err)

	l.processMessages(context.Background(), []types.Message{{MessageId: aws.String("m-1"), ReceiptHandle: aws.String("r-1")}})

	assert.Equal(t, 0, handler.callCount())
	client.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestSQSListener_DeleteFailureStillCountsAsHandled(t *testing.T) {
	client := &mockSQS{}
	client.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, errors.New("throttled"))

	l, err := NewSQSListener(client, "q", &fakeHandler{})
	require.NoError(t, err)

	assert.True(t, l.handleMessage(context.Background(), sqsMessage("m-1", "r-1", "{}")))
}

func TestSQSListener_RunPollsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &mockSQS{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{
		Messages: []types.Message{sqsMessage("m-1", "r-1", `{"bucket":"b","key":"k.json"}`)},
	}, nil).Once()
	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, context.Canceled).Run(func(mock.Arguments) {
		cancel()
	})
	client.On("DeleteMessage", mock.Anything, receiptIs("r-1")).Return(&sqs.DeleteMessageOutput{}, nil).Once()

	handler := &fakeHandler{}
	l, err := NewSQSListener(client, "q", handler, WithBackoff(0, 0))
	require.NoError(t, err)

	require.NoError(t, l.Run(ctx))
	assert.Equal(t, 1, handler.callCount())
	client.AssertExpectations(t)
}

func TestSQSListener_ReceiveErrorBacksOff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client := &mockSQS{}
	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()
	client.On("ReceiveMessage", mock.Anything, mock.Anything).Return(&sqs.ReceiveMessageOutput{}, nil).Run(func(mock.Arguments) {
		cancel()
	})

	l, err := NewSQSListener(client, "q", &fakeHandler{}, WithBackoff(time.Millisecond, 0))
	require.NoError(t, err)

	require.NoError(t, l.Run(ctx))
	client.AssertNumberOfCalls(t, "ReceiveMessage", 2)
}

type fakeQueue struct {
	mu       sync.Mutex
	batches  [][]queueMessage
	deleted  []string
	onEmpty  func()
	failNext error
}

func (q *fakeQueue) Dequeue(context.Context) ([]queueMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.failNext != nil {
		err := q.failNext
		q.failNext = nil
		return nil, err
	}
	if len(q.batches) == 0 {
		if q.onEmpty != nil {
			q.onEmpty()
		}
		return nil, nil
	}
	b := q.batches[0]
	q.batches = q.batches[1:]
	return b, nil
}

func (q *fakeQueue) Delete(_ context.Context, id, _ string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.deleted = append(q.deleted, id)
	return nil
}

func TestAzureQueueListener_DeletesOnlySucceededMessages(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	good := `{"eventType":"Microsoft.Storage.BlobCreated","subject":"/blobServices/default/containers/c/blobs/good.json"}`
	bad := `{"eventType":"Microsoft.Storage.BlobCreated","subject":"/blobServices/default/containers/c/blobs/bad.json"}`
	q := &fakeQueue{
		batches: [][]queueMessage{{
			{ID: "1", PopReceipt: "p1", Text: base64.StdEncoding.EncodeToString([]byte(good))},
			{ID: "2", PopReceipt: "p2", Text: bad},
		}},
		failNext: errors.New("transient"),
		onEmpty:  cancel,
	}
	handler := &fakeHandler{fn: failWhenContains("bad.json")}

	l := newAzureQueueListener(q, "events", handler, WithBackoff(time.Millisecond, 0))
	require.NoError(t, l.Run(ctx))

	assert.Equal(t, 2, handler.callCount())
	assert.Equal(t, []string{"1"}, q.deleted)

	var sawDecoded bool
	for _, c := range handler.calls {
		if string(c) == good {
			sawDecoded = true
		}
	}
	assert.True(t, sawDecoded, "base64 message text should reach the handler decoded")
}

func TestNewAzureQueueListener_RequiresClient(t *testing.T) {
	_, err := NewAzureQueueListener(nil, "events", &fakeHandler{})
	assert.Error(t, err)
}

func TestDecodeIfBase64(t *testing.T) {
	payload := `{"eventType":"Microsoft.Storage.BlobCreated"}`

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain json", payload, payload},
		{"base64 json", base64.StdEncoding.EncodeToString([]byte(payload)), payload},
		{"empty", "", ""},
		{"invalid padding", "abc=def=", "abc=def="},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, string(decodeIfBase64(tt.in)))
		})
	}
}

func TestParseBackendType(t *testing.T) {
	for _, s := range []string{"sqs", "gcp", "azure", "http"} {
		bt, err := ParseBackendType(s)
		require.NoError(t, err)
		assert.Equal(t, BackendType(s), bt)
	}
	_, err := ParseBackendType("kinesis")
	assert.Error(t, err)
}

func TestSleepCtx(t *testing.T) {
	assert.True(t, sleepCtx(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.False(t, sleepCtx(ctx, time.Hour))
	assert.False(t, sleepCtx(ctx, 0))
}
