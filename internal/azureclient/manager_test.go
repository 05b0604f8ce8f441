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

package azureclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Azurite's well-known development account.
const azuriteConnectionString = "DefaultEndpointsProtocol=http;AccountName=devstoreaccount1;" +
	"AccountKey=Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw==;" +
	"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1;QueueEndpoint=http://127.0.0.1:10001/devstoreaccount1;"

func TestEndpoints(t *testing.T) {
	assert.Equal(t, "https://acct.blob.core.windows.net/", blobEndpoint("acct"))
	assert.Equal(t, "https://acct.queue.core.windows.net/", queueEndpoint("acct"))
}

func TestGetBlob_CachesByKey(t *testing.T) {
	mgr, err := NewManager(context.Background(), WithConnectionString(azuriteConnectionString))
	require.NoError(t, err)

	a, err := mgr.GetBlob(context.Background())
	require.NoError(t, err)
	b, err := mgr.GetBlob(context.Background())
	require.NoError(t, err)
	assert.Same(t, a, b)
}

func TestGetQueue(t *testing.T) {
	mgr, err := NewManager(context.Background(), WithConnectionString(azuriteConnectionString))
	require.NoError(t, err)

	_, err = mgr.GetQueue(context.Background())
	assert.ErrorContains(t, err, "queue name is required")

	q, err := mgr.GetQueue(context.Background(), WithQueueName("uploads"))
	require.NoError(t, err)
	assert.Equal(t, "uploads", q.QueueName)
	assert.NotNil(t, q.QueueClient)

	again, err := mgr.GetQueue(context.Background(), WithQueueName("uploads"))
	require.NoError(t, err)
	assert.Same(t, q, again)
}
