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

package gcpclient

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithImpersonateServiceAccount(t *testing.T) {
	m, err := NewManager(context.Background(), WithImpersonateServiceAccount("test@project.iam.gserviceaccount.com"))
	require.NoError(t, err)
	assert.Equal(t, "test@project.iam.gserviceaccount.com", m.serviceAccount)
}

func TestClientOptions_NoImpersonation(t *testing.T) {
	m, err := NewManager(context.Background())
	require.NoError(t, err)

	opts, err := m.clientOptions(context.Background(), "scope")
	require.NoError(t, err)
	assert.Empty(t, opts)
}

func TestGetPubSub_RequiresProject(t *testing.T) {
	m, err := NewManager(context.Background())
	require.NoError(t, err)

	_, err = m.GetPubSub(context.Background(), "")
	assert.ErrorContains(t, err, "project id is required")
}

func TestGetBigQuery_RequiresProject(t *testing.T) {
	m, err := NewManager(context.Background())
	require.NoError(t, err)

	_, err = m.GetBigQuery(context.Background(), "")
	assert.ErrorContains(t, err, "project id is required")
}

func TestClose_Empty(t *testing.T) {
	m, err := NewManager(context.Background())
	require.NoError(t, err)
	assert.NoError(t, m.Close())
}
