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

package awsclient

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	base := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("AK", "SK", ""),
	}
	return &Manager{
		baseCfg:     base,
		stsClient:   sts.NewFromConfig(base),
		sessionName: "test",
		providers:   make(map[roleKey]aws.CredentialsProvider),
	}
}

func TestResolve_DefaultsToBaseConfig(t *testing.T) {
	m := testManager()
	cfg, cc := m.resolve(nil)

	assert.Equal(t, "us-east-1", cfg.Region)
	assert.Nil(t, cfg.BaseEndpoint)
	assert.False(t, cc.PathStyle)
	assert.Equal(t, m.baseCfg.Credentials, cfg.Credentials)
}

func TestResolve_AppliesOptions(t *testing.T) {
	m := testManager()
	cfg, cc := m.resolve([]Option{
		WithRegion("eu-west-1"),
		WithEndpoint("http://localhost:4566"),
		WithPathStyle(),
		WithInsecureTLS(),
	})

	assert.Equal(t, "eu-west-1", cfg.Region)
	require.NotNil(t, cfg.BaseEndpoint)
	assert.Equal(t, "http://localhost:4566", *cfg.BaseEndpoint)
	assert.True(t, cc.PathStyle)
	assert.NotNil(t, cfg.HTTPClient)
}

func TestResolve_EmptyRegionKeepsDefault(t *testing.T) {
	m := testManager()
	cfg, _ := m.resolve([]Option{WithRegion("")})
	assert.Equal(t, "us-east-1", cfg.Region)
}

func TestResolve_CachesProvidersPerRole(t *testing.T) {
	m := testManager()

	m.resolve([]Option{WithRole("arn:aws:iam::123456789012:role/a")})
	m.resolve([]Option{WithRole("arn:aws:iam::123456789012:role/a")})
	m.resolve([]Option{WithRole("arn:aws:iam::123456789012:role/b")})
	m.resolve(nil)

	assert.Len(t, m.providers, 3)
	cfgA, _ := m.resolve([]Option{WithRole("arn:aws:iam::123456789012:role/a")})
	assert.IsType(t, &aws.CredentialsCache{}, cfgA.Credentials)
}
