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

package notify

import (
	"context"
	"log/slog"
)

// LogPublisher writes notifications to the log instead of a broker.
type LogPublisher struct{}

var _ Publisher = LogPublisher{}

func (LogPublisher) Publish(ctx context.Context, topic, subject string, body []byte, attrs map[string]string) error {
	slog.Info("Notification",
		slog.String("target", topic),
		slog.String("subject", subject),
		slog.String("body", string(body)),
		slog.Any("attributes", attrs))
	return nil
}
