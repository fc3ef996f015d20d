package provider

import (
	"context"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestNoopProviderLogs(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	if err := NewNoopProvider(logger).Send(context.Background(), testEmail()); err != nil {
		t.Fatalf("Send: %v", err)
	}

	entry := hook.LastEntry()
	if entry == nil || entry.Level != logrus.InfoLevel {
		t.Fatalf("expected an info log entry, got %v", entry)
	}
	if entry.Data["to"] != "a@b.com" {
		t.Fatalf("unexpected log fields: %v", entry.Data)
	}
}
