package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestLocalStorageRoundTrip(t *testing.T) {
	st, err := NewLocalStorage(t.TempDir())
	if err != nil {
		t.Fatalf("new local storage: %v", err)
	}
	ctx := context.Background()

	if err := st.Put(ctx, "payroll/2026-10.csv", strings.NewReader("earnings_id\n"), "text/csv"); err != nil {
		t.Fatalf("put: %v", err)
	}

	exists, err := st.Exists(ctx, "payroll/2026-10.csv")
	if err != nil || !exists {
		t.Fatalf("expected object to exist, got %v %v", exists, err)
	}

	rc, err := st.Get(ctx, "payroll/2026-10.csv")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer rc.Close()
	body, _ := io.ReadAll(rc)
	if string(body) != "earnings_id\n" {
		t.Fatalf("unexpected body %q", body)
	}

	if _, err := st.Get(ctx, "missing.csv"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
