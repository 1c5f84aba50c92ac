package storage

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStorage_RoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStorage()

	require.NoError(t, s.UploadFile(ctx, "t1/a", strings.NewReader("hello"), 5, "text/plain"))
	require.Error(t, s.UploadFile(ctx, "t1/b", strings.NewReader("hello"), 3, "text/plain"))

	rc, err := s.DownloadFile(ctx, "t1/a")
	require.NoError(t, err)
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "hello", string(b))

	u, err := s.PresignedDownloadURL(ctx, "t1/a", "", time.Minute)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(u, "memory://objects/t1/a?expires="))

	named, err := s.PresignedDownloadURL(ctx, "t1/a", "Q3 report.pdf", time.Minute)
	require.NoError(t, err)
	parsed, err := url.Parse(named)
	require.NoError(t, err)
	require.Equal(t, `attachment; filename="Q3 report.pdf"`, parsed.Query().Get("response-content-disposition"))

	require.NoError(t, s.DeleteFile(ctx, "t1/a"))
	_, err = s.DownloadFile(ctx, "t1/a")
	require.ErrorIs(t, err, ErrObjectNotFound)
	_, err = s.PresignedDownloadURL(ctx, "t1/a", "", time.Minute)
	require.ErrorIs(t, err, ErrObjectNotFound)
	require.Equal(t, 0, s.Len())
}
