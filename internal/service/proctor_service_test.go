package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProctorService_CaptureStoresFileAndRow(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProctorService(NewMediaService(env.cfg), env.repo.Proctor(), env.log)

	sessionID := uuid.New()
	svc.Capture(sessionID, uuid.New(), uuid.New(), []byte("jpeg-bytes"), ".jpg")
	svc.Wait()

	photos, err := svc.List(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, photos, 1)
	assert.True(t, strings.HasPrefix(photos[0].URL, "/uploads/proctor/"+sessionID.String()+"/"))

	rel := strings.TrimPrefix(photos[0].URL, "/uploads/")
	data, err := os.ReadFile(filepath.Join(env.cfg.UploadDir, filepath.FromSlash(rel)))
	require.NoError(t, err)
	assert.Equal(t, "jpeg-bytes", string(data))
}

func TestProctorService_ListEmpty(t *testing.T) {
	env := newTestEnv(t)
	svc := NewProctorService(NewMediaService(env.cfg), env.repo.Proctor(), env.log)

	photos, err := svc.List(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.Empty(t, photos)
}
