package service

import (
	"clipper/api/internal/model"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListFiles(t *testing.T) {
	database := newTestDB(t)
	seedUpload(t, database, 1)

	now := time.Now()
	require.NoError(t, database.Create(&[]model.UploadedFile{
		{ID: "file-2", UserID: "user-1", S3Key: "file-2/original.mp4", Uploaded: true, Status: model.StatusProcessed, CreatedAt: now.Add(time.Minute)},
		{ID: "pending", UserID: "user-1", S3Key: "pending/original.mp4", Uploaded: false, Status: model.StatusQueued},
	}).Error)

	require.NoError(t, database.Create(&[]model.Clip{
		{ID: "c1", S3Key: "file-2/clip_0.mp4", UserID: "user-1", UploadedFileID: "file-2"},
		{ID: "c2", S3Key: "file-2/clip_1.mp4", UserID: "user-1", UploadedFileID: "file-2"},
	}).Error)

	files, err := ListFiles(context.Background(), database, "user-1", FileQuery{})
	require.NoError(t, err)
	require.Len(t, files, 2)

	assert.Equal(t, "file-2", files[0].ID)
	assert.EqualValues(t, 2, files[0].ClipCount)
	assert.Equal(t, "file-1", files[1].ID)
	assert.Zero(t, files[1].ClipCount)

	files, err = ListFiles(context.Background(), database, "user-1", FileQuery{Status: model.StatusProcessed})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "file-2", files[0].ID)

	files, err = ListFiles(context.Background(), database, "someone-else", FileQuery{})
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListClips(t *testing.T) {
	database := newTestDB(t)
	seedUpload(t, database, 1)

	now := time.Now()
	require.NoError(t, database.Create(&[]model.Clip{
		{ID: "old", S3Key: "file-1/clip_0.mp4", UserID: "user-1", UploadedFileID: "file-1", CreatedAt: now.Add(-time.Hour)},
		{ID: "new", S3Key: "file-1/clip_1.mp4", UserID: "user-1", UploadedFileID: "file-1", CreatedAt: now},
	}).Error)

	clips, err := ListClips(context.Background(), database, "user-1")
	require.NoError(t, err)
	require.Len(t, clips, 2)
	assert.Equal(t, "new", clips[0].ID)
}
