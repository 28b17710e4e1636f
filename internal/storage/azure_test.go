package storage

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"

	apperrors "github.com/jittakal/audiobuf/internal/errors"
	"github.com/jittakal/audiobuf/pkg/event"
)

// fakeBlobUploader records blob uploads instead of talking to Azure.
type fakeBlobUploader struct {
	container string
	blob      string
	size      int
	err       error
}

func (f *fakeBlobUploader) UploadFile(ctx context.Context, containerName, blobName string, file *os.File, o *azblob.UploadFileOptions) (azblob.UploadFileResponse, error) {
	if f.err != nil {
		return azblob.UploadFileResponse{}, f.err
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return azblob.UploadFileResponse{}, err
	}
	f.container = containerName
	f.blob = blobName
	f.size = len(data)
	return azblob.UploadFileResponse{}, nil
}

func TestAzureConnectionString(t *testing.T) {
	tests := []struct {
		name     string
		cfg      AzureConfig
		contains []string
	}{
		{
			name:     "explicit connection string",
			cfg:      AzureConfig{ConnectionString: "UseDevelopmentStorage=true", AccountName: "ignored"},
			contains: []string{"UseDevelopmentStorage=true"},
		},
		{
			name:     "account key",
			cfg:      AzureConfig{AccountName: "studio", AccountKey: "c2VjcmV0"},
			contains: []string{"AccountName=studio", "AccountKey=c2VjcmV0", "EndpointSuffix=core.windows.net"},
		},
		{
			name:     "custom endpoint",
			cfg:      AzureConfig{AccountName: "devstoreaccount1", AccountKey: "a2V5", Endpoint: "http://127.0.0.1:10000/devstoreaccount1"},
			contains: []string{"BlobEndpoint=http://127.0.0.1:10000/devstoreaccount1"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := azureConnectionString(tt.cfg)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("connection string %q missing %q", got, want)
				}
			}
		})
	}
}

func TestAzureWriter_Write(t *testing.T) {
	client := &fakeBlobUploader{}
	metrics := &mockMetricsCollector{}
	writer, err := newAzureWriter(AzureConfig{AccountName: "studio", ContainerName: "takes", TempDir: t.TempDir()},
		client, event.FormatParquet, "snappy", testLogger(), metrics)
	if err != nil {
		t.Fatalf("newAzureWriter() error = %v", err)
	}

	snap := testSnapshot(64)
	route := NewRouter("wasbs", "takes", "").Route(snap.BufferType, snap.BufferID, snap.CapturedAt)

	size, err := writer.Write(context.Background(), snap, route)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if client.container != "takes" {
		t.Errorf("container = %q, want takes", client.container)
	}
	wantBlob := "type=ring/dt=2026-05-01/id=drums/drums_20260501_083015_000000000042.parquet"
	if client.blob != wantBlob {
		t.Errorf("blob = %q, want %q", client.blob, wantBlob)
	}
	if int64(client.size) != size {
		t.Errorf("uploaded %d bytes, Write() reported %d", client.size, size)
	}
	if metrics.lastStatus != "success" {
		t.Errorf("status = %q, want success", metrics.lastStatus)
	}
}

func TestAzureWriter_UploadFailure(t *testing.T) {
	client := &fakeBlobUploader{err: errors.New("503 server busy")}
	metrics := &mockMetricsCollector{}
	writer, err := newAzureWriter(AzureConfig{ContainerName: "takes", TempDir: t.TempDir()},
		client, event.FormatWAV, "", testLogger(), metrics)
	if err != nil {
		t.Fatalf("newAzureWriter() error = %v", err)
	}

	_, err = writer.Write(context.Background(), testSnapshot(8), "takes/")
	if !apperrors.IsRetryable(err) {
		t.Errorf("Write() error = %v, want retryable storage error", err)
	}
	if metrics.lastErrorBackend != "azure" || metrics.storageErrors != 1 {
		t.Errorf("storage errors = %d backend = %q", metrics.storageErrors, metrics.lastErrorBackend)
	}
}

func TestAzureWriter_Close(t *testing.T) {
	writer, err := newAzureWriter(AzureConfig{ContainerName: "takes"}, &fakeBlobUploader{}, event.FormatWAV, "", testLogger(), nil)
	if err != nil {
		t.Fatalf("newAzureWriter() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
