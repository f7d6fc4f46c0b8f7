package main

// azuresink wires the receiver's on_complete callback to an Azure Blob
// Storage container, as an example of the application-supplied delivery
// sink the capability interface was designed around. It is not part of
// the core protocol; a host application is free to deliver bytes however
// it wants.

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
)

// azureSink uploads each delivered blob into containerName under a blob
// name derived from the sender_id and the transfer timestamp.
type azureSink struct {
	client        *azblob.Client
	containerName string
	log           *slog.Logger
}

// newAzureSink authenticates against accountURL (https://<account>.blob.core.windows.net)
// using the ambient environment/managed-identity credential chain.
func newAzureSink(accountURL, containerName string, log *slog.Logger) (*azureSink, error) {
	cred, err := azidentity.NewDefaultAzureCredential(nil)
	if err != nil {
		return nil, fmt.Errorf("azuresink: credential: %w", err)
	}
	client, err := azblob.NewClient(accountURL, cred, nil)
	if err != nil {
		return nil, fmt.Errorf("azuresink: client: %w", err)
	}
	return &azureSink{client: client, containerName: containerName, log: log}, nil
}

// onComplete satisfies receiver.Callbacks.OnComplete's signature.
func (s *azureSink) onComplete(senderID string, data []byte) {
	blobName := fmt.Sprintf("%s-%d.bin", senderID, time.Now().UnixNano())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := s.client.UploadBuffer(ctx, s.containerName, blobName, data, nil); err != nil {
		s.log.Error("azuresink: upload failed", "sender_id", senderID, "blob_name", blobName, "error", err)
		return
	}
	s.log.Info("azuresink: uploaded", "sender_id", senderID, "blob_name", blobName, "bytes", len(data))
}
