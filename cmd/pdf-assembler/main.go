package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"github.com/Lllllllleong/pdfweave/internal/services"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

var (
	assemblerInstance *services.AssemblerFunction
	once              sync.Once
	initErr           error
)

func init() {
	// --- Set up structured logging ---
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	functions.CloudEvent("AssembleFromManifest", assembleFromManifest)
}

// main is required by the Go Functions Framework.
func main() {}

// assembleFromManifest is the Cloud Function entry point for GCS finalize events.
func assembleFromManifest(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		assemblerInstance, initErr = services.NewAssembler(context.Background())
	})
	if initErr != nil {
		slog.Error("Critical error during function initialization", "error", initErr)
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		slog.Error("Failed to unmarshal event data", "error", err, "data", string(e.Data()))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// The error is already logged with context within the Process method.
	return assemblerInstance.Process(ctx, gcsEvent)
}
