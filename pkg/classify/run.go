// Package classify wires the whole pipeline: client creation, model
// introspection, batch assembly, the single inference call and result
// printing.
package classify

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/mlserving/imageclient/config"
	"github.com/mlserving/imageclient/pkg/batch"
	"github.com/mlserving/imageclient/pkg/inference"
	"github.com/mlserving/imageclient/pkg/logger"
)

// Run classifies the image file (or directory of images) at imagePath with
// the configured remote model and writes one "<id> (<score>) = <label>"
// line per class result to out, followed by PASS. The flow is strictly
// sequential and issues exactly one inference call.
func Run(ctx context.Context, cfg *config.AppConfig, imagePath string, out io.Writer) error {
	log, _ := logger.GetZapLogger()
	defer func() {
		_ = log.Sync()
	}()

	protocol, err := inference.ParseProtocol(cfg.Server.Protocol)
	if err != nil {
		return fmt.Errorf("client creation failed: %w", err)
	}

	client, err := inference.NewClient(protocol, cfg.Server.URL, inference.Options{
		Logger:          log,
		MetadataTimeout: cfg.Request.MetadataTimeout,
		InferTimeout:    cfg.Request.InferTimeout,
	})
	if err != nil {
		return fmt.Errorf("client creation failed: %w", err)
	}
	defer func() {
		_ = client.Close()
	}()

	if cfg.Debug {
		ready, err := client.IsServerReady(ctx)
		if err != nil {
			log.Warn("server health probe failed", zap.Error(err))
		} else {
			log.Debug("server ready", zap.Bool("ready", ready))
		}
	}

	// Make sure the model matches our requirements, and get the properties
	// needed to build the request.
	metadata, err := client.ModelMetadata(ctx, cfg.Model.Name, cfg.Model.Version)
	if err != nil {
		return fmt.Errorf("failed to retrieve the metadata: %w", err)
	}

	modelConfig, err := client.ModelConfig(ctx, cfg.Model.Name, cfg.Model.Version)
	if err != nil {
		return fmt.Errorf("failed to retrieve the config: %w", err)
	}

	signature, err := inference.ParseSignature(metadata, modelConfig)
	if err != nil {
		return err
	}

	paths, err := batch.ListFiles(imagePath)
	if err != nil {
		return err
	}

	records, err := batch.Build(log, paths, signature.Capacity())
	if err != nil {
		return err
	}

	inputs := make([][]byte, 0, len(records))
	for _, record := range records {
		inputs = append(inputs, record.Content)
	}

	result, err := client.Infer(ctx, &inference.InferRequest{
		ModelName:    cfg.Model.Name,
		ModelVersion: cfg.Model.Version,
		Signature:    signature,
		ClassCount:   cfg.Model.Classes,
		Inputs:       inputs,
	})
	if err != nil {
		return fmt.Errorf("inference failed: %w", err)
	}

	results, err := inference.DecodeClassifications(result, len(records))
	if err != nil {
		return err
	}

	for _, imageResults := range results {
		for _, class := range imageResults {
			fmt.Fprintf(out, "    %s\n", class)
		}
	}
	fmt.Fprintln(out, "PASS")

	return nil
}
