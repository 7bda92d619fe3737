package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/omnimind/ingest/internal/model"
)

var (
	runText      string
	runImageURL  string
	runImageFile string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Ingest a single item from text or an image",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		req, err := buildIngestRequest(runText, runImageURL, runImageFile)
		if err != nil {
			return err
		}

		env, err := initAgent(ctx, "run")
		if err != nil {
			return err
		}
		defer env.Close()

		rec := env.Agent.RunRequest(ctx, req)

		zap.L().Info("ingestion complete",
			zap.String("run_id", rec.Metadata.RunID),
			zap.String("category", string(rec.Category)),
			zap.String("next_action", string(rec.Signal)),
			zap.String("item_id", rec.Metadata.ItemID),
		)

		// Print result JSON to stdout
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(model.ResponseFromRecord(rec))
	},
}

func init() {
	runCmd.Flags().StringVar(&runText, "text", "", "free text describing the item")
	runCmd.Flags().StringVar(&runImageURL, "image-url", "", "URL of a bill or receipt image")
	runCmd.Flags().StringVar(&runImageFile, "image-file", "", "path to a local bill or receipt image")
	rootCmd.AddCommand(runCmd)
}

// buildIngestRequest assembles the request from the run flags. Exactly one
// input source must be given.
func buildIngestRequest(text, imageURL, imageFile string) (model.IngestRequest, error) {
	set := 0
	for _, v := range []string{text, imageURL, imageFile} {
		if v != "" {
			set++
		}
	}
	if set == 0 {
		return model.IngestRequest{}, eris.New("one of --text, --image-url or --image-file is required")
	}
	if set > 1 {
		return model.IngestRequest{}, eris.New("--text, --image-url and --image-file are mutually exclusive")
	}

	req := model.IngestRequest{Text: text, ImageURL: imageURL}
	if imageFile != "" {
		dataURL, err := encodeImageFile(imageFile)
		if err != nil {
			return model.IngestRequest{}, err
		}
		req.ImageBase64 = dataURL
	}
	return req, nil
}

// encodeImageFile reads a local image and returns it as a base64 data URL.
func encodeImageFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", eris.Wrap(err, "read image file")
	}
	mediaType := http.DetectContentType(data)
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}
