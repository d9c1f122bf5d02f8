package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/ncruces/zenity"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/h4xlabs/h4x-edit/internal/auth"
	"github.com/h4xlabs/h4x-edit/internal/edit"
	"github.com/h4xlabs/h4x-edit/internal/filehandler"
	"github.com/h4xlabs/h4x-edit/internal/gemini"
	"github.com/h4xlabs/h4x-edit/internal/logging"
)

// CLI flags
var (
	imageFlag  string
	promptFlag string
	outFlag    string
	modelFlag  string
)

var rootCmd = &cobra.Command{
	Use:   "edit-cli",
	Short: "One-shot AI image editing from the terminal",
	Long: `Edit CLI applies a free-text modification prompt to an image using the
Gemini image model and writes the result next to you.

Examples:
  edit-cli --image photo.jpg --prompt "make it neon"
  edit-cli --prompt "remove the background"   (opens a file picker)
  edit-cli -i photo.png -p "add a pirate hat" -o edited.png`,
	Run: runMain,
}

func init() {
	rootCmd.Flags().StringVarP(&imageFlag, "image", "i", "", "Path to the source image (picker opens if omitted)")
	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "Modification prompt (required)")
	rootCmd.Flags().StringVarP(&outFlag, "out", "o", "", "Output file (default: h4x_edit_<timestamp>.png)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", gemini.DefaultImageModel, "Gemini image model to use")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) {
	logging.Init()

	imagePath := imageFlag
	if imagePath == "" {
		selected, err := zenity.SelectFile(
			zenity.Title("Select an image to edit"),
			zenity.FileFilters{
				{
					Name:     "Images",
					Patterns: []string{"*.png", "*.jpg", "*.jpeg", "*.webp"},
				},
			},
		)
		if err != nil {
			if errors.Is(err, zenity.ErrCanceled) {
				fmt.Println("No image selected.")
				return
			}
			log.Fatal().Err(err).Msg("File picker failed")
		}
		imagePath = selected
	}

	if imagePath == "" || strings.TrimSpace(promptFlag) == "" {
		log.Fatal().Msg(edit.ValidationMessage)
	}

	raw, err := os.ReadFile(imagePath)
	if err != nil {
		log.Fatal().Err(err).Str("path", imagePath).Msg("Failed to read image")
	}

	mimeType := filehandler.SniffMIME(raw)
	if !filehandler.IsSupportedMIME(mimeType) {
		// Advisory only; the model may still accept it.
		log.Warn().Str("mime", mimeType).Msg("Image type is outside the supported set (png/jpeg/webp)")
	}

	apiKey, err := auth.GetAPIKey()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get API key")
	}

	client := gemini.NewClient(apiKey, gemini.WithModel(modelFlag))

	fmt.Println("Editing image...")
	res, err := client.EditImage(context.Background(), raw, mimeType, promptFlag)
	if err != nil {
		log.Fatal().Err(err).Msg("Edit failed")
	}

	outPath := outFlag
	if outPath == "" {
		outPath = fmt.Sprintf("h4x_edit_%d.png", time.Now().UnixMilli())
	}

	if err := os.WriteFile(outPath, res.Data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", outPath).Msg("Failed to write output")
	}

	fmt.Printf("Saved %s (%d bytes, %s)\n", outPath, len(res.Data), res.MIMEType)
}
