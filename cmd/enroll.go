package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/imageio"
	"github.com/kozaktomas/face-attendance/internal/recognition"
	"github.com/spf13/cobra"
)

var enrollCmd = &cobra.Command{
	Use:   "enroll",
	Short: "Enroll a new person from a photo",
	Long: `Enroll a new person. A new identity id is allocated, the photo is stored as
a thumbnail and, when a usable face is found, its embedding is linked.

Examples:
  face-attendance enroll --name "Jane Doe" --image jane.jpg`,
	RunE: runEnroll,
}

var reenrollCmd = &cobra.Command{
	Use:   "reenroll",
	Short: "Replace the face of an existing identity",
	Long: `Replace the embedding and thumbnail of an identity. When the identity does
not exist yet it is created with the given id, which requires --name.

Examples:
  face-attendance reenroll --id EMP003 --image new.jpg`,
	RunE: runReenroll,
}

func init() {
	rootCmd.AddCommand(enrollCmd)
	rootCmd.AddCommand(reenrollCmd)

	enrollCmd.Flags().String("name", "", "Display name")
	enrollCmd.Flags().String("image", "", "Path to a JPG, PNG, BMP or WEBP photo")
	enrollCmd.MarkFlagRequired("name")
	enrollCmd.MarkFlagRequired("image")

	reenrollCmd.Flags().String("id", "", "Identity id, e.g. EMP003")
	reenrollCmd.Flags().String("name", "", "Display name (required for new identities)")
	reenrollCmd.Flags().String("image", "", "Path to a JPG, PNG, BMP or WEBP photo")
	reenrollCmd.MarkFlagRequired("id")
	reenrollCmd.MarkFlagRequired("image")
}

// readImageFile reads an image after checking its extension.
func readImageFile(path string) ([]byte, error) {
	if !imageio.ValidateExtension(path) {
		return nil, fmt.Errorf("unsupported image format %q, use JPG, PNG, BMP or WEBP", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading image: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("image file is empty")
	}
	return data, nil
}

func printEnrollResult(result recognition.EnrollResult) error {
	if !result.Success {
		return fmt.Errorf("enrollment failed: %s (%s)", result.Message, result.Reason)
	}
	fmt.Printf("Enrolled %s as %s\n", result.Name, result.IdentityID)
	if result.EmbeddingLinked {
		fmt.Println("  Embedding: linked")
	} else {
		fmt.Println("  Embedding: none (no usable face, only the photo was stored)")
	}
	return nil
}

func runEnroll(cmd *cobra.Command, args []string) error {
	data, err := readImageFile(mustGetString(cmd, "image"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer p.Close()

	return printEnrollResult(p.service.Enroll(ctx, mustGetString(cmd, "name"), data))
}

func runReenroll(cmd *cobra.Command, args []string) error {
	data, err := readImageFile(mustGetString(cmd, "image"))
	if err != nil {
		return err
	}

	ctx := context.Background()
	p, err := newPipeline(ctx, config.Load(), false)
	if err != nil {
		return err
	}
	defer p.Close()

	return printEnrollResult(p.service.Reenroll(ctx, mustGetString(cmd, "id"), mustGetString(cmd, "name"), data))
}
