package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ayusman/tryon/internal/config"
	"github.com/ayusman/tryon/internal/detector"
	"github.com/ayusman/tryon/internal/overlay"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var errNoFace = errors.New("no face with eye landmarks")

// landmarkFile is the input of the compute command, the same shape the
// /api/landmarks endpoint accepts.
type landmarkFile struct {
	Width  int                      `json:"width"`
	Height int                      `json:"height"`
	Faces  []detector.FaceLandmarks `json:"faces"`
}

type computeOutput struct {
	overlay.Transform
	Matrix [16]float64 `json:"matrix"`
}

func newComputeCmd(v *viper.Viper, configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "compute <landmarks.json|->",
		Short: "Print the overlay transform for a recorded landmark set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v, *configPath)
			if err != nil {
				return err
			}

			in := cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}

			return compute(in, cmd.OutOrStdout(), cfg.Params())
		},
	}
}

// compute reads a landmark set from r and writes the transform for its first
// face to w as indented JSON.
func compute(r io.Reader, w io.Writer, p overlay.Params) error {
	var lf landmarkFile
	if err := json.NewDecoder(r).Decode(&lf); err != nil {
		return fmt.Errorf("decode landmarks: %w", err)
	}
	if lf.Width <= 0 || lf.Height <= 0 {
		return fmt.Errorf("width and height must be positive, got %dx%d", lf.Width, lf.Height)
	}
	if len(lf.Faces) == 0 {
		return errNoFace
	}

	t, ok := overlay.ComputeFace(&lf.Faces[0], lf.Width, lf.Height, p)
	if !ok {
		return errNoFace
	}

	out, err := json.MarshalIndent(computeOutput{Transform: t, Matrix: t.Matrix()}, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(out))
	return err
}
