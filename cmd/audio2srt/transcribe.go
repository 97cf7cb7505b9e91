package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/phrazzld/audio2srt/internal/client"
	"github.com/phrazzld/audio2srt/internal/domain"
	"github.com/phrazzld/audio2srt/internal/events"
	"github.com/phrazzld/audio2srt/internal/subtitle"
	"github.com/spf13/cobra"
)

type transcribeFlags struct {
	format   string
	language string
	out      string
	async    bool
}

func newTranscribeCmd(flags *globalFlags) *cobra.Command {
	tf := &transcribeFlags{}

	cmd := &cobra.Command{
		Use:   "transcribe <file>",
		Short: "Transcribe an audio file",
		Long: `Upload an audio or video file and write its transcript.

By default the subtitles are written next to the input with the format's
extension. Use --out - to write to stdout. With --async the file is submitted
as a background job and its progress is followed until it finishes.`,
		Example: `  audio2srt transcribe talk.mp3
  audio2srt transcribe talk.mp3 --format vtt --language en
  audio2srt transcribe lecture.m4a --async --out lecture.srt`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranscribe(cmd, flags, tf, args[0])
		},
	}

	cmd.Flags().StringVarP(&tf.format, "format", "f", "srt", "output format: srt, vtt, text, or json")
	cmd.Flags().StringVarP(&tf.language, "language", "l", "", "ISO 639 language code (default: server setting or auto-detect)")
	cmd.Flags().StringVarP(&tf.out, "out", "o", "", "output path, or - for stdout")
	cmd.Flags().BoolVar(&tf.async, "async", false, "submit as a background job and wait for it")

	return cmd
}

func runTranscribe(cmd *cobra.Command, flags *globalFlags, tf *transcribeFlags, input string) error {
	format, err := subtitle.ParseFormat(tf.format)
	if err != nil {
		return err
	}

	c, err := flags.client()
	if err != nil {
		return err
	}

	info := color.New(color.FgCyan).SprintFunc()
	success := color.New(color.FgGreen, color.Bold).SprintFunc()
	status := cmd.ErrOrStderr()

	opts := client.TranscribeOptions{Language: tf.language, Format: string(format)}
	start := time.Now()

	var result *client.Result
	if tf.async {
		fmt.Fprintf(status, "%s submitting %s\n", info("→"), input)
		job, err := c.SubmitJob(cmd.Context(), input, opts)
		if err != nil {
			return err
		}
		fmt.Fprintf(status, "%s job %s accepted\n", info("→"), job.ID)

		_, err = c.WaitForJob(cmd.Context(), job.ID, func(ev *events.JobEvent) {
			fmt.Fprintf(status, "%s job %s\n", info("→"), statusColor(ev.Status))
		})
		if err != nil {
			return err
		}

		result, err = c.Subtitles(cmd.Context(), job.ID, string(format))
		if err != nil {
			return err
		}
	} else {
		fmt.Fprintf(status, "%s transcribing %s\n", info("→"), input)
		result, err = c.Transcribe(cmd.Context(), input, opts)
		if err != nil {
			return err
		}
	}

	out := tf.out
	if out == "" {
		out = defaultOutputPath(input, format)
	}
	if out == "-" {
		_, err := cmd.OutOrStdout().Write(result.Body)
		return err
	}

	if err := os.WriteFile(out, result.Body, 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", out, err)
	}

	fmt.Fprintf(status, "%s wrote %s in %s\n", success("✓"), out, time.Since(start).Round(time.Millisecond))
	return nil
}

// defaultOutputPath replaces the input's extension with the format's.
func defaultOutputPath(input string, format subtitle.Format) string {
	return strings.TrimSuffix(input, filepath.Ext(input)) + "." + format.Extension()
}

func statusColor(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusCompleted:
		return color.GreenString(string(status))
	case domain.JobStatusFailed:
		return color.RedString(string(status))
	case domain.JobStatusProcessing:
		return color.YellowString(string(status))
	default:
		return string(status)
	}
}
