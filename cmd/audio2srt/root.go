package main

import (
	"os"

	"github.com/phrazzld/audio2srt/internal/client"
	"github.com/spf13/cobra"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	server string
	apiKey string
	token  string
}

func (g *globalFlags) client() (*client.Client, error) {
	return client.New(g.server, client.Options{
		APIKey: g.apiKey,
		Token:  g.token,
	})
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "audio2srt",
		Short: "Transcribe audio into subtitles with an audio2srt server",
		Long: `audio2srt uploads audio or video files to an audio2srt server and writes
the transcript as SubRip, WebVTT, plain text, or JSON.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&flags.server, "server",
		envOr("AUDIO2SRT_SERVER", "http://localhost:8000"), "server base URL (env AUDIO2SRT_SERVER)")
	rootCmd.PersistentFlags().StringVar(&flags.apiKey, "api-key",
		os.Getenv("AUDIO2SRT_API_KEY"), "API key sent as X-API-Key (env AUDIO2SRT_API_KEY)")
	rootCmd.PersistentFlags().StringVar(&flags.token, "token",
		os.Getenv("AUDIO2SRT_TOKEN"), "bearer token (env AUDIO2SRT_TOKEN)")

	rootCmd.AddCommand(newHealthCmd(flags))
	rootCmd.AddCommand(newTranscribeCmd(flags))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}
