package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	return newRootCmd(newApp())
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "chatloop",
		Short: "chatloop - a tool-using chat assistant",
		Long: `chatloop runs a conversation with a language model that can call tools
(web search, Indian railways lookups) before answering. Transcripts are kept per
session and can be resumed.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, a, false)
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVarP(&a.sessionID, "session", "s", "", "Session id to resume (new session if empty)")
	rootCmd.PersistentFlags().BoolVar(&a.debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(newChatCmd(a))
	rootCmd.AddCommand(newAskCmd(a))
	rootCmd.AddCommand(newToolsCmd(a))
	rootCmd.AddCommand(newSessionsCmd(a))
	rootCmd.AddCommand(newConfigCmd(a))

	return rootCmd
}

func newChatCmd(a *app) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Start an interactive chat",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runChat(cmd, a, trace)
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "Show tool calls and results")
	return cmd
}

func runChat(cmd *cobra.Command, a *app, trace bool) error {
	rt, err := a.open(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer func() { _ = rt.close() }()

	s := &chatSession{
		rt:     rt,
		id:     a.sessionID,
		trace:  trace,
		prompt: surveyPrompter(),
		out:    cmd.OutOrStdout(),
	}
	return s.run(cmd.Context())
}

func newAskCmd(a *app) *cobra.Command {
	var trace bool
	cmd := &cobra.Command{
		Use:   "ask [QUESTION...]",
		Short: "Ask a single question and print the answer",
		Example: `  chatloop ask "What's the weather in Paris?"
  chatloop ask --session trip "Trains from Delhi to Mumbai on 2026-11-02?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.close() }()

			res, err := rt.hub.Submit(cmd.Context(), a.sessionID, strings.Join(args, " "))
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if trace {
				renderTrace(out, res)
			}
			fmt.Fprintln(out, res.FinalMessage.Content)
			return nil
		},
	}
	cmd.Flags().BoolVar(&trace, "trace", false, "Show tool calls and results")
	return cmd
}

func newToolsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "tools",
		Short: "List the tools offered to the model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.close() }()

			for _, decl := range rt.registry.Declarations() {
				fmt.Fprintf(cmd.OutOrStdout(), "%-32s %s\n", decl.Function.Name, decl.Function.Description)
			}
			return nil
		},
	}
}

func newSessionsCmd(a *app) *cobra.Command {
	sessionsCmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage stored sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.close() }()

			ids, err := rt.hub.Sessions(cmd.Context())
			if err != nil {
				return err
			}
			if len(ids) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no sessions")
				return nil
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		},
	}

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Print the transcript of a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.close() }()

			conv, err := rt.hub.Open(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderTranscript(cmd.OutOrStdout(), conv.Transcript())
			return nil
		},
	})

	sessionsCmd.AddCommand(&cobra.Command{
		Use:   "delete ID",
		Short: "Delete a stored session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := a.open(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = rt.close() }()

			return rt.hub.Delete(cmd.Context(), args[0])
		},
	})

	return sessionsCmd
}

func newConfigCmd(a *app) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	configCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show the effective configuration (secrets masked)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			data, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	return configCmd
}
