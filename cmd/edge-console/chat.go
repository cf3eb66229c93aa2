package main

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/satriahrh/edge-assistant/adapters/assistant"
	"github.com/satriahrh/edge-assistant/adapters/auth"
	"github.com/satriahrh/edge-assistant/adapters/entitlement"
	"github.com/satriahrh/edge-assistant/domain"
	"github.com/satriahrh/edge-assistant/usecase"
)

func newChatCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with one of the phase assistants",
		Long: fmt.Sprintf(`Sign in and open the chat surface of a phase.

Phases: %s.
Press Enter to send, Esc or Ctrl+C to leave.`, phaseNames()),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runChat(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.email, "email", "", "email address to sign in with")
	cmd.Flags().StringVar(&opts.phase, "phase", domain.PhaseEvaluate.String(), "phase to open")
	cmd.MarkFlagRequired("email")
	return cmd
}

func runChat(cmd *cobra.Command, opts *options) error {
	ctx := cmd.Context()

	id, err := domain.ParsePhaseID(opts.phase)
	if err != nil {
		return fmt.Errorf("%w, expected one of %s", err, phaseNames())
	}
	phase, err := domain.LookupPhase(id)
	if err != nil {
		return err
	}

	session := usecase.NewSessionContext(auth.NewClient(opts.endpoint("/api/v1/auth/login"), opts.timeout))
	if err := session.Login(ctx, opts.email); err != nil {
		return err
	}
	defer session.Logout()

	user, _ := session.User()
	gate := entitlement.NewClient(opts.endpoint("/api/v1/subscription"), opts.timeout, session.Token)
	transport := assistant.NewHTTPTransport(opts.endpoint("/api/v1/chat"), opts.timeout, session.Token)

	feed := newViewFeed()
	surface := usecase.NewChatSurface(phase, user.ID, gate, transport, feed)

	p := tea.NewProgram(newModel(ctx, surface, feed, user.Email), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	surface.Wait()
	return err
}

func phaseNames() string {
	names := make([]string, 0, len(domain.Phases()))
	for _, id := range domain.Phases() {
		names = append(names, id.String())
	}
	return strings.Join(names, ", ")
}
