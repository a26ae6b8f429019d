package cli

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/parley-im/parley/internal/client"
	"github.com/parley-im/parley/internal/config"
	"github.com/parley-im/parley/internal/domain"
	"github.com/parley-im/parley/internal/logging"
	"github.com/parley-im/parley/internal/session"
)

func newConnectCmd() *cobra.Command {
	var peerURL string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to the relay as a peer",
		Long: "Connect joins the relay as the configured identity, prints incoming\n" +
			"messages, and recovers anything queued while offline. Lines read from\n" +
			"stdin in the form \"<peerId> <text>\" are sent over the channel.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(paths.Config)
			if err != nil {
				return err
			}
			if peerURL != "" {
				cfg.Peer.URL = peerURL
			}
			if cfg.Identity.UserID == "" {
				return &config.ConfigError{Message: "identity.userId is required to connect"}
			}
			if cfg.Peer.URL == "" {
				cfg.Peer.URL = fmt.Sprintf("ws://127.0.0.1:%d/ws", cfg.Relay.Port)
			}
			if cfg.Persist.URL == "" {
				cfg.Persist.URL = fmt.Sprintf("http://127.0.0.1:%d", cfg.Relay.Port)
			}

			log = logging.NewStyled(cfg.Logging.ConsoleStyle, levelOr(cfg.Logging.Level))

			stack := client.NewStack(cfg, nil, log)
			stack.Deliver = func(m domain.Message) {
				sender := m.Metadata.SenderName
				if sender == "" {
					sender = m.Metadata.SenderID
				}
				fmt.Printf("[%s] %s: %s\n", m.Metadata.CreatedAt.Local().Format("15:04"), sender, m.Text())
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if err := stack.Start(ctx); err != nil {
				log.Warn().Err(err).Msg("initial connect failed, waiting for connectivity")
			}
			defer stack.Close()

			go func() {
				sc := bufio.NewScanner(os.Stdin)
				for sc.Scan() {
					to, text, ok := strings.Cut(strings.TrimSpace(sc.Text()), " ")
					if !ok || text == "" {
						continue
					}
					err := stack.Channel.Send(domain.PeerFrame{
						Type:       domain.FrameSendMessage,
						ReceiverID: to,
						Content:    text,
						SessionID:  session.DeriveKey(cfg.Identity.UserID, to),
					})
					if err != nil {
						log.Warn().Err(err).Str("to", to).Msg("send failed")
					}
				}
			}()

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&peerURL, "url", "", "relay websocket URL (overrides config)")
	return cmd
}
