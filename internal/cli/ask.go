package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/deepgram/aiproxy/internal/aiproxy"
	"github.com/spf13/cobra"
)

type askOptions struct {
	persona  string
	images   []string
	noStream bool
}

func newAskCmd(a *app) *cobra.Command {
	opts := &askOptions{}

	cmd := &cobra.Command{
		Use:   "ask [message...]",
		Short: "Send one message to the inference endpoint and print the answer",
		Long: `Send one message to the inference endpoint and print the answer as it
arrives. The message is read from stdin when no arguments are given. Exits with
status 2 when the endpoint rate limits the request.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			content := strings.Join(args, " ")
			if len(args) == 0 {
				input, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("error reading from stdin: %w", err)
				}
				content = strings.TrimSpace(string(input))
			}
			if content == "" {
				return fmt.Errorf("no message given")
			}

			client := aiproxy.NewClient(a.config.Endpoint.URL,
				aiproxy.WithPersona(aiproxy.Persona(a.config.Endpoint.Persona)))
			req := buildRequest(content, opts.persona, opts.images)

			out := cmd.OutOrStdout()
			var onProgress aiproxy.ProgressFunc
			printer := newProgressPrinter(out)
			if !opts.noStream {
				onProgress = printer.Print
			}

			outcome := client.Dispatch(ctx, req, onProgress)
			if outcome.RateLimited() {
				return errRateLimited
			}

			// the fallback and JSON answers may never have gone through onProgress
			printer.Print(outcome.Answer)
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.persona, "persona", "p", "", "Persona selector passed to the endpoint")
	cmd.Flags().StringArrayVarP(&opts.images, "image", "i", nil, "Image payload (data URL); repeat for several images")
	cmd.Flags().BoolVarP(&opts.noStream, "no-stream", "n", false, "Print only the final answer")

	return cmd
}

func buildRequest(content, persona string, images []string) aiproxy.Request {
	req := aiproxy.Request{
		Messages: []aiproxy.Message{{Content: content, IsAI: false}},
		Persona:  aiproxy.Persona(persona),
	}
	switch len(images) {
	case 0:
	case 1:
		req.ImageData = aiproxy.SingleImage(images[0])
	default:
		req.ImageData = aiproxy.MultipleImages(images...)
	}
	return req
}

// progressPrinter prints cumulative answers as a growing line. When an answer
// does not extend what is already printed it starts over on a new line.
type progressPrinter struct {
	w       io.Writer
	printed string
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) Print(answer aiproxy.AnswerResult) {
	switch {
	case answer.Content == p.printed:
		return
	case strings.HasPrefix(answer.Content, p.printed):
		fmt.Fprint(p.w, answer.Content[len(p.printed):])
	default:
		if p.printed != "" {
			fmt.Fprintln(p.w)
		}
		fmt.Fprint(p.w, answer.Content)
	}
	p.printed = answer.Content
}
