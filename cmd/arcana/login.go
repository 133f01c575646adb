package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/naveenspark/arcana/internal/browser"
	"github.com/naveenspark/arcana/internal/session"
	"github.com/naveenspark/arcana/internal/terms"
)

const loginTimeout = 2 * time.Minute

// callbackResult is what the sign-in page hands back to the local listener.
type callbackResult struct {
	token   string
	captcha string
	err     error
}

func newLoginCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "login",
		Short: "Sign in through the browser",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := setup()
			if err != nil {
				return err
			}
			defer env.Close()
			if err := env.login(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout()); err != nil {
				return err
			}
			return env.runTUI()
		},
	}
}

// login runs the browser sign-in: an ephemeral localhost listener receives
// the credential and the captcha token, the captcha is verified, the
// credential saved and the session checked.
func (e *appEnv) login(ctx context.Context, in io.Reader, out io.Writer) error {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return fmt.Errorf("start callback listener: %w", err)
	}
	defer listener.Close() //nolint:errcheck

	stateBytes := make([]byte, 16)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("generate login state: %w", err)
	}
	state := hex.EncodeToString(stateBytes)

	results := make(chan callbackResult, 1)
	srv := &http.Server{Handler: callbackHandler(state, results), ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			select {
			case results <- callbackResult{err: err}:
			default:
			}
		}
	}()
	defer func() {
		shutCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		srv.Shutdown(shutCtx) //nolint:errcheck
	}()

	port := listener.Addr().(*net.TCPAddr).Port
	loginURL := loginPageURL(e.cfg.SiteURL, port, state)
	fmt.Fprintln(out, "Opening browser to sign in...") //nolint:errcheck
	if err := browser.Open(loginURL); err != nil {
		fmt.Fprintf(out, "Could not open browser. Visit this URL manually:\n  %s\n", loginURL) //nolint:errcheck
	}

	var res callbackResult
	select {
	case res = <-results:
	case <-time.After(loginTimeout):
		return errors.New("login timed out: no callback received within 2 minutes")
	case <-ctx.Done():
		return ctx.Err()
	}
	if res.err != nil {
		return fmt.Errorf("login callback: %w", res.err)
	}

	api := newClient(e.cfg, res.token)
	if res.captcha != "" {
		if err := api.VerifyCaptcha(ctx, res.captcha); err != nil {
			return fmt.Errorf("captcha check failed: %w", err)
		}
	}
	if err := e.cfg.SaveToken(res.token); err != nil {
		return err
	}
	e.api = api

	val := session.New(api, e.log)
	coord := terms.New(api, val, e.cfg.TermsVersion, e.log)
	coord.Follow(val)
	switch val.Validate(ctx, true) {
	case session.StateInvalid:
		fmt.Fprintln(out, "Token saved but the session could not be verified.") //nolint:errcheck
		return nil
	case session.StateNeedsTerms:
		if !promptTerms(ctx, coord, e.cfg.SiteURL, in, out) {
			fmt.Fprintln(out, "You can accept the terms later from the board (press t).") //nolint:errcheck
		}
	}
	snap := val.Snapshot()
	e.log.Info("signed in", zap.String("uid", snap.UID))
	fmt.Fprintf(out, "Signed in as %s · %d drucoins\n\n", snap.Email, snap.Drucoins) //nolint:errcheck
	return nil
}

// callbackHandler accepts one /callback carrying the matching state and a
// token. Everything else is rejected.
func callbackHandler(state string, results chan<- callbackResult) http.Handler {
	send := func(r callbackResult) {
		select {
		case results <- r:
		default:
		}
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("state") != state {
			http.Error(w, "invalid state", http.StatusForbidden)
			send(callbackResult{err: errors.New("callback state mismatch (possible CSRF)")})
			return
		}
		tok := q.Get("token")
		if tok == "" {
			http.Error(w, "missing token", http.StatusBadRequest)
			send(callbackResult{err: errors.New("callback received without token")})
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, callbackHTML) //nolint:errcheck
		send(callbackResult{token: tok, captcha: q.Get("captcha")})
	})
	return mux
}

func loginPageURL(siteURL string, port int, state string) string {
	params := url.Values{}
	params.Set("cli_port", strconv.Itoa(port))
	params.Set("state", state)
	return siteURL + "/auth/cli?" + params.Encode()
}

// promptTerms asks on the terminal and records acceptance through coord.
func promptTerms(ctx context.Context, coord *terms.Coordinator, siteURL string, in io.Reader, out io.Writer) bool {
	fmt.Fprintf(out, "Our Terms of Service have changed: %s/terms\nAccept them? [y/N] ", siteURL) //nolint:errcheck
	line, _ := bufio.NewReader(in).ReadString('\n') //nolint:errcheck // EOF reads as "no"
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
	default:
		coord.Close()
		return false
	}
	if !coord.Confirm(ctx) {
		fmt.Fprintln(out, "Could not record acceptance.") //nolint:errcheck
		return false
	}
	return true
}
