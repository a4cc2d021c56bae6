// Command sheets-auth runs the OAuth consent flow for the Sheets backend and
// saves the resulting token where GOOGLE_OAUTH_TOKEN_FILE points.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/sheets/v4"

	"cheques/internal/cli"
	"cheques/internal/log"
	gsheet "cheques/internal/sheets/google"
)

func main() {
	envErr := cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	if envErr != nil {
		logger.Warn("Could not load .env", log.FieldError, envErr.Error())
	}

	if err := run(logger); err != nil {
		logger.Error("Authorization failed", log.FieldError, err.Error())
		os.Exit(1)
	}
}

func run(logger *log.Logger) error {
	b, err := clientSecret()
	if err != nil {
		return err
	}
	cfg, err := google.ConfigFromJSON(b, sheets.SpreadsheetsScope)
	if err != nil {
		return fmt.Errorf("oauth config: %w", err)
	}

	// The OAuth client must list http://localhost:<port>/callback as an
	// authorized redirect URI.
	redirectPort := os.Getenv("OAUTH_REDIRECT_PORT")
	if redirectPort == "" {
		redirectPort = "8085"
	}
	cfg.RedirectURL = "http://localhost:" + redirectPort + "/callback"

	state := uuid.NewString()
	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)

	mux := http.NewServeMux()
	srv := &http.Server{Addr: "localhost:" + redirectPort, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	mux.HandleFunc("GET /callback", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch {
		case q.Get("error") != "":
			http.Error(w, "OAuth error: "+q.Get("error"), http.StatusBadRequest)
			send(errCh, fmt.Errorf("consent denied: %s", q.Get("error")))
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
		default:
			fmt.Fprintln(w, "Autorización completa. Puede cerrar esta ventana.")
			send(codeCh, q.Get("code"))
		}
	})
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			send(errCh, err)
		}
	}()
	defer srv.Close()

	fmt.Printf("Open this URL to authorize:\n%s\n", cfg.AuthCodeURL(state, oauth2.AccessTypeOffline))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	var code string
	select {
	case code = <-codeCh:
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return fmt.Errorf("waiting for authorization: %w", ctx.Err())
	}

	tok, err := cfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange: %w", err)
	}
	tokenJSON, err := json.Marshal(tok)
	if err != nil {
		return fmt.Errorf("encode token: %w", err)
	}

	outFile := os.Getenv("GOOGLE_OAUTH_TOKEN_FILE")
	if outFile == "" {
		outFile = "token.json"
	}
	if err := os.WriteFile(outFile, tokenJSON, 0o600); err != nil {
		return fmt.Errorf("write token: %w", err)
	}
	logger.Info("Token saved", "file", outFile)

	return verify(ctx, b, tokenJSON, logger)
}

// verify reads the configured sheet with the new token, when one is set.
func verify(ctx context.Context, client, token []byte, logger *log.Logger) error {
	id := os.Getenv("GOOGLE_SPREADSHEET_ID")
	if id == "" {
		return nil
	}
	c, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   id,
		SheetName:       os.Getenv("GOOGLE_SHEET_NAME"),
		OAuthClientJSON: string(client),
		OAuthTokenJSON:  string(token),
	}, time.Local, logger)
	if err != nil {
		return err
	}
	rows, err := c.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("read spreadsheet %s: %w", id, err)
	}
	logger.Info("Spreadsheet reachable", "spreadsheet_id", id, log.FieldRecords, len(rows))
	return nil
}

// send drops v when the flow has already been decided.
func send[T any](ch chan<- T, v T) {
	select {
	case ch <- v:
	default:
	}
}

func clientSecret() ([]byte, error) {
	if s := strings.TrimSpace(os.Getenv("GOOGLE_OAUTH_CLIENT_JSON")); s != "" {
		return []byte(s), nil
	}
	if f := os.Getenv("GOOGLE_OAUTH_CLIENT_FILE"); f != "" {
		b, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("read client file: %w", err)
		}
		return b, nil
	}
	return nil, errors.New("set GOOGLE_OAUTH_CLIENT_JSON or GOOGLE_OAUTH_CLIENT_FILE")
}
