package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/gookit/color"
	"github.com/gorilla/websocket"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
)

// Exit codes for the client application.
const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

// Config defines the client-side environment variables.
type Config struct {
	ServerAddress string `env:"CHAT_SERVER_ADDR,default=localhost:8000"`
	Email         string `env:"CHAT_EMAIL,required=true"`
	Password      string `env:"CHAT_PASSWORD,required=true"`
}

// frame covers both outbound schemas the server may push: an accepted
// message or a feedback error.
type frame struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error"`
}

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client error: %v\n", err)
	}
	os.Exit(code)
}

// run handles login, the WebSocket session, and the interactive input loop.
func run() (int, error) {
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return exitConfig, fmt.Errorf("config error: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := login(config)
	if err != nil {
		return exitRuntime, err
	}

	wsURL := url.URL{
		Scheme:   "ws",
		Host:     config.ServerAddress,
		Path:     "/ws/chat",
		RawQuery: "token=" + url.QueryEscape(token),
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL.String(), nil)
	if err != nil {
		return exitRuntime, fmt.Errorf("could not connect to %s: %w", config.ServerAddress, err)
	}
	defer conn.Close()

	color.Green.Printf(">>> Connected to %s as %s (/search <kw> to query history, Ctrl+C to quit)\n",
		config.ServerAddress, config.Email)

	done := make(chan struct{})
	go receiveLoop(conn, done)
	go inputLoop(conn, config, token)

	select {
	case <-ctx.Done():
	case <-done:
	}
	return exitOK, nil
}

// receiveLoop prints everything the server pushes until the stream ends.
func receiveLoop(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var f frame
		if err := json.Unmarshal(payload, &f); err != nil {
			continue
		}
		if f.Error != "" {
			color.Red.Printf("!! %s\n", f.Error)
			continue
		}
		color.Cyan.Printf("[%s] ", f.Timestamp)
		color.Bold.Printf("%s: ", f.Sender)
		fmt.Println(f.Content)
	}
}

// inputLoop reads stdin lines: "/search <keyword>" queries history, anything
// else is sent as a chat message.
func inputLoop(conn *websocket.Conn, config Config, token string) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if keyword, ok := strings.CutPrefix(line, "/search "); ok {
			if err := searchHistory(config, token, strings.TrimSpace(keyword)); err != nil {
				color.Red.Printf("!! search failed: %v\n", err)
			}
			continue
		}

		payload, _ := json.Marshal(map[string]string{"content": line})
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			color.Red.Printf("!! send failed: %v\n", err)
			return
		}
	}
}

// login exchanges credentials for a bearer token at the /token endpoint.
func login(config Config) (string, error) {
	body, _ := json.Marshal(map[string]string{
		"email":    config.Email,
		"password": config.Password,
	})
	resp, err := http.Post(
		fmt.Sprintf("http://%s/token", config.ServerAddress),
		"application/json",
		bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login rejected with status %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.AccessToken, nil
}

// searchHistory queries /search and renders the matches as a table.
func searchHistory(config Config, token, keyword string) error {
	endpoint := fmt.Sprintf("http://%s/search?keyword=%s", config.ServerAddress, url.QueryEscape(keyword))
	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		Results []frame `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return err
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Timestamp", "Sender", "Content"})
	for _, r := range out.Results {
		table.Append([]string{r.Timestamp, r.Sender, r.Content})
	}
	table.Render()
	return nil
}
