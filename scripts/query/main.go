package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"
)

// query is a small CLI client for the monitor API: fetch recent windows,
// samples or the store summary, optionally authenticating first.
func main() {
	mode := flag.String("mode", "windows", "What to fetch: 'windows', 'samples', 'summary', 'nodes' or 'health'.")
	baseURL := flag.String("url", "http://localhost:8080", "Base URL of the monitor API.")
	limit := flag.Int("limit", 50, "Number of recent records to fetch.")
	from := flag.String("from", "", "Range start in RFC3339 format (requires -to).")
	to := flag.String("to", "", "Range end in RFC3339 format (requires -from).")
	password := flag.String("password", "", "Monitor password, when authentication is enabled.")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	var token string
	if *password != "" {
		var err error
		token, err = login(client, *baseURL, *password)
		if err != nil {
			log.Fatalf("Login failed: %v", err)
		}
	}

	path, err := buildPath(*mode, *limit, *from, *to)
	if err != nil {
		log.Fatal(err)
	}

	body, err := get(client, *baseURL+path, token)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}

	var prettyJSON bytes.Buffer
	if err := json.Indent(&prettyJSON, body, "", "  "); err != nil {
		fmt.Println(string(body))
		return
	}
	fmt.Println(prettyJSON.String())
}

func buildPath(mode string, limit int, from, to string) (string, error) {
	switch mode {
	case "windows", "samples":
		if from != "" || to != "" {
			if from == "" || to == "" {
				return "", fmt.Errorf("-from and -to must be given together")
			}
			return fmt.Sprintf("/api/v1/%s?from=%s&to=%s", mode, from, to), nil
		}
		return fmt.Sprintf("/api/v1/%s?limit=%d", mode, limit), nil
	case "summary", "nodes":
		return "/api/v1/" + mode, nil
	case "health":
		return "/health", nil
	default:
		return "", fmt.Errorf("invalid mode: %s", mode)
	}
}

func login(client *http.Client, baseURL, password string) (string, error) {
	reqBody, _ := json.Marshal(map[string]string{"password": password})
	resp, err := client.Post(baseURL+"/api/v1/login", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var loginResp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &loginResp); err != nil {
		return "", err
	}
	return loginResp.Token, nil
}

func get(client *http.Client, url, token string) ([]byte, error) {
	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}
