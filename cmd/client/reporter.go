package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Lordi898/NeuroLinkProtocolGODONLINE/internal/session"
)

// httpReporter posts finished matches to the persistence API.
type httpReporter struct {
	baseURL string
	http    *http.Client
}

func newHTTPReporter(baseURL string) *httpReporter {
	return &httpReporter{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *httpReporter) Report(ctx context.Context, report session.MatchReport) error {
	b, err := json.Marshal(report)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/matches", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("match report: %s: %s", resp.Status, strings.TrimSpace(string(msg)))
	}
	return nil
}

type loginResponse struct {
	AccessToken string `json:"accessToken"`
}

type meResponse struct {
	ID string `json:"id"`
}

// login exchanges credentials for the account id, so match reports can credit
// the local player's profile.
func login(ctx context.Context, baseURL, email, password string) (userID string, err error) {
	client := &http.Client{Timeout: 10 * time.Second}
	base := strings.TrimSuffix(baseURL, "/")

	body, _ := json.Marshal(map[string]string{"email": email, "password": password})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+"/api/auth/login", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("login: %s", resp.Status)
	}
	var lr loginResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", err
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/me", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+lr.AccessToken)

	resp, err = client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("me: %s", resp.Status)
	}
	var me meResponse
	if err := json.NewDecoder(resp.Body).Decode(&me); err != nil {
		return "", err
	}
	return me.ID, nil
}
