//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"
)

var baseURL string

func TestMain(m *testing.M) {
	baseURL = os.Getenv("COURIER_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	// Wait for server readiness (up to 30s)
	ready := false
	for i := 0; i < 30; i++ {
		resp, err := http.Get(baseURL + "/api/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				ready = true
				break
			}
		}
		time.Sleep(1 * time.Second)
	}
	if !ready {
		fmt.Fprintf(os.Stderr, "server at %s not ready after 30s\n", baseURL)
		os.Exit(1)
	}

	os.Exit(m.Run())
}

type chatRequest struct {
	ChannelID string `json:"channel_id,omitempty"`
	Content   string `json:"content"`
}

type chatResponse struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	Skill     string `json:"skill,omitempty"`
	ChoiceID  string `json:"choice_id,omitempty"`
}

// sendChat POSTs a message and returns the parsed reply.
func sendChat(t *testing.T, channelID, content string) chatResponse {
	t.Helper()

	body, err := json.Marshal(chatRequest{ChannelID: channelID, Content: content})
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}

	client := &http.Client{Timeout: 90 * time.Second}
	resp, err := client.Post(baseURL+"/api/chat", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/chat: %v", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read response body: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}

	var reply chatResponse
	if err := json.Unmarshal(raw, &reply); err != nil {
		t.Fatalf("unmarshal response: %v (body: %s)", err, string(raw))
	}
	return reply
}

func TestClockSkill(t *testing.T) {
	reply := sendChat(t, "", "what time is it")
	if reply.Source != "skill" || reply.Skill != "clock" {
		t.Errorf("expected the clock skill to answer, got source=%s skill=%s text=%q",
			reply.Source, reply.Skill, reply.Text)
	}
	t.Logf("reply: %.200s", reply.Text)
}

func TestChannelPersistsAcrossTurns(t *testing.T) {
	first := sendChat(t, "", "hello there")
	if first.ChannelID == "" {
		t.Fatal("expected a generated channel_id")
	}
	second := sendChat(t, first.ChannelID, "what time is it")
	if second.ChannelID != first.ChannelID {
		t.Errorf("channel_id changed across turns: %s -> %s", first.ChannelID, second.ChannelID)
	}
}

func TestSystemStatusSkill(t *testing.T) {
	reply := sendChat(t, "", "how is the cpu load")
	if !strings.Contains(strings.ToLower(reply.Text), "cpu") {
		t.Errorf("expected a system report mentioning cpu, got: %s", reply.Text)
	}
	t.Logf("reply: %.200s", reply.Text)
}

func TestChoiceResolution(t *testing.T) {
	reply := sendChat(t, "", "play something")
	if reply.ChoiceID == "" {
		t.Skip("input did not escalate to a numbered choice on this deployment")
	}

	body, _ := json.Marshal(map[string]interface{}{
		"channel_id": reply.ChannelID,
		"choice":     1,
	})
	resp, err := http.Post(baseURL+"/api/choices/"+reply.ChoiceID, "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/choices: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		t.Fatalf("unexpected status %d: %s", resp.StatusCode, string(raw))
	}
}

func TestSkillsEndpoint(t *testing.T) {
	resp, err := http.Get(baseURL + "/api/skills")
	if err != nil {
		t.Fatalf("GET /api/skills: %v", err)
	}
	defer resp.Body.Close()

	var skills []struct {
		Name  string `json:"name"`
		Ready bool   `json:"ready"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&skills); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(skills) == 0 {
		t.Error("expected at least one registered skill")
	}
	for _, s := range skills {
		t.Logf("skill %s ready=%v", s.Name, s.Ready)
	}
}

func TestMonitorTick(t *testing.T) {
	resp, err := http.Post(baseURL+"/api/monitor/tick", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/monitor/tick: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusServiceUnavailable {
		t.Skip("monitor disabled on this deployment")
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("unexpected status %d", resp.StatusCode)
	}
}
