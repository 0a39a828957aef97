package main

import (
	"bufio"
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func main() {
	server := flag.String("server", "http://localhost:8080", "Courier server URL")
	flag.Parse()

	fmt.Println("Courier CLI Chat")
	fmt.Printf("Server: %s\n", *server)
	fmt.Println("Type 'exit' or 'quit' to leave. Answer a numbered prompt with just the number.")
	fmt.Println("Commands: /skills, /status")
	fmt.Println("---")

	var channelID, choiceID string

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\n> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			fmt.Println("Bye!")
			return
		}
		if input == "/skills" {
			fetchSkills(*server)
			continue
		}
		if input == "/status" {
			fetchStatus(*server)
			continue
		}

		// A bare number answers a pending choice prompt.
		if n, err := strconv.Atoi(input); err == nil && choiceID != "" {
			channelID, choiceID = resolveChoice(*server, channelID, choiceID, n)
			continue
		}

		channelID, choiceID = sendMessage(*server, channelID, input)
	}
}

type chatReply struct {
	ChannelID string `json:"channel_id"`
	Text      string `json:"text"`
	Source    string `json:"source"`
	Skill     string `json:"skill,omitempty"`
	ChoiceID  string `json:"choice_id,omitempty"`
}

func sendMessage(server, channelID, content string) (string, string) {
	body, _ := json.Marshal(map[string]string{
		"channel_id": channelID,
		"content":    content,
	})
	return postAndPrint(server+"/api/chat", body, channelID)
}

func resolveChoice(server, channelID, choiceID string, choice int) (string, string) {
	body, _ := json.Marshal(map[string]interface{}{
		"channel_id": channelID,
		"choice":     choice,
	})
	return postAndPrint(server+"/api/choices/"+choiceID, body, channelID)
}

func postAndPrint(url string, body []byte, channelID string) (string, string) {
	client := &http.Client{Timeout: 65 * time.Second}
	resp, err := client.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		printError("Request failed: %v", err)
		return channelID, ""
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		printError("Server error (%d): %s", resp.StatusCode, string(data))
		return channelID, ""
	}

	var reply chatReply
	if err := json.NewDecoder(resp.Body).Decode(&reply); err != nil {
		printError("Failed to parse response: %v", err)
		return channelID, ""
	}

	switch reply.Source {
	case "skill":
		fmt.Printf("\033[36m[%s]\033[0m %s\n", reply.Skill, reply.Text)
	default:
		fmt.Println(reply.Text)
	}
	return reply.ChannelID, reply.ChoiceID
}

func fetchSkills(server string) {
	resp, err := http.Get(server + "/api/skills")
	if err != nil {
		printError("Failed to fetch skills: %v", err)
		return
	}
	defer resp.Body.Close()

	var skills []struct {
		Name    string   `json:"name"`
		Intents []string `json:"intents"`
		Ready   bool     `json:"ready"`
		Reason  string   `json:"reason,omitempty"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&skills); err != nil {
		printError("Failed to parse skills: %v", err)
		return
	}
	if len(skills) == 0 {
		fmt.Println("No skills registered.")
		return
	}
	fmt.Println("Registered skills:")
	for _, s := range skills {
		icon := "\033[31m✗\033[0m"
		if s.Ready {
			icon = "\033[32m✓\033[0m"
		}
		fmt.Printf("  %s %s (%s)", icon, s.Name, strings.Join(s.Intents, ", "))
		if s.Reason != "" {
			fmt.Printf(" \033[31m%s\033[0m", s.Reason)
		}
		fmt.Println()
	}
}

func fetchStatus(server string) {
	resp, err := http.Get(server + "/api/monitor")
	if err != nil {
		printError("Failed to fetch status: %v", err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		fmt.Println("Monitor not running.")
		return
	}

	var st struct {
		Running   bool    `json:"running"`
		LastLoad  float64 `json:"last_load"`
		Ticks     int64   `json:"ticks"`
		Skips     int64   `json:"skips"`
		HookFails int64   `json:"hook_fails"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		printError("Failed to parse status: %v", err)
		return
	}
	fmt.Printf("Monitor: running=%v load=%.0f%% ticks=%d skips=%d hook_fails=%d\n",
		st.Running, st.LastLoad, st.Ticks, st.Skips, st.HookFails)
}

func printError(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "\033[31m"+format+"\033[0m\n", args...)
}
