package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
)

func main() {
	if len(os.Args) < 3 {
		log.Fatalf("Usage: %s <package-name> <entitlement-server> [service-addr]", os.Args[0])
	}

	packageName := os.Args[1]
	entitlementServer := os.Args[2]
	serviceAddr := "http://localhost:8123"
	if len(os.Args) > 3 {
		serviceAddr = "http://localhost" + os.Args[3]
	}

	body, err := json.Marshal(map[string]any{
		"package":        packageName,
		"slot_index":     0,
		"server_address": entitlementServer,
		"app_id":         "ap2004",
	})
	if err != nil {
		log.Fatalf("Failed to marshal request: %v", err)
	}

	req, err := http.NewRequest("POST", serviceAddr+"/v1/auth/eapaka", bytes.NewReader(body))
	if err != nil {
		log.Fatalf("Failed to create request: %v", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Caller-Id", "e2e-probe")

	client := &http.Client{}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("Request failed: %v", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Fatalf("Failed to read response: %v", err)
	}

	if resp.StatusCode == http.StatusOK {
		fmt.Println("✅ Authentication SUCCEEDED")

		var token struct {
			Token           string `json:"token"`
			ValiditySeconds int64  `json:"validity_seconds"`
		}
		if err := json.Unmarshal(respBody, &token); err == nil && token.Token != "" {
			fmt.Printf("\n📋 Token Information:\n")
			fmt.Printf("   Token length: %d characters\n", len(token.Token))
			fmt.Printf("   Validity: %d seconds\n", token.ValiditySeconds)
		}
	} else {
		fmt.Printf("❌ Authentication FAILED\n")
		fmt.Printf("Status: %d\n", resp.StatusCode)
		fmt.Printf("Body: %s\n", string(respBody))
		if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
			fmt.Printf("Retry-After: %s\n", retryAfter)
		}
	}
}
