package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
)

type smokeClient struct {
	base  string
	token string
	http  *http.Client
}

func (c *smokeClient) call(ctx context.Context, method, path string, body, out any) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, err
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("User-Agent", "garantias-smoke")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

// checkGRPCHealth dials the gRPC listener and requires SERVING.
func checkGRPCHealth(ctx context.Context, target string) error {
	conn, err := grpc.NewClient(target, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return err
	}
	defer conn.Close()
	resp, err := grpc_health_v1.NewHealthClient(conn).Check(ctx, &grpc_health_v1.HealthCheckRequest{})
	if err != nil {
		return err
	}
	if resp.GetStatus() != grpc_health_v1.HealthCheckResponse_SERVING {
		return fmt.Errorf("health status %s", resp.GetStatus())
	}
	return nil
}

func main() {
	base := strings.TrimRight(os.Getenv("GARANTIAS_SMOKE_URL"), "/")
	if base == "" {
		base = "http://localhost:8080"
	}
	token := os.Getenv("GARANTIAS_SMOKE_TOKEN")
	if token == "" {
		log.Fatal("GARANTIAS_SMOKE_TOKEN is required (see cmd/token)")
	}
	grpcAddr := os.Getenv("GARANTIAS_SMOKE_GRPC_ADDR")
	if grpcAddr == "" {
		grpcAddr = "localhost:9090"
	}
	c := &smokeClient{base: base, token: token, http: &http.Client{Timeout: 5 * time.Second}}

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := checkGRPCHealth(ctx, grpcAddr); err != nil {
		log.Fatalf("grpc health at %s: %v", grpcAddr, err)
	}

	var me struct {
		Actor struct {
			ID     string `json:"id"`
			Region string `json:"region"`
		} `json:"actor"`
	}
	if code, err := c.call(ctx, http.MethodGet, "/v1/me", nil, &me); err != nil || code != http.StatusOK {
		log.Fatalf("me: status=%d err=%v", code, err)
	}
	region := me.Actor.Region
	if region == "" {
		region = "Central"
	}

	ref := "SMOKE-" + uuid.NewString()[:8]
	var created struct {
		ID       string `json:"id"`
		IsActive bool   `json:"is_active"`
	}
	code, err := c.call(ctx, http.MethodPost, "/v1/guarantees", map[string]any{
		"policy_number":         ref,
		"subject_id":            ref,
		"region":                region,
		"guarantee_external_id": ref,
		"guarantee_type":        "Surety",
		"operation_type":        "Constitution",
		"currency":              "BOB",
		"face_value":            "1000.00",
	}, &created)
	if err != nil || code != http.StatusCreated || !created.IsActive {
		log.Fatalf("create guarantee: status=%d err=%v", code, err)
	}

	var deactivated struct {
		IsActive bool `json:"is_active"`
	}
	code, err = c.call(ctx, http.MethodPost, "/v1/guarantees/"+created.ID+"/deactivate", nil, &deactivated)
	if err != nil || code != http.StatusOK || deactivated.IsActive {
		log.Fatalf("deactivate guarantee: status=%d err=%v", code, err)
	}
	code, err = c.call(ctx, http.MethodPost, "/v1/guarantees/"+created.ID+"/deactivate", nil, nil)
	if err != nil || code != http.StatusConflict {
		log.Fatalf("second deactivation must conflict: status=%d err=%v", code, err)
	}

	var audit struct {
		Items []struct {
			Action   string `json:"action"`
			RecordID string `json:"record_id"`
		} `json:"items"`
	}
	if code, err := c.call(ctx, http.MethodGet, "/v1/audit?table=guarantees&limit=50", nil, &audit); err != nil || code != http.StatusOK {
		log.Fatalf("audit: status=%d err=%v", code, err)
	}
	actions := map[string]int{}
	for _, e := range audit.Items {
		if e.RecordID == created.ID {
			actions[e.Action]++
		}
	}
	if actions["INSERT"] != 1 || actions["UPDATE"] != 1 {
		log.Fatalf("unexpected audit trail for %s: %v", created.ID, actions)
	}

	fmt.Printf("guarantee smoke test passed: id=%s region=%s\n", created.ID, region)
}
