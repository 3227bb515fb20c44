// Stripe Test Event Sender
//
// This is a minimal tool for exercising the billing webhook locally without
// the Stripe CLI. It signs a synthetic event the way Stripe does and posts
// it to the running API.
//
// Usage:
//   export STRIPE_WEBHOOK_SECRET="whsec_your_secret_here"
//   go run main.go -email you@example.com -plan family
//
// The secret must match the one the API was started with.

package main

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

func main() {
	var (
		endpoint = flag.String("endpoint", "http://localhost:8787/api/stripe/webhook", "Webhook endpoint URL")
		email    = flag.String("email", "", "Checkout email (required for checkout.session.completed)")
		customer = flag.String("customer", "", "Billing customer ID (required for subscription events)")
		plan     = flag.String("plan", "homeowner", "Plan carried in event metadata")
		kind     = flag.String("type", "checkout.session.completed", "Event type: checkout.session.completed, customer.subscription.updated, customer.subscription.deleted")
	)
	flag.Parse()

	secret := os.Getenv("STRIPE_WEBHOOK_SECRET")
	if secret == "" {
		log.Fatal("STRIPE_WEBHOOK_SECRET environment variable is required")
	}

	payload, err := buildEvent(*kind, *email, *customer, *plan)
	if err != nil {
		log.Fatal(err)
	}

	req, err := http.NewRequest(http.MethodPost, *endpoint, strings.NewReader(string(payload)))
	if err != nil {
		log.Fatalf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", sign(secret, payload))

	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		log.Fatalf("deliver event: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	log.Printf("✓ %s -> %d %s", *kind, resp.StatusCode, strings.TrimSpace(string(body)))
}

// buildEvent assembles the minimal event shape the reconciler reads.
func buildEvent(kind, email, customer, plan string) ([]byte, error) {
	object := map[string]any{
		"metadata": map[string]string{"plan": plan},
	}

	switch kind {
	case "checkout.session.completed":
		if email == "" {
			return nil, fmt.Errorf("-email is required for %s", kind)
		}
		object["customer_details"] = map[string]string{"email": email}
	case "customer.subscription.updated", "customer.subscription.deleted":
		if customer == "" {
			return nil, fmt.Errorf("-customer is required for %s", kind)
		}
		object["customer"] = customer
	default:
		return nil, fmt.Errorf("unsupported event type %q", kind)
	}

	event := map[string]any{
		"id":   fmt.Sprintf("evt_local_%d", time.Now().UnixNano()),
		"type": kind,
		"data": map[string]any{"object": object},
	}

	return json.Marshal(event)
}

// sign produces a Stripe-Signature header value.
//
// Header format: t=1705142400,v1=abc123def456...
// Signed payload: {timestamp}.{body}
func sign(secret string, payload []byte) string {
	timestamp := fmt.Sprintf("%d", time.Now().Unix())

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)

	return fmt.Sprintf("t=%s,v1=%s", timestamp, hex.EncodeToString(mac.Sum(nil)))
}
