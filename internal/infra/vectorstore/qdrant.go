package vectorstore

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

const defaultGRPCPort = 6334

// Payload keys written by common ingestion tools
var contentKeys = []string{"page_content", "content", "text"}

// Config holds Qdrant connection configuration
type Config struct {
	// URL is the Qdrant gRPC address (e.g., "http://qdrant:6334")
	URL string

	CollectionName string

	// APIKey is optional API key for authentication
	APIKey string
}

// Hit is a single search result
type Hit struct {
	ID      string
	Score   float32
	Content string
	Source  string
}

// Client searches a Qdrant collection
type Client struct {
	client         *qdrant.Client
	collectionName string
}

// New creates a new Qdrant client
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant url is required")
	}
	if cfg.CollectionName == "" {
		return nil, fmt.Errorf("qdrant collection is required")
	}

	host, port, useTLS, err := parseAddress(cfg.URL)
	if err != nil {
		return nil, err
	}

	qdrantClient, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: cfg.APIKey,
		UseTLS: useTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Client{
		client:         qdrantClient,
		collectionName: cfg.CollectionName,
	}, nil
}

// Search returns the closest points to vector with their payload text
func (c *Client) Search(ctx context.Context, vector []float32, limit int) ([]Hit, error) {
	limitUint64 := uint64(limit)
	points, err := c.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: c.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limitUint64,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, point := range points {
		hit := Hit{Score: point.Score}

		if point.Id != nil {
			if id := point.Id.GetUuid(); id != "" {
				hit.ID = id
			} else {
				hit.ID = strconv.FormatUint(point.Id.GetNum(), 10)
			}
		}

		for _, key := range contentKeys {
			if v, ok := point.Payload[key]; ok {
				if s := v.GetStringValue(); s != "" {
					hit.Content = s
					break
				}
			}
		}
		if meta, ok := point.Payload["metadata"]; ok {
			if fields := meta.GetStructValue().GetFields(); fields != nil {
				hit.Source = fields["source"].GetStringValue()
			}
		}
		if hit.Source == "" {
			if v, ok := point.Payload["source"]; ok {
				hit.Source = v.GetStringValue()
			}
		}

		if hit.Content == "" {
			continue
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.client.Close()
}

// parseAddress splits a Qdrant URL into host, port and TLS flag
func parseAddress(raw string) (string, int, bool, error) {
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", 0, false, fmt.Errorf("failed to parse qdrant url: %w", err)
	}

	port := defaultGRPCPort
	if u.Port() != "" {
		p, err := strconv.Atoi(u.Port())
		if err != nil {
			return "", 0, false, fmt.Errorf("invalid port: %w", err)
		}
		port = p
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}
