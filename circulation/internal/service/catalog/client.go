package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/libris/circulation-service/pkg/circuit_breaker"
)

type Config struct {
	Host string `envconfig:"CATALOG_HTTP_HOST" default:"localhost"`
	Port string `envconfig:"CATALOG_HTTP_PORT" default:"8090"`
}

type Book struct {
	BookUid string `json:"bookUid"`
	Title   string `json:"title"`
}

// Client resolves book metadata from the catalog collaborator. Calls go
// through a circuit breaker; the caller is expected to degrade to bare
// ids when the catalog is down.
type Client struct {
	log    *zap.Logger
	client *http.Client
	cfg    Config
	cb     circuit_breaker.CircuitBreaker
}

func NewClient(log *zap.Logger, cfg Config) *Client {
	return &Client{
		log:    log.Named("catalog"),
		client: &http.Client{Timeout: 10 * time.Second},
		cfg:    cfg,
		cb:     circuit_breaker.New(20, 15*time.Second, 0.5, 5),
	}
}

func (s *Client) GetBook(ctx context.Context, bookUid string) (Book, error) {
	var book Book
	err := s.cb.Call(func() error {
		req, err := http.NewRequestWithContext(
			ctx,
			http.MethodGet,
			fmt.Sprintf("http://%s/api/v1/books/%s", net.JoinHostPort(s.cfg.Host, s.cfg.Port), bookUid),
			http.NoBody)
		if err != nil {
			return err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return errors.Errorf("catalog: unexpected status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&book)
	})
	if err != nil {
		return Book{}, err
	}
	return book, nil
}
