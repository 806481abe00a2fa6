package esplora

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

type Service interface {
	GetBlockHeight(ctx context.Context) (int64, error)
}

type service struct {
	client *resty.Client
}

func NewService(url string) Service {
	client := resty.New().
		SetBaseURL(strings.TrimRight(url, "/")).
		SetTimeout(10 * time.Second)
	return &service{client}
}

func (s *service) GetBlockHeight(ctx context.Context) (int64, error) {
	resp, err := s.client.R().SetContext(ctx).Get("/blocks/tip/height")
	if err != nil {
		return 0, fmt.Errorf("get height: %w", err)
	}

	body := strings.TrimSpace(resp.String())
	if resp.StatusCode() != http.StatusOK {
		return 0, fmt.Errorf("unexpected status %d: %s", resp.StatusCode(), body)
	}

	n, err := strconv.ParseInt(body, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse height: %w", err)
	}
	return n, nil
}
